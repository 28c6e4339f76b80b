package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// Access tokens are HS256 only; anything else in the header is rejected before the key is used.
var signingMethod = jwt.SigningMethodHS256

var errMissingSecret = errors.New("jwt secret is required")

// MintAccessToken signs a shopper or staff access token valid for cfg.ExpirationMinutes
// from now. The jti is the refresh-session key and is generated when the payload leaves it empty.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkMint(cfg, payload); err != nil {
		return "", err
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute

	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func checkMint(cfg config.JWTConfig, payload AccessTokenPayload) error {
	var errs []error
	if cfg.Secret == "" {
		errs = append(errs, errMissingSecret)
	}
	if cfg.Issuer == "" {
		errs = append(errs, errors.New("jwt issuer is required"))
	}
	if cfg.ExpirationMinutes <= 0 {
		errs = append(errs, errors.New("jwt expiration minutes must be positive"))
	}
	if payload.UserID == uuid.Nil {
		errs = append(errs, errors.New("user id is required"))
	}
	if !payload.Role.IsValid() {
		errs = append(errs, fmt.Errorf("invalid user role %q", payload.Role))
	}
	return errors.Join(errs...)
}

// ParseAccessToken verifies signature, issuer and expiry.
func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	return parse(cfg, token)
}

// ParseAccessTokenAllowExpired verifies signature and issuer but not exp, so refresh
// and logout can still find the session behind a stale access token.
func ParseAccessTokenAllowExpired(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	return parse(cfg, token, jwt.WithoutClaimsValidation())
}

func parse(cfg config.JWTConfig, token string, extra ...jwt.ParserOption) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	}, extra...)

	claims := &AccessTokenClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	// WithoutClaimsValidation also skips the issuer check.
	if claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", jwt.ErrTokenInvalidIssuer, claims.Issuer)
	}
	if claims.UserID == uuid.Nil || claims.Subject != claims.UserID.String() || !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: subject, user id or role mismatch", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}
