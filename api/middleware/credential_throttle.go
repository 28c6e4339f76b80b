package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// maxCredentialBody bounds how much of a login or register body is buffered to find the email.
const maxCredentialBody = 16 << 10

type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// CredentialThrottle caps attempts on one credential endpoint, counted per client
// address and per account email inside the same fixed window. A zero limit
// disables that dimension.
type CredentialThrottle struct {
	Endpoint   string
	Window     time.Duration
	PerIP      int
	PerAccount int
}

type throttleBucket struct {
	dimension string
	subject   string
	limit     int
}

func (t CredentialThrottle) scope(b throttleBucket) string {
	return b.dimension + ":" + t.Endpoint + ":" + b.subject
}

// buckets lists the counters a request charges, in the order they are checked.
func (t CredentialThrottle) buckets(ip, email string) []throttleBucket {
	if t.Window <= 0 {
		return nil
	}
	var out []throttleBucket
	if t.PerIP > 0 && ip != "" {
		out = append(out, throttleBucket{dimension: "ip", subject: ip, limit: t.PerIP})
	}
	if t.PerAccount > 0 && email != "" {
		out = append(out, throttleBucket{dimension: "email", subject: accountDigest(email), limit: t.PerAccount})
	}
	return out
}

// Throttle rejects credential attempts over the configured budget with 429.
func Throttle(t CredentialThrottle, counter windowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	t.Endpoint = strings.ToLower(strings.TrimSpace(t.Endpoint))
	if t.Endpoint == "" {
		t.Endpoint = "auth"
	}
	return func(next http.Handler) http.Handler {
		if counter == nil || t.Window <= 0 || (t.PerIP <= 0 && t.PerAccount <= 0) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var email string
			if t.PerAccount > 0 {
				var err error
				if email, err = peekEmail(r); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
			}

			for _, bucket := range t.buckets(clientIP(r), email) {
				allowed, attempts, err := counter.FixedWindowAllow(ctx, t.scope(bucket), int64(bucket.limit), t.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credential throttle"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"endpoint":  t.Endpoint,
							"dimension": bucket.dimension,
							"subject":   bucket.subject,
							"attempts":  attempts,
							"limit":     bucket.limit,
						}), "credential attempts throttled")
					}
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peekEmail reads the email field and puts the body back for the handler.
// Bodies that are not JSON objects count against the IP only.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(body.Email)), nil
}

// accountDigest keeps raw emails out of redis keys and logs.
func accountDigest(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:12])
}
