package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// ErrMalformedHash is returned for stored hashes that are not argon2id PHC strings.
var ErrMalformedHash = errors.New("malformed argon2id hash")

var b64 = base64.RawStdEncoding

// argonCost is the tuning carried in every stored hash, so changing the
// configuration never invalidates existing accounts.
type argonCost struct {
	memoryKB uint32
	passes   uint32
	lanes    uint8
}

// costFromConfig clamps operator input to values argon2 accepts.
func costFromConfig(cfg config.PasswordConfig) (argonCost, int, int) {
	cost := argonCost{
		memoryKB: uint32(min(max(cfg.ArgonMemoryKB, 8), 512*1024)),
		passes:   uint32(min(max(cfg.ArgonTime, 1), 10)),
		lanes:    uint8(min(max(cfg.ArgonParallelism, 1), 255)),
	}
	saltLen := min(max(cfg.ArgonSaltLen, 8), 64)
	keyLen := min(max(cfg.ArgonKeyLen, 16), 64)
	return cost, saltLen, keyLen
}

func (c argonCost) derive(password string, salt []byte, keyLen int) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memoryKB, c.lanes, uint32(keyLen))
}

// HashPassword encodes the password as $argon2id$v=19$m=..,t=..,p=..$salt$key.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	cost, saltLen, keyLen := costFromConfig(cfg)
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := cost.derive(password, salt, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, cost.memoryKB, cost.passes, cost.lanes, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches a hash produced by HashPassword.
// A wrong password is (false, nil); only an unreadable hash is an error.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := cost.derive(password, salt, len(key))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func parseHash(encoded string) (argonCost, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return argonCost{}, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, ErrMalformedHash
	}

	var cost argonCost
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cost.memoryKB, &cost.passes, &cost.lanes); err != nil {
		return argonCost{}, nil, nil, ErrMalformedHash
	}
	if cost.memoryKB == 0 || cost.passes == 0 || cost.lanes == 0 {
		return argonCost{}, nil, nil, ErrMalformedHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrMalformedHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrMalformedHash
	}
	return cost, salt, key, nil
}
