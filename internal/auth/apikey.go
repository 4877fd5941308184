package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	keyScheme     = "chatgw"
	keyAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	keySecretLen  = 32
	displayLength = 8
)

// KeyMetadata is the stored description of an API key. It is cached as JSON.
type KeyMetadata struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	TeamID         string    `json:"team_id"`
	UserID         string    `json:"user_id,omitempty"`
	Name           string    `json:"name"`
	AllowedModels  []string  `json:"allowed_models"`
	AllowedTools   []string  `json:"allowed_tools"`
	RPMLimit       *int      `json:"rpm_limit,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// GenerateKey returns a new key of the form chatgw-{env}-{secret}.
func GenerateKey(env string) (string, error) {
	secret, err := randomString(keySecretLen)
	if err != nil {
		return "", fmt.Errorf("generate random: %w", err)
	}
	return keyScheme + "-" + env + "-" + secret, nil
}

// splitKey breaks a key into its environment and secret parts.
func splitKey(key string) (env, secret string, ok bool) {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) != 3 || parts[0] != keyScheme || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// HashKey returns the SHA-256 hex digest stored in place of the key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the part of a key that is safe to show and store in
// clear: the scheme, the environment and the first characters of the secret.
func KeyPrefix(key string) string {
	env, secret, ok := splitKey(key)
	if !ok {
		if len(key) > 16 {
			return key[:16]
		}
		return key
	}
	if len(secret) > displayLength {
		secret = secret[:displayLength]
	}
	return keyScheme + "-" + env + "-" + secret
}

func randomString(n int) (string, error) {
	base := big.NewInt(int64(len(keyAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		sb.WriteByte(keyAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// ParseDuration extends time.ParseDuration with a day unit, as in "365d".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse days %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
