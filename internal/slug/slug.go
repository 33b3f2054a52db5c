// Package slug generates the random identifiers behind short URLs and
// validates user-chosen aliases.
package slug

import (
	"crypto/rand"
	"strings"

	"github.com/vrsjns/bearlink-sub000/internal/models"
)

const (
	// Length is fixed so slugs carry uniform entropy; 10 chars over a
	// 64-char alphabet keeps enumeration impractical.
	Length = 10

	// MaxAttempts bounds insert retries when a generated slug collides.
	MaxAttempts = 3

	charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

	aliasMinLen = 3
	aliasMaxLen = 50
)

var reservedAliases = map[string]struct{}{
	"api":     {},
	"urls":    {},
	"ping":    {},
	"admin":   {},
	"login":   {},
	"logout":  {},
	"register": {},
	"signup":  {},
	"static":  {},
	"assets":  {},
	"health":  {},
	"metrics": {},
	"qr":      {},
	"unlock":  {},
	"sign":    {},
	"docs":    {},
	"www":     {},
}

// New returns a fresh random slug of exactly Length characters. The 64-char
// alphabet divides a byte evenly, so masking keeps the draw uniform.
func New() (string, error) {
	b := make([]byte, Length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = charset[b[i]&63]
	}
	return string(b), nil
}

// ValidateAlias checks length, character set and the reserved-word list.
// It never touches storage; uniqueness is the registry's concern.
func ValidateAlias(alias string) error {
	if len(alias) < aliasMinLen || len(alias) > aliasMaxLen {
		return models.Invalid("custom alias must be between %d and %d characters", aliasMinLen, aliasMaxLen)
	}
	for i := 0; i < len(alias); i++ {
		if !aliasChar(alias[i]) {
			return models.Invalid("custom alias may only contain letters, digits, hyphens and underscores")
		}
	}
	if _, ok := reservedAliases[strings.ToLower(alias)]; ok {
		return models.Invalid("custom alias %q is reserved", alias)
	}
	return nil
}

func aliasChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}
