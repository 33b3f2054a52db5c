// Package signer issues and verifies time-bounded HMAC capability links.
// Verification is stateless: no registry lookup is required, so a signed
// link stays checkable even when storage is down.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("signature expired")
)

type Signer struct {
	secret []byte
}

// New returns nil when secret is empty; a nil Signer means signing is not
// configured and issuance must be refused.
func New(secret string) *Signer {
	if secret == "" {
		return nil
	}
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Enabled() bool {
	return s != nil
}

// Sign appends sig and exp query parameters to rawURL. A non-positive ttl
// produces an already-expired link; callers enforce their own bounds.
func (s *Signer) Sign(rawURL string, ttl time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	exp := time.Now().Add(ttl).Unix()
	sig := s.compute(rawURL, exp)

	q := u.Query()
	q.Set("sig", sig)
	q.Set("exp", strconv.FormatInt(exp, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks sig and exp against rawURL, which must be the bare short
// URL without the signature parameters.
func (s *Signer) Verify(rawURL, sig, exp string) error {
	if sig == "" || exp == "" {
		return ErrMissingSignature
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if time.Now().Unix() > expUnix {
		return ErrExpired
	}
	expected := s.compute(rawURL, expUnix)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Signer) compute(rawURL string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", rawURL, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
