package signer

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shortURL = "http://localhost:8080/abc123XYZ0"

func signedParams(t *testing.T, s *Signer, rawURL string, ttl time.Duration) (sig, exp string) {
	t.Helper()
	signed, err := s.Sign(rawURL, ttl)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	return u.Query().Get("sig"), u.Query().Get("exp")
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := New("secret")
	sig, exp := signedParams(t, s, shortURL, time.Hour)
	assert.NoError(t, s.Verify(shortURL, sig, exp))
}

func TestVerifyExpired(t *testing.T) {
	s := New("secret")
	sig, exp := signedParams(t, s, shortURL, -time.Second)
	assert.ErrorIs(t, s.Verify(shortURL, sig, exp), ErrExpired)
}

func TestVerifyMissingParams(t *testing.T) {
	s := New("secret")
	sig, exp := signedParams(t, s, shortURL, time.Hour)

	assert.ErrorIs(t, s.Verify(shortURL, "", exp), ErrMissingSignature)
	assert.ErrorIs(t, s.Verify(shortURL, sig, ""), ErrMissingSignature)
	assert.ErrorIs(t, s.Verify(shortURL, "", ""), ErrMissingSignature)
}

func TestVerifyTampered(t *testing.T) {
	s := New("secret")
	sig, exp := signedParams(t, s, shortURL, time.Hour)

	t.Run("tampered signature", func(t *testing.T) {
		assert.ErrorIs(t, s.Verify(shortURL, sig+"ff", exp), ErrInvalidSignature)
	})
	t.Run("wrong secret", func(t *testing.T) {
		other := New("another-secret")
		assert.ErrorIs(t, other.Verify(shortURL, sig, exp), ErrInvalidSignature)
	})
	t.Run("different URL", func(t *testing.T) {
		assert.ErrorIs(t, s.Verify(shortURL+"x", sig, exp), ErrInvalidSignature)
	})
	t.Run("garbage expiry", func(t *testing.T) {
		assert.ErrorIs(t, s.Verify(shortURL, sig, "soon"), ErrInvalidSignature)
	})
}

func TestDisabledSigner(t *testing.T) {
	assert.False(t, New("").Enabled())
	assert.True(t, New("secret").Enabled())
}
