package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TTL is how long an issued token stays verifiable. Fixed at issuance,
// matches the QR refresh cadence so at most two tokens overlap.
const TTL = 30 * time.Second

const nonceBytes = 16 // 128 bits of entropy per issued token

var (
	ErrMalformed        = errors.New("token: malformed")
	ErrBadSignature     = errors.New("token: bad signature")
	ErrBusinessMismatch = errors.New("token: business mismatch")
	ErrExpired          = errors.New("token: expired")
)

// Claims are the verified contents of a token. The signature has already
// been checked by the time a caller sees these.
type Claims struct {
	BusinessID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Nonce      string
}

// Codec issues and verifies compact HMAC-signed tokens. Verification is
// stateless: anyone holding the shared secret can validate a token without
// a round trip.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec around the shared signing secret. The secret is
// never serialized into a token and must never be logged.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue creates a signed token bound to one business, valid for TTL from now.
func (c *Codec) Issue(businessID string, now time.Time) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	issuedMs := now.UnixMilli()
	expiresMs := now.Add(TTL).UnixMilli()

	payload := encodePayload(businessID, issuedMs, base64.RawURLEncoding.EncodeToString(nonce), expiresMs)
	sig := c.sign(payload)

	raw := payload + "|" + base64.RawURLEncoding.EncodeToString(sig)
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify checks a token string against the expected business at the given
// time. Checks run in a fixed order: decode, signature, business, expiry.
// Verification does not consume the token; calling it twice with the same
// inputs gives the same answer.
func (c *Codec) Verify(tok, expectedBusinessID string, now time.Time) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return nil, ErrMalformed
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) < 5 {
		return nil, ErrMalformed
	}

	// The business ID is the only field that may itself contain the
	// delimiter, so fields are anchored from the right.
	sigB64 := parts[len(parts)-1]
	expiresStr := parts[len(parts)-2]
	nonceB64 := parts[len(parts)-3]
	issuedStr := parts[len(parts)-4]
	businessID := strings.Join(parts[:len(parts)-4], "|")

	issuedMs, err := strconv.ParseInt(issuedStr, 10, 64)
	if err != nil {
		return nil, ErrMalformed
	}
	expiresMs, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return nil, ErrMalformed
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, ErrMalformed
	}
	if _, err := base64.RawURLEncoding.DecodeString(nonceB64); err != nil {
		return nil, ErrMalformed
	}

	expected := c.sign(encodePayload(businessID, issuedMs, nonceB64, expiresMs))
	if !hmac.Equal(expected, sig) {
		return nil, ErrBadSignature
	}

	if businessID != expectedBusinessID {
		return nil, ErrBusinessMismatch
	}

	if now.UnixMilli() > expiresMs {
		return nil, ErrExpired
	}

	return &Claims{
		BusinessID: businessID,
		IssuedAt:   time.UnixMilli(issuedMs),
		ExpiresAt:  time.UnixMilli(expiresMs),
		Nonce:      nonceB64,
	}, nil
}

func (c *Codec) sign(payload string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

func encodePayload(businessID string, issuedMs int64, nonceB64 string, expiresMs int64) string {
	return businessID + "|" + strconv.FormatInt(issuedMs, 10) + "|" + nonceB64 + "|" + strconv.FormatInt(expiresMs, 10)
}
