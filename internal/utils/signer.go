package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/movenorth/booking-backend/internal/apperr"
)

// Signer produces stateless single-use tokens for email verification
// and password reset. A token is base64url(json payload).hex(hmac).
// Validity is bounded only by the embedded expiry; single use is
// enforced by the caller invalidating the underlying condition (e.g.
// flipping is_verified).
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

type signedPayload struct {
	Data map[string]string `json:"data"`
	Exp  int64             `json:"exp"`
}

// Sign serializes data with an expiry and appends an HMAC-SHA256
// signature.
func (s *Signer) Sign(data map[string]string) (string, error) {
	body, err := json.Marshal(signedPayload{
		Data: data,
		Exp:  time.Now().UTC().Add(s.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + s.mac(encoded), nil
}

// Decode verifies the signature and expiry and returns the embedded
// data.
func (s *Signer) Decode(token string) (map[string]string, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, apperr.New(apperr.KindInvalidToken, "malformed token")
	}
	if !hmac.Equal([]byte(s.mac(encoded)), []byte(sig)) {
		return nil, apperr.New(apperr.KindInvalidToken, "token signature mismatch")
	}
	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidToken, "malformed token", err)
	}
	var payload signedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidToken, "malformed token", err)
	}
	if time.Now().UTC().Unix() > payload.Exp {
		return nil, apperr.New(apperr.KindExpiredToken, "token has expired")
	}
	return payload.Data, nil
}

func (s *Signer) mac(encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(encoded))
	return hex.EncodeToString(h.Sum(nil))
}
