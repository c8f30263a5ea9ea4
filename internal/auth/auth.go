package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// HeaderSignature carries the hex-encoded detached signature.
	HeaderSignature = "X-Signature-Ed25519"
	// HeaderTimestamp carries the timestamp that was signed together with the body.
	HeaderTimestamp = "X-Signature-Timestamp"
)

// ErrInvalidSignature is returned for every verification failure. Callers must not
// be able to tell a malformed header from a wrong signature.
var ErrInvalidSignature = errors.New("invalid request signature")

// Verifier checks detached Ed25519 signatures over timestamp+body.
type Verifier struct {
	key ed25519.PublicKey
}

// ParsePublicKey decodes a 64-character hex Ed25519 public key.
func ParsePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// NewVerifier creates a verifier for the given hex public key.
func NewVerifier(hexKey string) (*Verifier, error) {
	key, err := ParsePublicKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Verifier{key: key}, nil
}

// Verify reports whether signatureHex is a valid signature of timestamp||body.
func (v *Verifier) Verify(body []byte, timestamp, signatureHex string) error {
	if v == nil || len(v.key) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	if timestamp == "" || signatureHex == "" {
		return ErrInvalidSignature
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	if !ed25519.Verify(v.key, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyRequest verifies the signature headers on r against an already read body.
func (v *Verifier) VerifyRequest(r *http.Request, body []byte) error {
	return v.Verify(body, r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature))
}

// Sign produces the hex signature the platform would send for timestamp||body.
// Used by tests and the keygen tool.
func Sign(priv ed25519.PrivateKey, body []byte, timestamp string) string {
	msg := append([]byte(timestamp), body...)
	return hex.EncodeToString(ed25519.Sign(priv, msg))
}
