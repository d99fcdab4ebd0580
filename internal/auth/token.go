// Package auth validates the session tokens the surrounding application
// issues to signed-in users. Session management itself lives outside this
// service; the queue endpoints only need to verify a presented token.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC-signed session tokens.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer from the shared session secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign creates a token encoding the user id and an expiry.
func (s *Signer) Sign(userID string, expiry time.Time) string {
	payload := fmt.Sprintf("%s|%d", userID, expiry.Unix())
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(payload)) + "." + sig
}

// Verify validates a token and returns the user id it was issued to.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token format")
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid token encoding")
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payloadBytes)
	expectedSig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(parts[1]), []byte(expectedSig)) {
		return "", fmt.Errorf("invalid signature")
	}

	// Split from the right: user ids are opaque and may themselves contain
	// the separator.
	payload := string(payloadBytes)
	sep := strings.LastIndex(payload, "|")
	if sep < 0 {
		return "", fmt.Errorf("invalid payload")
	}

	expiryUnix, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid expiry")
	}
	if time.Now().Unix() > expiryUnix {
		return "", fmt.Errorf("token expired")
	}

	return payload[:sep], nil
}
