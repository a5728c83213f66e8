// Package gateway is the HTTP front door: per-platform webhook endpoints,
// the web-based timezone verification flow, and health probes.
package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// VerifyToken is the payload a signed verification link carries.
type VerifyToken struct {
	Platform  model.Platform
	UserID    string
	ChatID    string
	ExpiresAt time.Time
}

// TokenSigner mints and validates HMAC-signed verification tokens: a user
// clicking their chat platform's verify link lands on a web page that can
// prove, without a login step, which (platform, user, chat) it speaks for.
type TokenSigner struct {
	secret        []byte
	validDuration time.Duration
}

// NewTokenSigner builds a TokenSigner. validDuration defaults to 24h if
// zero or negative.
func NewTokenSigner(secret string, validDuration time.Duration) *TokenSigner {
	if validDuration <= 0 {
		validDuration = 24 * time.Hour
	}
	return &TokenSigner{secret: []byte(secret), validDuration: validDuration}
}

// Generate mints a signed token for (platform, userID, chatID), expiring
// validDuration from now.
func (s *TokenSigner) Generate(platform model.Platform, userID, chatID string, now time.Time) string {
	expiresAt := now.Add(s.validDuration)
	nonce := randomNonce()
	payload := fmt.Sprintf("%s|%s|%s|%d|%s", platform, userID, chatID, expiresAt.Unix(), nonce)
	sig := s.sign(payload)
	return payload + "|" + sig
}

// Parse validates a token's signature and expiry, returning the embedded
// VerifyToken on success.
func (s *TokenSigner) Parse(token string, now time.Time) (VerifyToken, bool) {
	parts := strings.Split(token, "|")
	if len(parts) != 6 {
		return VerifyToken{}, false
	}
	platformStr, userID, chatID, expiresStr, nonce, sig := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]

	payload := fmt.Sprintf("%s|%s|%s|%s|%s", platformStr, userID, chatID, expiresStr, nonce)
	expected := s.sign(payload)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return VerifyToken{}, false
	}

	expiresUnix, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return VerifyToken{}, false
	}
	expiresAt := time.Unix(expiresUnix, 0).UTC()
	if now.After(expiresAt) {
		return VerifyToken{}, false
	}

	return VerifyToken{
		Platform:  model.Platform(platformStr),
		UserID:    userID,
		ChatID:    chatID,
		ExpiresAt: expiresAt,
	}, true
}

func (s *TokenSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// VerifyURL builds the full link a user follows to the /verify page.
func (s *TokenSigner) VerifyURL(baseURL string, platform model.Platform, userID, chatID string, now time.Time) string {
	return fmt.Sprintf("%s/verify?token=%s", strings.TrimRight(baseURL, "/"), s.Generate(platform, userID, chatID, now))
}

func randomNonce() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "0"
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
