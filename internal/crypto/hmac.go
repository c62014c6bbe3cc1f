package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// Webhook signature headers.
const (
	HeaderTimestamp = "X-Arbscanner-Timestamp"
	HeaderSignature = "X-Arbscanner-Signature"
)

// WebhookSigner signs outbound webhook bodies so receivers can verify origin.
// The signature is HMAC-SHA256(secret, timestamp + "." + body) encoded as
// base64.
type WebhookSigner struct {
	Secret string
}

// Headers returns the signature headers for body at the current time.
func (s *WebhookSigner) Headers(body []byte) map[string]string {
	return s.HeadersAt(body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (s *WebhookSigner) HeadersAt(body []byte, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderTimestamp: ts,
		HeaderSignature: hmacSHA256Base64([]byte(s.Secret), ts+"."+string(body)),
	}
}

// Verify checks a signature produced by HeadersAt.
func (s *WebhookSigner) Verify(body []byte, timestamp, signature string) bool {
	want := hmacSHA256Base64([]byte(s.Secret), timestamp+"."+string(body))
	return hmac.Equal([]byte(want), []byte(signature))
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
