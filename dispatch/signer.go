package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	HeaderContentType      = "Content-Type"
	HeaderUserAgent        = "User-Agent"
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookRequestID = "X-Webhook-Request-Id"

	signatureAlgorithmTag = "sha256="
)

// Signature computes the hex HMAC-SHA256 of "<timestamp>.<body>" under key.
// Receivers verify by recomputing over the same timestamp header and raw
// request body.
func Signature(key []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue prefixes the hex signature with its algorithm tag.
func SignatureHeaderValue(signature string) string {
	return signatureAlgorithmTag + strings.TrimSpace(signature)
}
