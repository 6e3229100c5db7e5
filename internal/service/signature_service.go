package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const webhookSignaturePrefix = "sha256="

// HMACWebhookSigner signs "<unix timestamp>.<body>" with HMAC-SHA256 keyed by
// the shop's API key. The header value is "sha256=" followed by lowercase hex.
type HMACWebhookSigner struct{}

func NewHMACWebhookSigner() *HMACWebhookSigner {
	return &HMACWebhookSigner{}
}

func (HMACWebhookSigner) Sign(secret string, timestamp int64, body []byte) string {
	return webhookSignaturePrefix + hex.EncodeToString(webhookMAC(secret, timestamp, body))
}

// Verify accepts the signature only for the exact timestamp and body it was made for.
func (HMACWebhookSigner) Verify(secret string, timestamp int64, body []byte, signature string) bool {
	digest, ok := strings.CutPrefix(signature, webhookSignaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	return hmac.Equal(got, webhookMAC(secret, timestamp, body))
}

func webhookMAC(secret string, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(strconv.AppendInt(nil, timestamp, 10))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return mac.Sum(nil)
}
