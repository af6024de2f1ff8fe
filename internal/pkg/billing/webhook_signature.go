package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance is the maximum accepted age of a signed payload.
const DefaultSignatureTolerance = 300 * time.Second

// SignatureHeaderName carries "t=<unix>,v1=<hex>" on every Stripe delivery.
const SignatureHeaderName = "Stripe-Signature"

// ParsedSignature is the content of a Stripe-Signature header.
type ParsedSignature struct {
	Timestamp  int64
	Signatures []string
}

// ParseSignatureHeader splits a "t=...,v1=..." header. Unknown schemes are
// ignored; a header without t or v1 is rejected.
func ParseSignatureHeader(header string) (*ParsedSignature, error) {
	out := &ParsedSignature{}
	hasTimestamp := false
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid signature timestamp %q", value)
			}
			out.Timestamp = ts
			hasTimestamp = true
		case "v1":
			if value != "" {
				out.Signatures = append(out.Signatures, value)
			}
		}
	}
	if !hasTimestamp {
		return nil, fmt.Errorf("signature header missing t")
	}
	if len(out.Signatures) == 0 {
		return nil, fmt.Errorf("signature header missing v1")
	}
	return out, nil
}

// ComputeStripeSignature returns the lowercase hex HMAC-SHA256 of "t.payload".
func ComputeStripeSignature(payload []byte, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds a header value as Stripe would send it.
func SignatureHeader(payload []byte, timestamp int64, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeStripeSignature(payload, timestamp, secret))
}

// VerifyStripeWebhookSignature checks payload against the header using the
// default five minute tolerance.
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string, now time.Time) bool {
	return VerifyStripeWebhookSignatureWithTolerance(payload, signatureHeader, webhookSecret, now, DefaultSignatureTolerance)
}

// VerifyStripeWebhookSignatureWithTolerance fails closed: malformed headers,
// stale timestamps and undecodable signatures all return false.
func VerifyStripeWebhookSignatureWithTolerance(payload []byte, signatureHeader, webhookSecret string, now time.Time, tolerance time.Duration) bool {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return false
	}
	parsed, err := ParseSignatureHeader(strings.TrimSpace(signatureHeader))
	if err != nil {
		return false
	}
	if now.Unix()-parsed.Timestamp > int64(tolerance/time.Second) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(parsed.Timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range parsed.Signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return true
		}
	}
	return false
}
