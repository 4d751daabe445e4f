package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-paystack/core"
)

// ComputeSignature returns the lowercase hex HMAC-SHA512 of payload keyed
// with secret, as Paystack sends it in the x-paystack-signature header.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the hex HMAC-SHA512 of the
// exact payload bytes keyed with secret. Hex case is ignored. Empty inputs
// and any internal failure yield false.
func VerifySignature(payload []byte, signature string, secret string) (valid bool) {
	defer func() {
		if recover() != nil {
			valid = false
		}
	}()
	if len(payload) == 0 || signature == "" || secret == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(provided, mac.Sum(nil))
}

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// SignatureVerifier checks the signature header of an inbound delivery.
type SignatureVerifier struct {
	Header string
	Secret string
}

func NewSignatureVerifier(secret string) SignatureVerifier {
	return SignatureVerifier{
		Header: core.DefaultSignatureHeader,
		Secret: secret,
	}
}

func (v SignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(v.Header)
	if header == "" {
		header = core.DefaultSignatureHeader
	}
	signature := headerValue(req.Headers, header)
	if signature == "" {
		return authenticationError("webhooks: "+header+" signature header is required", map[string]any{
			"header": header,
		})
	}
	if v.Secret == "" {
		return authenticationError("webhooks: signature secret is required", nil)
	}
	if !VerifySignature(req.Body, signature, v.Secret) {
		return authenticationError("webhooks: signature verification failed", map[string]any{
			"header": header,
		})
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ Verifier = SignatureVerifier{}
