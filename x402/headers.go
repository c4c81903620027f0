package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ExtractToken pulls the raw payment token out of request headers,
// preferring the current header name and falling back to the legacy one.
// A blank value counts as absent. The token content is returned untouched;
// decoding and validation happen elsewhere.
func ExtractToken(h http.Header) (string, bool) {
	for _, name := range []string{HeaderPayment, HeaderPaymentLegacy} {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v, true
		}
	}
	return "", false
}

// DecodeToken decodes a transport-encoded payment token into its JSON
// payload. Tokens are base64 over JSON; both padded and unpadded
// encodings are accepted. The payload's internal structure belongs to the
// facilitator, so only JSON well-formedness is checked here.
func DecodeToken(token string) (json.RawMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(token)
		if err != nil {
			return nil, fmt.Errorf("decode payment token: %w", err)
		}
	}
	if !json.Valid(raw) {
		return nil, errors.New("payment token is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// EncodeHeader renders v as base64 JSON for transport in an x402 response
// header.
func EncodeHeader(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode x402 header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeHeader decodes a base64 JSON header value into out.
func DecodeHeader(value string, out any) error {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(value)
		if err != nil {
			return fmt.Errorf("decode x402 header: %w", err)
		}
	}
	return json.Unmarshal(raw, out)
}
