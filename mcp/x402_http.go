package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	x402types "github.com/coinbase/x402/go/types"

	"github.com/derek2403/MicroSearch/x402"
)

type paymentHeader struct {
	Name    string
	Value   string
	Version int
}

func encodePaymentHeader(payment any) (*paymentHeader, error) {
	payloadBytes, err := json.Marshal(payment)
	if err != nil {
		return nil, err
	}

	version, err := x402types.DetectVersion(payloadBytes)
	if err != nil {
		if version, ok := normalizeX402Version(extractX402Version(payment)); ok {
			return buildPaymentHeader(version, payloadBytes), nil
		}
		return nil, err
	}

	return buildPaymentHeader(version, payloadBytes), nil
}

func buildPaymentHeader(version int, payloadBytes []byte) *paymentHeader {
	headerName := x402.HeaderPaymentLegacy
	if version >= 2 {
		headerName = x402.HeaderPayment
	}
	return &paymentHeader{
		Name:    headerName,
		Value:   base64.StdEncoding.EncodeToString(payloadBytes),
		Version: version,
	}
}

// injectPaymentSignature turns x402/payment metadata from a tool call into
// the payment header on the proxied request. An existing header of the
// same name wins; the metadata never overwrites it.
func injectPaymentSignature(params map[string]any, payment any) (map[string]any, error) {
	paymentMap, ok := payment.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("x402/payment metadata must be an object")
	}

	payload, ok := paymentMap["payload"]
	if !ok || payload == nil {
		return nil, fmt.Errorf("x402/payment metadata missing payload")
	}

	header, err := encodePaymentHeader(paymentMap)
	if err != nil {
		return nil, fmt.Errorf("unable to encode x402 payment payload: %w", err)
	}

	if header.Version >= 2 {
		if _, ok := paymentMap["resource"].(map[string]any); !ok {
			return nil, fmt.Errorf("x402/payment metadata missing resource for v2 payment")
		}
		if _, ok := paymentMap["accepted"].(map[string]any); !ok {
			return nil, fmt.Errorf("x402/payment metadata missing accepted for v2 payment")
		}
	}

	if params == nil {
		params = map[string]any{}
	}

	if rawHeaders, ok := params["headers"]; ok {
		headers, ok := rawHeaders.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("headers must be an object to set %s", header.Name)
		}
		if _, exists := headers[header.Name]; !exists {
			headers[header.Name] = header.Value
		}
		params["headers"] = headers
		return params, nil
	}

	params["headers"] = map[string]any{
		header.Name: header.Value,
	}
	return params, nil
}

func decodePaymentRequired(resp *http.Response, body []byte) map[string]any {
	if resp == nil {
		return nil
	}
	if paymentRequired := decodePaymentHeader(resp.Header.Get(x402.HeaderPaymentRequired)); paymentRequired != nil {
		return paymentRequired
	}
	if resp.StatusCode != http.StatusPaymentRequired || len(body) == 0 {
		return nil
	}

	// v1 servers carry the challenge in the 402 body instead of a header.
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil
	}
	version, err := x402types.DetectVersion(body)
	if err != nil {
		version, ok := normalizeX402Version(decoded["x402Version"])
		if !ok || version != 1 {
			return nil
		}
	} else if version != 1 {
		return nil
	}
	if _, ok := decoded["accepts"]; !ok {
		return nil
	}
	return decoded
}

func decodePaymentResponse(resp *http.Response) map[string]any {
	if resp == nil {
		return nil
	}
	if paymentResponse := decodePaymentHeader(resp.Header.Get(x402.HeaderPaymentResponse)); paymentResponse != nil {
		return paymentResponse
	}
	return decodePaymentHeader(resp.Header.Get("X-PAYMENT-RESPONSE"))
}

func extractX402Version(payment any) any {
	paymentMap, ok := payment.(map[string]any)
	if !ok {
		return nil
	}
	return paymentMap["x402Version"]
}

func normalizeX402Version(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}
