package x402

import (
	"encoding/base64"
	"net/http"
	"testing"
)

func TestExtractToken(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set(HeaderPayment, "token-a")

	token, ok := ExtractToken(h)
	if !ok || token != "token-a" {
		t.Fatalf("expected token-a, got %q ok=%t", token, ok)
	}
}

func TestExtractTokenLegacyFallback(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set(HeaderPaymentLegacy, "legacy-token")

	token, ok := ExtractToken(h)
	if !ok || token != "legacy-token" {
		t.Fatalf("expected legacy-token, got %q ok=%t", token, ok)
	}
}

func TestExtractTokenPrecedence(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set(HeaderPayment, "current")
	h.Set(HeaderPaymentLegacy, "legacy")

	token, ok := ExtractToken(h)
	if !ok || token != "current" {
		t.Fatalf("expected current header to win, got %q ok=%t", token, ok)
	}
}

func TestExtractTokenAbsent(t *testing.T) {
	t.Parallel()

	if _, ok := ExtractToken(http.Header{}); ok {
		t.Fatalf("expected no token on empty headers")
	}

	h := http.Header{}
	h.Set(HeaderPayment, "   ")
	if _, ok := ExtractToken(h); ok {
		t.Fatalf("expected whitespace-only header to count as absent")
	}
}

func TestExtractTokenCaseInsensitive(t *testing.T) {
	t.Parallel()

	req, err := http.NewRequest(http.MethodGet, "http://example.com/search", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("payment-signature", "lower-token")

	token, ok := ExtractToken(req.Header)
	if !ok || token != "lower-token" {
		t.Fatalf("expected case-insensitive lookup, got %q ok=%t", token, ok)
	}
}

func TestDecodeToken(t *testing.T) {
	t.Parallel()

	payload := `{"x402Version":2,"payload":{"signature":"0xabc"}}`

	decoded, err := DecodeToken(base64.StdEncoding.EncodeToString([]byte(payload)))
	if err != nil {
		t.Fatalf("decode padded token: %v", err)
	}
	if string(decoded) != payload {
		t.Fatalf("unexpected payload: %s", decoded)
	}

	decoded, err = DecodeToken(base64.RawStdEncoding.EncodeToString([]byte(payload)))
	if err != nil {
		t.Fatalf("decode unpadded token: %v", err)
	}
	if string(decoded) != payload {
		t.Fatalf("unexpected payload: %s", decoded)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := DecodeToken("!!!not-base64!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}

	notJSON := base64.StdEncoding.EncodeToString([]byte("plain text"))
	if _, err := DecodeToken(notJSON); err == nil {
		t.Fatalf("expected error for non-JSON payload")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := EncodeHeader(map[string]any{"success": true, "network": "eip155:84532"})
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}

	var decoded map[string]any
	if err := DecodeHeader(encoded, &decoded); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if decoded["success"] != true || decoded["network"] != "eip155:84532" {
		t.Fatalf("unexpected decode: %#v", decoded)
	}
}
