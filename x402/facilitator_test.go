package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func encodeTestToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal token payload: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(FacilitatorConfig{URL: srv.URL}, testBuilder(), 0, 0)
}

func TestVerifyValid(t *testing.T) {
	t.Parallel()

	token := encodeTestToken(t, map[string]any{
		"x402Version": 2,
		"payload":     map[string]any{"signature": "0xabc"},
	})

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/verify" {
			t.Errorf("expected /verify, got %s", r.URL.Path)
		}

		var body struct {
			PaymentPayload      json.RawMessage `json:"paymentPayload"`
			PaymentRequirements map[string]any  `json:"paymentRequirements"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(body.PaymentPayload, &payload); err != nil {
			t.Errorf("paymentPayload is not decoded JSON: %v", err)
		}
		if payload["x402Version"] != float64(2) {
			t.Errorf("expected decoded token payload, got %s", body.PaymentPayload)
		}
		if body.PaymentRequirements["scheme"] != "exact" {
			t.Errorf("expected requirement scheme exact, got %v", body.PaymentRequirements["scheme"])
		}
		if body.PaymentRequirements["payTo"] != "0x8D170Db9aB247E7013d024566093E13dc7b0f181" {
			t.Errorf("expected requirement payTo, got %v", body.PaymentRequirements["payTo"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isValid":true,"payer":"0xPayer"}`))
	})

	verdict := client.Verify(context.Background(), token)
	if !verdict.IsValid {
		t.Fatalf("expected valid verdict, got %+v", verdict)
	}
	if verdict.Payer != "0xPayer" {
		t.Fatalf("expected payer carried through, got %q", verdict.Payer)
	}
}

func TestVerifyInvalidReasonCarriedThrough(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isValid":false,"invalidReason":"authorization expired"}`))
	})

	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	verdict := client.Verify(context.Background(), token)
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict")
	}
	if verdict.InvalidReason != "authorization expired" {
		t.Fatalf("expected facilitator reason, got %q", verdict.InvalidReason)
	}
}

func TestVerifyNon2xxBecomesInvalid(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	verdict := client.Verify(context.Background(), token)
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict for 502")
	}
	if !strings.Contains(verdict.InvalidReason, "502") {
		t.Fatalf("expected status in reason, got %q", verdict.InvalidReason)
	}
	if !strings.Contains(verdict.InvalidReason, "bad gateway") {
		t.Fatalf("expected body snippet in reason, got %q", verdict.InvalidReason)
	}
}

func TestVerifyUnparseableResponseBecomesInvalid(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	verdict := client.Verify(context.Background(), token)
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict for unparseable body")
	}
	if verdict.InvalidReason == "" {
		t.Fatalf("expected a diagnostic reason")
	}
}

func TestVerifyUndecodableTokenSkipsFacilitator(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"isValid":true}`))
	})

	verdict := client.Verify(context.Background(), "!!!not-a-token!!!")
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict for undecodable token")
	}
	if verdict.InvalidReason == "" {
		t.Fatalf("expected a decode reason")
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no facilitator call, got %d", calls.Load())
	}
}

func TestSettleForwardsFacilitatorResult(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("expected /settle, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"transaction":"0xT1","network":"eip155:84532","payer":"0xPayer"}`))
	})

	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	settlement := client.Settle(context.Background(), token)
	if settlement == nil {
		t.Fatalf("expected settlement outcome")
	}
	if !settlement.Success {
		t.Fatalf("expected success, got %+v", settlement)
	}
	if settlement.Transaction != "0xT1" {
		t.Fatalf("expected transaction carried through, got %q", settlement.Transaction)
	}
	if settlement.Payer != "0xPayer" {
		t.Fatalf("expected payer carried through, got %q", settlement.Payer)
	}
	if settlement.Network != Network("eip155:84532") {
		t.Fatalf("expected network carried through, got %q", settlement.Network)
	}
}

func TestSettleFailureIsOutcomeNotError(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"errorReason":"insufficient_funds"}`))
	})

	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	settlement := client.Settle(context.Background(), token)
	if settlement.Success {
		t.Fatalf("expected failed settlement")
	}
	if settlement.ErrorReason != "insufficient_funds" {
		t.Fatalf("expected facilitator reason, got %q", settlement.ErrorReason)
	}
}

func TestSettleNon2xx(t *testing.T) {
	t.Parallel()

	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	settlement := client.Settle(context.Background(), token)
	if settlement.Success {
		t.Fatalf("expected failed settlement for 500")
	}
	if !strings.Contains(settlement.ErrorReason, "500") {
		t.Fatalf("expected status in reason, got %q", settlement.ErrorReason)
	}
}

func TestSettleUndecodableTokenSkipsFacilitator(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success":true}`))
	})

	settlement := client.Settle(context.Background(), "%%%")
	if settlement == nil || settlement.Success {
		t.Fatalf("expected failed settlement for undecodable token, got %+v", settlement)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no facilitator call, got %d", calls.Load())
	}
}

type stubAuth struct{}

func (stubAuth) AuthHeaders(_ context.Context, _ string, route string) (map[string]string, error) {
	return map[string]string{"Authorization": "Bearer test-" + route}, nil
}

func TestAuthHeadersApplied(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"isValid":true}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(FacilitatorConfig{URL: srv.URL, Auth: stubAuth{}}, testBuilder(), 0, 0)
	token := encodeTestToken(t, map[string]any{"x402Version": 2})
	client.Verify(context.Background(), token)

	if got, _ := gotAuth.Load().(string); got != "Bearer test-/verify" {
		t.Fatalf("expected auth header on verify call, got %q", got)
	}
}

func TestNewClientNormalizesURL(t *testing.T) {
	t.Parallel()

	client := NewClient(FacilitatorConfig{URL: "https://pay.example.com/x402/"}, testBuilder(), 0, 0)
	if client.BaseURL() != "https://pay.example.com/x402" {
		t.Fatalf("expected trailing slash trimmed, got %q", client.BaseURL())
	}

	client = NewClient(FacilitatorConfig{}, testBuilder(), 0, 0)
	if client.BaseURL() != DefaultFacilitatorURL {
		t.Fatalf("expected default facilitator, got %q", client.BaseURL())
	}
}
