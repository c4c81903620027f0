package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Facilitator call budgets. Verification sits on the interactive request
// path; settlement waits out on-chain confirmation.
const (
	DefaultVerifyTimeout = 10 * time.Second
	DefaultSettleTimeout = 60 * time.Second
)

const maxFacilitatorResponseBytes = 1 << 20

// AuthProvider supplies auth headers for a facilitator call about to be
// made with the given method and route ("/verify", "/settle").
type AuthProvider interface {
	AuthHeaders(ctx context.Context, method, route string) (map[string]string, error)
}

// FacilitatorConfig locates the facilitator and optionally authenticates
// to it.
type FacilitatorConfig struct {
	URL  string
	Auth AuthProvider
}

// Client performs verify and settle calls against the facilitator. Every
// failure mode (undecodable token, transport error, timeout, non-2xx
// status, unparseable body) comes back as a negative outcome value
// rather than an error: the orchestrator owns the policy, the client owns
// the translation.
type Client struct {
	baseURL    string
	auth       AuthProvider
	builder    *Builder
	verifyHTTP *http.Client
	settleHTTP *http.Client
}

// NewClient builds a facilitator client bound to the payment terms of
// builder. Non-positive timeouts fall back to the defaults.
func NewClient(cfg FacilitatorConfig, builder *Builder, verifyTimeout, settleTimeout time.Duration) *Client {
	url := strings.TrimRight(cfg.URL, "/")
	if url == "" {
		url = DefaultFacilitatorURL
	}
	if verifyTimeout <= 0 {
		verifyTimeout = DefaultVerifyTimeout
	}
	if settleTimeout <= 0 {
		settleTimeout = DefaultSettleTimeout
	}
	return &Client{
		baseURL:    url,
		auth:       cfg.Auth,
		builder:    builder,
		verifyHTTP: &http.Client{Timeout: verifyTimeout},
		settleHTTP: &http.Client{Timeout: settleTimeout},
	}
}

// BaseURL reports the facilitator endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// facilitatorRequest is the body shape shared by /verify and /settle.
type facilitatorRequest struct {
	PaymentPayload      json.RawMessage     `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// Verify checks a transport-encoded payment token. A token that does not
// decode is rejected locally without a facilitator call.
func (c *Client) Verify(ctx context.Context, token string) VerifyResult {
	payload, err := DecodeToken(token)
	if err != nil {
		return VerifyResult{InvalidReason: err.Error()}
	}
	return c.VerifyPayload(ctx, payload)
}

// VerifyPayload checks an already-decoded payment payload against the
// terms currently offered for the resource.
func (c *Client) VerifyPayload(ctx context.Context, payload json.RawMessage) VerifyResult {
	status, body, err := c.post(ctx, c.verifyHTTP, "/verify", payload)
	if err != nil {
		return VerifyResult{InvalidReason: fmt.Sprintf("facilitator verify: %v", err)}
	}
	if status < 200 || status > 299 {
		return VerifyResult{InvalidReason: fmt.Sprintf("facilitator verify returned %d: %s", status, bodySnippet(body))}
	}
	var out VerifyResult
	if err := json.Unmarshal(body, &out); err != nil {
		return VerifyResult{InvalidReason: fmt.Sprintf("facilitator verify: bad response: %v", err)}
	}
	return out
}

// Settle finalizes a verified payment on-chain via the facilitator. A
// token that does not decode fails locally without a facilitator call.
func (c *Client) Settle(ctx context.Context, token string) *SettleResponse {
	payload, err := DecodeToken(token)
	if err != nil {
		return &SettleResponse{ErrorReason: err.Error()}
	}
	return c.SettlePayload(ctx, payload)
}

// SettlePayload settles an already-decoded payment payload. The
// facilitator's result shape is forwarded as-is on success of the
// transport; everything else becomes an unsuccessful outcome carrying the
// diagnostic detail.
func (c *Client) SettlePayload(ctx context.Context, payload json.RawMessage) *SettleResponse {
	status, body, err := c.post(ctx, c.settleHTTP, "/settle", payload)
	if err != nil {
		return &SettleResponse{ErrorReason: fmt.Sprintf("facilitator settle: %v", err)}
	}
	if status < 200 || status > 299 {
		return &SettleResponse{ErrorReason: fmt.Sprintf("facilitator settle returned %d: %s", status, bodySnippet(body))}
	}
	var out SettleResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return &SettleResponse{ErrorReason: fmt.Sprintf("facilitator settle: bad response: %v", err)}
	}
	return &out
}

func (c *Client) post(ctx context.Context, hc *http.Client, route string, payload json.RawMessage) (int, []byte, error) {
	reqBody, err := json.Marshal(facilitatorRequest{
		PaymentPayload:      payload,
		PaymentRequirements: c.builder.Requirement(),
	})
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != nil {
		headers, err := c.auth.AuthHeaders(ctx, http.MethodPost, route)
		if err != nil {
			return 0, nil, fmt.Errorf("auth headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFacilitatorResponseBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	if s == "" {
		return "<empty body>"
	}
	return s
}
