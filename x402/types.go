// Package x402 implements the payment gate for the search service:
// challenge construction, payment token extraction, and the facilitator
// client that verifies and settles payment authorizations.
package x402

import (
	x402sdk "github.com/coinbase/x402/go"
	"github.com/coinbase/x402/go/types"
)

// X402Version is the protocol version spoken by this service.
const X402Version = 2

// HTTP headers carrying payment material.
const (
	HeaderPayment         = "PAYMENT-SIGNATURE"
	HeaderPaymentLegacy   = "X-PAYMENT"
	HeaderPaymentRequired = "PAYMENT-REQUIRED"
	HeaderPaymentResponse = "PAYMENT-RESPONSE"
)

// MCP tool calls carry the same material under meta keys instead of
// headers.
const (
	MetaKeyPayment         = "x402/payment"
	MetaKeyPaymentResponse = "x402/payment-response"
	MetaKeyPaymentRequired = "x402/payment-required"
)

// Type aliases for coinbase SDK types used on the wire.
type (
	PaymentRequirements = types.PaymentRequirements
	PaymentPayload      = types.PaymentPayload
	PaymentRequired     = types.PaymentRequired
	ResourceInfo        = types.ResourceInfo
	SettleResponse      = x402sdk.SettleResponse
	Network             = x402sdk.Network
)

// PaymentChallenge is the 402 response body: the terms under which a
// resource can be bought. Challenges are recomputed per request and never
// stored, so two challenges for the same path carry identical terms.
type PaymentChallenge struct {
	X402Version int                    `json:"x402Version"`
	Error       string                 `json:"error,omitempty"`
	Resource    *ResourceInfo          `json:"resource"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// VerifyResult is the facilitator's answer to a verification request, or
// a locally produced negative when the facilitator was never reached.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	Payer         string `json:"payer,omitempty"`
	InvalidReason string `json:"invalidReason,omitempty"`
}
