package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/derek2403/MicroSearch/config"
	"github.com/derek2403/MicroSearch/metrics"
	"github.com/derek2403/MicroSearch/search"
	"github.com/derek2403/MicroSearch/x402"
	"github.com/gin-gonic/gin"
)

// SearchResponse is the 200 body for a paid search.
type SearchResponse struct {
	Query         string          `json:"query"`
	Results       []search.Result `json:"results"`
	Pricing       Pricing         `json:"pricing"`
	SearchMode    string          `json:"search_mode"`
	AgentIdentity AgentIdentity   `json:"agent_identity"`
	Payment       *PaymentReceipt `json:"payment,omitempty"`
}

// Pricing describes what one request costs.
type Pricing struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Unit     string `json:"unit"`
}

// AgentIdentity points at the on-chain identity of the serving agent.
// It is display data only; the registry is never called while serving.
type AgentIdentity struct {
	Standard   string `json:"standard"`
	ChainID    int64  `json:"chain_id"`
	Contract   string `json:"contract"`
	TokenID    string `json:"token_id"`
	ProfileURL string `json:"profile_url"`
}

// PaymentReceipt confirms a settled payment.
type PaymentReceipt struct {
	Transaction string `json:"transaction"`
	Payer       string `json:"payer"`
}

// SearchHandler sequences one paid search request: validate the query,
// challenge or verify the payment, run the search, settle, respond. It
// keeps no state between requests, so every invalid attempt simply gets
// a fresh challenge and a clean retry.
type SearchHandler struct {
	builder     *x402.Builder
	facilitator *x402.Client
	provider    search.Provider
	pricing     Pricing
	identity    AgentIdentity
}

// NewSearchHandler wires the payment gate around the search provider.
func NewSearchHandler(cfg *config.Config, builder *x402.Builder, facilitator *x402.Client, provider search.Provider) *SearchHandler {
	return &SearchHandler{
		builder:     builder,
		facilitator: facilitator,
		provider:    provider,
		pricing: Pricing{
			Currency: cfg.Payment.AssetName,
			Amount:   cfg.Payment.Price,
			Unit:     "atomic",
		},
		identity: AgentIdentity{
			Standard:   "ERC-8004",
			ChainID:    cfg.Identity.ChainID,
			Contract:   cfg.Identity.Registry,
			TokenID:    cfg.Identity.AgentID,
			ProfileURL: fmt.Sprintf("%s/nft/%s/%s", cfg.Identity.ScanBaseURL, cfg.Identity.Registry, cfg.Identity.AgentID),
		},
	}
}

// Handle serves GET /search.
func (h *SearchHandler) Handle(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing required query parameter: q",
		})
		return
	}

	log.Printf("payment headers present (PAYMENT-SIGNATURE=%t X-PAYMENT=%t)",
		c.Request.Header.Get(x402.HeaderPayment) != "",
		c.Request.Header.Get(x402.HeaderPaymentLegacy) != "")

	token, ok := x402.ExtractToken(c.Request.Header)
	if !ok {
		h.challenge(c)
		return
	}

	verdict := h.facilitator.Verify(c.Request.Context(), token)
	metrics.ObserveVerification(verdict.IsValid)
	if !verdict.IsValid {
		log.Printf("payment verification failed (path=%s reason=%s)", c.Request.URL.Path, verdict.InvalidReason)
		h.challenge(c)
		return
	}

	results, mode := h.provider.Execute(c.Request.Context(), query)
	metrics.ObserveSearch(mode)

	// The deliverable is earned once verification passed; a client gone
	// mid-request must not abort the settlement call.
	settlement := h.facilitator.Settle(context.WithoutCancel(c.Request.Context()), token)
	metrics.ObserveSettlement(settlement.Success)

	resp := SearchResponse{
		Query:         query,
		Results:       results,
		Pricing:       h.pricing,
		SearchMode:    mode,
		AgentIdentity: h.identity,
	}
	if settlement.Success {
		if encoded, err := x402.EncodeHeader(settlement); err == nil {
			c.Header(x402.HeaderPaymentResponse, encoded)
		}
		if settlement.Transaction != "" {
			resp.Payment = &PaymentReceipt{
				Transaction: settlement.Transaction,
				Payer:       settlement.Payer,
			}
		}
		log.Printf("payment settled (network=%s transaction=%s payer=%s)",
			settlement.Network, settlement.Transaction, settlement.Payer)
	} else {
		// The client already earned the 200. A failed settlement is an
		// operational problem, never a client-facing rejection.
		log.Printf("payment settlement failed (reason=%s)", settlement.ErrorReason)
	}

	c.JSON(http.StatusOK, resp)
}

// challenge answers 402 with the payment terms, both as the body and
// transport-encoded in the PAYMENT-REQUIRED header.
func (h *SearchHandler) challenge(c *gin.Context) {
	ch := h.builder.Build(c.Request.URL.Path)
	if encoded, err := x402.EncodeHeader(ch); err == nil {
		c.Header(x402.HeaderPaymentRequired, encoded)
	}
	c.Header("WWW-Authenticate", fmt.Sprintf("x402 facilitator=%q", h.facilitator.BaseURL()))
	c.JSON(http.StatusPaymentRequired, ch)
}
