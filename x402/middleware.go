package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Middleware wraps MCP tool handlers with the same payment gate the HTTP
// endpoint runs: challenge on missing payment, facilitator verification
// before the handler, settlement after it. Payment material travels in
// tool call meta instead of HTTP headers.
type Middleware struct {
	builder *Builder
	client  *Client
}

// NewMiddleware builds a gate from the shared challenge builder and
// facilitator client.
func NewMiddleware(builder *Builder, client *Client) *Middleware {
	return &Middleware{builder: builder, client: client}
}

// Challenge returns the payment terms for a tool, shaped like the HTTP
// 402 body.
func (m *Middleware) Challenge(toolName string) *PaymentChallenge {
	ch := m.builder.Build("/tools/" + toolName)
	ch.Resource.Description = fmt.Sprintf("MCP tool: %s", toolName)
	return ch
}

// WrapToolHandler gates an MCP tool handler behind payment verification.
// Settlement failure never voids a result the client already earned; it
// only omits the receipt meta.
func WrapToolHandler[In, Out any](
	m *Middleware,
	toolName string,
	handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error),
) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		var zero Out

		payload, err := paymentFromMeta(extractMeta(req))
		if err != nil {
			return challengeResult(m.Challenge(toolName), err.Error()), zero, nil
		}
		if payload == nil {
			return challengeResult(m.Challenge(toolName), ""), zero, nil
		}

		verdict := m.client.VerifyPayload(ctx, payload)
		if !verdict.IsValid {
			log.Printf("mcp payment verification failed (tool=%s reason=%s)", toolName, verdict.InvalidReason)
			return challengeResult(m.Challenge(toolName), verdict.InvalidReason), zero, nil
		}

		result, out, err := handler(ctx, req, input)
		if err != nil {
			return result, out, err
		}

		// A client gone mid-call must not abort an earned settlement.
		settlement := m.client.SettlePayload(context.WithoutCancel(ctx), payload)
		if result == nil {
			result = &mcp.CallToolResult{}
		}
		if settlement.Success {
			if result.Meta == nil {
				result.Meta = make(map[string]interface{})
			}
			result.Meta[MetaKeyPaymentResponse] = settlement
		} else {
			log.Printf("mcp settlement failed (tool=%s reason=%s)", toolName, settlement.ErrorReason)
		}
		return result, out, nil
	}
}

// paymentFromMeta pulls the payment payload out of call meta. A missing
// payment returns nil with no error; it is the normal unpaid case.
func paymentFromMeta(meta map[string]interface{}) (json.RawMessage, error) {
	raw, ok := meta[MetaKeyPayment]
	if !ok || raw == nil {
		return nil, nil
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid payment format: %w", err)
	}
	return payload, nil
}

// challengeResult renders a challenge as a tool error with the challenge
// in both content and meta, mirroring the HTTP 402 shape.
func challengeResult(ch *PaymentChallenge, reason string) *mcp.CallToolResult {
	if reason != "" {
		ch.Error = reason
	}
	body, _ := json.Marshal(ch)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(body)},
		},
		Meta: map[string]interface{}{
			MetaKeyPaymentRequired: ch,
		},
	}
}

// extractMeta copies the _meta field from a tool call request.
func extractMeta(req *mcp.CallToolRequest) map[string]interface{} {
	if req.Params.Meta == nil {
		return make(map[string]interface{})
	}
	result := make(map[string]interface{})
	for k, v := range req.Params.Meta {
		result[k] = v
	}
	return result
}
