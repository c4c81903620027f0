package mcp

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/derek2403/MicroSearch/x402"
)

const maxProxyResponseBytes = 1 << 20 // 1MB

var proxyHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// entryToTool renders a catalog entry as a callable MCP tool descriptor.
// Only HTTP resources are callable through the proxy.
func entryToTool(entry CatalogEntry) *mcp.Tool {
	if !strings.EqualFold(entry.Type, "http") {
		return nil
	}

	description := fmt.Sprintf("Proxy call to %s", entry.Resource)
	if entry.Metadata != nil && entry.Metadata.Description != "" {
		description = entry.Metadata.Description
	}
	description = fmt.Sprintf("%s Use proxy_tool_call with payment to execute.", strings.TrimSpace(description))

	toolName := toolNameForEntry(entry)
	tool := &mcp.Tool{
		Name:        toolName,
		Description: description,
		InputSchema: proxyInputSchema(entry),
	}
	if meta := pricingMeta(entry, description, toolName); meta != nil {
		tool.Meta = meta
	}
	if tool.Meta == nil {
		tool.Meta = map[string]any{}
	}
	tool.Meta["x402/call-with"] = map[string]any{
		"tool": "proxy_tool_call",
	}
	return tool
}

// toolNameForEntry derives a stable tool name from the entry's method and
// URL. The hash suffix keeps names unique when sanitizing collapses
// distinct URLs to the same slug.
func toolNameForEntry(entry CatalogEntry) string {
	sanitized := sanitizeToolName(entry.Resource)
	methodPrefix := ""
	if entry.Method != "" {
		methodPrefix = sanitizeToolName(strings.ToLower(entry.Method)) + "_"
	}
	hash := sha1.Sum([]byte(entry.Method + ":" + entry.Resource))
	return fmt.Sprintf("x402_%s%s_%s", methodPrefix, sanitized, hex.EncodeToString(hash[:4]))
}

func sanitizeToolName(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "resource"
	}
	return s
}

func proxyInputSchema(entry CatalogEntry) map[string]any {
	parametersProps := map[string]any{}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"parameters": map[string]any{
				"type":       "object",
				"properties": parametersProps,
			},
		},
	}

	if entry.Method != "" {
		schema["description"] = fmt.Sprintf("HTTP %s to %s", strings.ToUpper(entry.Method), entry.Resource)
	}

	if len(entry.QueryParams) > 0 {
		queryProps := map[string]any{}
		for key, description := range entry.QueryParams {
			prop := map[string]any{
				"type": "string",
			}
			if description != "" {
				prop["description"] = description
			}
			queryProps[key] = prop
		}
		parametersProps["query"] = map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"description":          "Query parameters to include on the request.",
			"properties":           queryProps,
		}
	}

	if len(parametersProps) > 0 {
		schema["required"] = []string{"parameters"}
	}

	return schema
}

// pricingMeta surfaces the entry's payment terms under the
// x402/payment-required meta key so agents can pay without a probe call.
func pricingMeta(entry CatalogEntry, description, toolName string) map[string]any {
	if len(entry.Accepts) == 0 {
		return nil
	}

	acceptsList := make([]map[string]any, 0, len(entry.Accepts))
	for _, requirement := range entry.Accepts {
		acceptsList = append(acceptsList, map[string]any{
			"scheme":            requirement.Scheme,
			"network":           requirement.Network,
			"amount":            requirement.Amount,
			"asset":             requirement.Asset,
			"payTo":             requirement.PayTo,
			"maxTimeoutSeconds": requirement.MaxTimeoutSeconds,
			"extra":             requirement.Extra,
		})
	}

	return map[string]any{
		x402.MetaKeyPaymentRequired: map[string]any{
			"x402Version": entry.X402Version,
			"resource": map[string]any{
				"url":         fmt.Sprintf("mcp://tool/%s", toolName),
				"description": description,
				"mimeType":    "application/json",
			},
			"accepts": acceptsList,
		},
	}
}

func findEntryForToolName(items []CatalogEntry, toolName string) (*CatalogEntry, error) {
	for idx := range items {
		entry := items[idx]
		if entryToTool(entry) == nil {
			continue
		}
		if toolNameForEntry(entry) == toolName {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("tool %q not found", toolName)
}

func proxyRequest(
	ctx context.Context,
	entry CatalogEntry,
	params map[string]any,
) (*http.Request, error) {
	method := entry.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint, err := url.Parse(entry.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource url: %w", err)
	}

	query := endpoint.Query()
	if params != nil {
		if rawQuery, ok := params["query"].(map[string]any); ok {
			for key, value := range rawQuery {
				query.Set(key, fmt.Sprint(value))
			}
		}
	}
	endpoint.RawQuery = query.Encode()

	var body io.Reader
	if params != nil {
		if rawBody, ok := params["body"]; ok && rawBody != nil {
			payload, err := json.Marshal(rawBody)
			if err != nil {
				return nil, fmt.Errorf("invalid body payload: %w", err)
			}
			body = bytes.NewReader(payload)
			if method == http.MethodGet {
				method = http.MethodPost
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if params != nil {
		if rawHeaders, ok := params["headers"].(map[string]any); ok {
			for key, value := range rawHeaders {
				req.Header.Set(key, fmt.Sprint(value))
			}
		}
	}

	return req, nil
}

func httpResponseToMCPResult(resp *http.Response) (*mcp.CallToolResult, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy response: %w", err)
	}

	if paymentRequired := decodePaymentRequired(resp, bodyBytes); paymentRequired != nil {
		contentJSON, err := json.Marshal(paymentRequired)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payment-required payload: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: string(contentJSON),
				},
			},
			StructuredContent: paymentRequired,
			IsError:           true,
		}, nil
	}

	payload := map[string]any{
		"status":  resp.StatusCode,
		"headers": resp.Header,
		"body":    string(bodyBytes),
	}

	contentJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proxy response: %w", err)
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: string(contentJSON),
			},
		},
		IsError: resp.StatusCode >= http.StatusBadRequest,
	}

	if paymentResponse := decodePaymentResponse(resp); paymentResponse != nil {
		result.Meta = map[string]any{
			x402.MetaKeyPaymentResponse: paymentResponse,
		}
	}

	return result, nil
}

func decodePaymentHeader(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var decoded map[string]any
	if err := x402.DecodeHeader(raw, &decoded); err != nil {
		return nil
	}
	return decoded
}
