package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/derek2403/MicroSearch/metrics"
	"github.com/derek2403/MicroSearch/search"
	"github.com/derek2403/MicroSearch/x402"
)

// registerTools registers the discovery, proxy, and paid search tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_resources",
		Title:       "Search x402 Resources",
		Description: "Discover x402 resources served here. Use searchQuery to filter by text. Execute a returned tool via proxy_tool_call with a payment attached in meta x402/payment.",
		Meta: map[string]any{
			"x402/usage": map[string]any{
				"step": "discover",
				"next": "proxy_tool_call",
			},
		},
		OutputSchema: searchResourcesOutputSchema(),
	}, s.SearchResources)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "proxy_tool_call",
		Title:       "Execute x402 Resource",
		Description: "Executes a discovered x402 resource. Provide toolName and parameters. Use search_resources to discover available resources.",
		Meta: map[string]any{
			"x402/usage": map[string]any{
				"step": "execute",
				"via":  "proxy_tool_call",
			},
		},
	}, s.ProxyToolCall)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "web_search",
		Title:       "Paid Web Search",
		Description: "Runs a web search for the given query. Attach payment in meta x402/payment; unpaid calls receive the terms in meta x402/payment-required.",
		Meta: map[string]any{
			x402.MetaKeyPaymentRequired: s.gate.Challenge("web_search"),
		},
	}, x402.WrapToolHandler(s.gate, "web_search", s.WebSearch))
}

// SearchResourcesParams defines parameters for the search_resources tool.
type SearchResourcesParams struct {
	// SearchQuery free-form search string to filter available resources.
	SearchQuery string `json:"searchQuery,omitempty" jsonschema:"Search string for filtering resources"`
	// Limit optional pagination limit.
	Limit *int `json:"limit,omitempty"       jsonschema:"Optional pagination limit"`
	// Offset optional pagination offset.
	Offset *int `json:"offset,omitempty"      jsonschema:"Optional pagination offset"`
}

// SearchResourcesPagination defines pagination for the search_resources tool output.
type SearchResourcesPagination struct {
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`
	Total  *int `json:"total,omitempty"`
}

// SearchResourcesOutput defines the structured output for the search_resources tool.
type SearchResourcesOutput struct {
	Pagination  SearchResourcesPagination `json:"pagination"`
	X402Version int                       `json:"x402Version"`
	Tools       []*mcp.Tool               `json:"tools,omitempty"`
}

// ProxyToolCallParams defines parameters for the proxy_tool_call tool.
type ProxyToolCallParams struct {
	// ToolName is the name of the tool to proxy.
	ToolName string `json:"toolName"             jsonschema:"Tool name to proxy,required"`
	// Parameters is the input for the proxied tool call.
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"Tool parameters for the proxied call"`
}

// WebSearchParams defines parameters for the web_search tool.
type WebSearchParams struct {
	// Query is the search string.
	Query string `json:"query" jsonschema:"Search query,required"`
}

// WebSearchOutput is the structured result of a paid search.
type WebSearchOutput struct {
	Query      string          `json:"query"`
	Results    []search.Result `json:"results"`
	SearchMode string          `json:"search_mode"`
}

// SearchResources lists the catalog entries matching the search query.
// This method is exported for testing purposes.
func (s *Server) SearchResources(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params *SearchResourcesParams,
) (*mcp.CallToolResult, SearchResourcesOutput, error) {
	filtered := filterEntries(s.catalog, params.SearchQuery)
	paged, pagination := paginateEntries(filtered, params.Limit, params.Offset)
	tools := make([]*mcp.Tool, 0, len(paged))
	for _, entry := range paged {
		if tool := entryToTool(entry); tool != nil {
			tools = append(tools, tool)
		}
	}

	return nil, SearchResourcesOutput{
		Pagination:  pagination,
		X402Version: x402.X402Version,
		Tools:       tools,
	}, nil
}

// ProxyToolCall proxies a call to an HTTP x402 resource and returns an MCP response.
func (s *Server) ProxyToolCall(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params *ProxyToolCallParams,
) (*mcp.CallToolResult, any, error) {
	if params.ToolName == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: "Error: 'toolName' parameter is required.",
				},
			},
			IsError: true,
		}, nil, nil
	}

	parameters := params.Parameters
	if req != nil && req.Params != nil {
		if meta := req.Params.GetMeta(); meta != nil {
			if payment, ok := meta[x402.MetaKeyPayment]; ok && payment != nil {
				var err error
				parameters, err = injectPaymentSignature(parameters, payment)
				if err != nil {
					return &mcp.CallToolResult{
						Content: []mcp.Content{
							&mcp.TextContent{
								Text: fmt.Sprintf("Error: invalid x402 payment metadata: %v", err),
							},
						},
						IsError: true,
					}, nil, nil
				}
			}
		}
	}

	entry, err := findEntryForToolName(s.catalog, params.ToolName)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: err.Error(),
				},
			},
			IsError: true,
		}, nil, nil
	}

	httpReq, err := proxyRequest(ctx, *entry, parameters)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build proxy request: %w", err)
	}

	httpResp, err := proxyHTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer httpResp.Body.Close()

	result, err := httpResponseToMCPResult(httpResp)
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

// WebSearch executes the payment-gated search tool. Payment checks wrap
// it at registration; by the time it runs, verification already passed.
// This method is exported for testing purposes.
func (s *Server) WebSearch(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params *WebSearchParams,
) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: "Error: 'query' parameter is required.",
				},
			},
			IsError: true,
		}, nil, nil
	}

	results, mode := s.provider.Execute(ctx, query)
	metrics.ObserveSearch(mode)

	out := WebSearchOutput{
		Query:      query,
		Results:    results,
		SearchMode: mode,
	}
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal search output: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: string(body),
			},
		},
		StructuredContent: out,
	}, nil, nil
}

func searchResourcesOutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pagination": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit":  map[string]any{"type": "integer"},
					"offset": map[string]any{"type": "integer"},
					"total":  map[string]any{"type": "integer"},
				},
				"additionalProperties": false,
			},
			"x402Version": map[string]any{"type": "integer"},
			"tools": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"_meta":       map[string]any{"type": "object", "additionalProperties": true},
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"inputSchema": map[string]any{"type": "object", "additionalProperties": true},
						"outputSchema": map[string]any{
							"type":                 "object",
							"additionalProperties": true,
						},
						"title": map[string]any{"type": "string"},
						"annotations": map[string]any{
							"type":                 "object",
							"additionalProperties": true,
						},
					},
					"additionalProperties": false,
				},
			},
		},
		"additionalProperties": false,
	}
}
