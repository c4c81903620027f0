// Package mcp exposes the search service to AI agents over the Model
// Context Protocol: resource discovery, a generic proxy for calling
// discovered x402 endpoints, and a payment-gated search tool.
package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/derek2403/MicroSearch/search"
	"github.com/derek2403/MicroSearch/x402"
)

// Server wraps the MCP server and the dependencies its tools need.
type Server struct {
	mcpServer *mcp.Server
	catalog   []CatalogEntry
	gate      *x402.Middleware
	provider  search.Provider
}

// NewServer builds the MCP server and registers its tools. The gate
// applies the same payment terms the HTTP endpoint enforces; provider is
// the same search capability the HTTP endpoint executes.
func NewServer(catalog []CatalogEntry, gate *x402.Middleware, provider search.Provider) *Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "microsearch-discovery",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{},
	)

	s := &Server{
		mcpServer: mcpServer,
		catalog:   catalog,
		gate:      gate,
		provider:  provider,
	}

	s.registerTools()

	return s
}

// Handler returns an http.Handler for the MCP streamable HTTP transport.
// This handler should be mounted at /discovery/mcp.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}
