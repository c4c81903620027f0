package mcp

import (
	"net/http"
	"strings"
	"time"

	"github.com/derek2403/MicroSearch/x402"
)

// CatalogEntry is a discoverable x402 resource plus the request shape the
// proxy tool needs to call it. The JSON shape matches the facilitator
// discovery list format (resource, type, x402Version, accepts,
// lastUpdated, metadata).
type CatalogEntry struct {
	Resource    string                     `json:"resource"`
	Type        string                     `json:"type"`
	X402Version int                        `json:"x402Version"`
	Accepts     []x402.PaymentRequirements `json:"accepts"`
	LastUpdated string                     `json:"lastUpdated"`
	Metadata    *ResourceMetadata          `json:"metadata,omitempty"`

	// Proxy request shape; not part of the discovery wire format.
	Method      string            `json:"-"`
	QueryParams map[string]string `json:"-"`
}

// ResourceMetadata describes a catalog entry for humans and agents.
type ResourceMetadata struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Provider    string   `json:"provider,omitempty"`
}

// DefaultCatalog lists the resources this service exposes for discovery.
// Entries are derived from the challenge builder so the advertised terms
// are the same ones the HTTP endpoint enforces.
func DefaultCatalog(builder *x402.Builder) []CatalogEntry {
	ch := builder.Build("/search")
	return []CatalogEntry{
		{
			Resource:    ch.Resource.URL,
			Type:        "http",
			X402Version: ch.X402Version,
			Accepts:     ch.Accepts,
			LastUpdated: time.Now().UTC().Format(time.RFC3339),
			Metadata: &ResourceMetadata{
				Name:        "Web Search",
				Description: ch.Resource.Description,
				Category:    "data",
				Tags:        []string{"search", "web", "x402"},
				Provider:    "MicroSearch",
			},
			Method:      http.MethodGet,
			QueryParams: map[string]string{"q": "Search query string"},
		},
	}
}

// filterEntries keeps entries whose URL or metadata matches the query.
func filterEntries(items []CatalogEntry, query string) []CatalogEntry {
	if query == "" {
		return items
	}
	query = strings.ToLower(query)
	filtered := make([]CatalogEntry, 0, len(items))
	for _, item := range items {
		if entryMatches(item, query) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func entryMatches(entry CatalogEntry, query string) bool {
	if strings.Contains(strings.ToLower(entry.Resource), query) {
		return true
	}
	if entry.Metadata == nil {
		return false
	}
	if strings.Contains(strings.ToLower(entry.Metadata.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Metadata.Description), query) {
		return true
	}
	for _, tag := range entry.Metadata.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func paginateEntries(
	items []CatalogEntry,
	limit *int,
	offset *int,
) ([]CatalogEntry, SearchResourcesPagination) {
	total := len(items)
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
		if start > total {
			start = total
		}
	}
	end := total
	if limit != nil && *limit >= 0 {
		end = start + *limit
		if end > total {
			end = total
		}
	}
	paged := items[start:end]

	var limitPtr *int
	if limit != nil {
		value := *limit
		limitPtr = &value
	}
	var offsetPtr *int
	if offset != nil {
		value := *offset
		offsetPtr = &value
	}
	totalPtr := total

	return paged, SearchResourcesPagination{
		Limit:  limitPtr,
		Offset: offsetPtr,
		Total:  &totalPtr,
	}
}
