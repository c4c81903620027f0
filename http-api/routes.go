package httpapi

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/derek2403/MicroSearch/config"
	mcpserver "github.com/derek2403/MicroSearch/mcp"
	"github.com/derek2403/MicroSearch/metrics"
	"github.com/derek2403/MicroSearch/ratelimit"
	"github.com/derek2403/MicroSearch/search"
	"github.com/derek2403/MicroSearch/x402"
)

// Resource is the human-readable discovery listing entry.
type Resource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URI         string `json:"uri"`
	Price       string `json:"price"`
}

// DiscoveryListResponse mirrors the facilitator discovery list format so
// agents can consume /discovery/x402 with the same client code.
type DiscoveryListResponse struct {
	X402Version int                      `json:"x402Version"`
	Items       []mcpserver.CatalogEntry `json:"items"`
	Pagination  DiscoveryPagination      `json:"pagination"`
}

type DiscoveryPagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// NewRouter builds the Gin engine with all HTTP routes registered: the
// paid search endpoint, discovery routes, the MCP transport, health, and
// metrics.
func NewRouter(cfg *config.Config) *gin.Engine {
	builder := x402.NewBuilder(x402.BuilderConfig{
		BaseURL:           cfg.Server.BaseURL,
		PayTo:             cfg.Payment.PayTo,
		Network:           cfg.Payment.Network,
		Asset:             cfg.Payment.Asset,
		AssetName:         cfg.Payment.AssetName,
		AssetVersion:      cfg.Payment.AssetVersion,
		Amount:            cfg.Payment.Price,
		MaxTimeoutSeconds: cfg.Payment.MaxTimeoutSeconds,
	})
	facilitator := x402.NewClient(
		x402.FacilitatorConfigFromEnv(cfg.Payment.FacilitatorURL),
		builder,
		cfg.Payment.VerifyTimeout,
		cfg.Payment.SettleTimeout,
	)
	provider := search.NewProvider(search.Config{
		Mode:       cfg.Search.Mode,
		MaxResults: cfg.Search.MaxResults,
		Endpoint:   cfg.Search.Endpoint,
		Timeout:    cfg.Search.Timeout,
	})
	handler := NewSearchHandler(cfg, builder, facilitator, provider)
	catalog := mcpserver.DefaultCatalog(builder)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("panic recovered (path=%s): %v", c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	}))
	r.Use(requestIDMiddleware())
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BurstSize:         cfg.RateLimit.Burst,
		CleanupInterval:   time.Minute,
	})
	r.Use(limiter.Middleware())
	r.Use(metrics.Middleware())
	attachPaymentLogging(r)

	r.GET("/search", handler.Handle)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	registerDiscoveryRoutes(r, catalog, cfg.Payment.DisplayPrice())
	registerMCPRoute(r, catalog, x402.NewMiddleware(builder, facilitator), provider)

	return r
}

// attachPaymentLogging records whether the gated route was called with a
// payment header. Presence only; token contents never reach the log.
func attachPaymentLogging(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/search") {
			_, present := x402.ExtractToken(c.Request.Header)
			log.Printf("search request (path=%s payment_header=%t)", c.Request.URL.Path, present)
		}
		c.Next()
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func registerDiscoveryRoutes(r *gin.Engine, catalog []mcpserver.CatalogEntry, displayPrice string) {
	// GET /discovery/resources - human-readable list of paid resources
	r.GET("/discovery/resources", func(c *gin.Context) {
		resources := make([]Resource, 0, len(catalog))
		for i, entry := range catalog {
			res := Resource{
				ID:    strconv.Itoa(i + 1),
				URI:   entry.Resource,
				Price: displayPrice + " per request",
			}
			if entry.Metadata != nil {
				res.Name = entry.Metadata.Name
				res.Description = entry.Metadata.Description
			}
			resources = append(resources, res)
		}
		c.JSON(http.StatusOK, gin.H{
			"resources": resources,
		})
	})

	// GET /discovery/x402 - machine-readable x402 discovery list
	r.GET("/discovery/x402", func(c *gin.Context) {
		c.JSON(http.StatusOK, DiscoveryListResponse{
			X402Version: x402.X402Version,
			Items:       catalog,
			Pagination: DiscoveryPagination{
				Limit:  len(catalog),
				Offset: 0,
				Total:  len(catalog),
			},
		})
	})
}

func registerMCPRoute(
	r *gin.Engine,
	catalog []mcpserver.CatalogEntry,
	gate *x402.Middleware,
	provider search.Provider,
) {
	// MCP streamable HTTP endpoint
	discoveryServer := mcpserver.NewServer(catalog, gate, provider)
	r.Any("/discovery/mcp", gin.WrapH(discoveryServer.Handler()))
}
