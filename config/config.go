// Package config loads service configuration from the environment.
// Every option has a default so the service starts with nothing set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration, read once at startup and treated as
// read-only afterwards.
type Config struct {
	Server    ServerConfig
	Payment   PaymentConfig
	Search    SearchConfig
	Identity  IdentityConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port    int
	BaseURL string // public base URL used in challenge resource descriptors
}

// PaymentConfig holds the payment terms offered for the search resource
// and the budgets for facilitator calls.
type PaymentConfig struct {
	FacilitatorURL    string // empty selects the default facilitator
	PayTo             string
	Network           string
	Asset             string
	AssetName         string // EIP-712 domain name of the asset contract
	AssetVersion      string // EIP-712 domain version of the asset contract
	AssetDecimals     int
	Price             string // atomic units, integer string
	MaxTimeoutSeconds int
	VerifyTimeout     time.Duration
	SettleTimeout     time.Duration
}

// SearchConfig selects and tunes the search strategy.
type SearchConfig struct {
	Mode       string // "live" or "static"
	MaxResults int
	Endpoint   string
	Timeout    time.Duration
}

// IdentityConfig points at the on-chain agent identity shown in responses.
// The registry itself is never called at request time.
type IdentityConfig struct {
	ChainID     int64
	Registry    string
	AgentID     string
	ScanBaseURL string
}

// RateLimitConfig tunes the per-client limiter. RequestsPerMinute 0
// disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Load reads the environment and fills in defaults for anything unset or
// unparseable.
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnvInt("PORT", 8080),
			BaseURL: getEnv("RESOURCE_BASE_URL", "http://localhost:8080"),
		},
		Payment: PaymentConfig{
			FacilitatorURL:    getEnv("FACILITATOR_URL", ""),
			PayTo:             getEnv("PAY_TO", "0x8D170Db9aB247E7013d024566093E13dc7b0f181"),
			Network:           getEnv("NETWORK", "eip155:84532"),
			Asset:             getEnv("ASSET", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			AssetName:         getEnv("ASSET_NAME", "USDC"),
			AssetVersion:      getEnv("ASSET_VERSION", "2"),
			AssetDecimals:     getEnvInt("ASSET_DECIMALS", 6),
			Price:             getEnv("PRICE", "1000"),
			MaxTimeoutSeconds: getEnvInt("MAX_TIMEOUT_SECONDS", 300),
			VerifyTimeout:     time.Duration(getEnvInt("VERIFY_TIMEOUT_SECONDS", 10)) * time.Second,
			SettleTimeout:     time.Duration(getEnvInt("SETTLE_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Search: SearchConfig{
			Mode:       strings.ToLower(getEnv("SEARCH_MODE", "live")),
			MaxResults: getEnvInt("SEARCH_MAX_RESULTS", 5),
			Endpoint:   getEnv("SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
			Timeout:    time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Identity: IdentityConfig{
			ChainID:     int64(getEnvInt("AGENT_CHAIN_ID", 84532)),
			Registry:    getEnv("AGENT_REGISTRY", "0x8004f0f2acd41Fc91fD54B39E65Fc3EC29d5383F"),
			AgentID:     getEnv("AGENT_ID", "1"),
			ScanBaseURL: getEnv("SCAN_BASE_URL", "https://sepolia.basescan.org"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_RPM", 300),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 50),
		},
	}

	// Price is offered to clients and to the facilitator as an integer
	// string in the asset's smallest unit. Anything else falls back.
	if !isAtomicAmount(cfg.Payment.Price) {
		cfg.Payment.Price = "1000"
	}
	if cfg.Search.Mode != "static" {
		cfg.Search.Mode = "live"
	}
	if cfg.Search.MaxResults < 1 {
		cfg.Search.MaxResults = 5
	}

	return cfg
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// DisplayPrice renders the atomic price in whole asset units for humans,
// e.g. "0.001 USDC".
func (p PaymentConfig) DisplayPrice() string {
	d, err := decimal.NewFromString(p.Price)
	if err != nil {
		return p.Price + " " + p.AssetName
	}
	return d.Shift(int32(-p.AssetDecimals)).String() + " " + p.AssetName
}

func isAtomicAmount(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
