package x402

import "fmt"

// Documented defaults for the payment terms. Anything left unset in
// BuilderConfig falls back to these, so a zero-config process still
// offers a coherent challenge: USDC on Base Sepolia, 0.001 per request.
const (
	DefaultFacilitatorURL    = "https://x402.org/facilitator"
	DefaultBaseURL           = "http://localhost:8080"
	DefaultPayTo             = "0x8D170Db9aB247E7013d024566093E13dc7b0f181"
	DefaultNetwork           = "eip155:84532"
	DefaultAsset             = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	DefaultAssetName         = "USDC"
	DefaultAssetVersion      = "2"
	DefaultAmount            = "1000"
	DefaultMaxTimeoutSeconds = 300
	DefaultDescription       = "Pay-per-request web search"
)

// BuilderConfig carries the payment terms a Builder offers.
type BuilderConfig struct {
	BaseURL           string // public base URL for resource descriptors
	PayTo             string
	Network           string
	Asset             string
	AssetName         string // EIP-712 domain name of the asset
	AssetVersion      string // EIP-712 domain version of the asset
	Amount            string // atomic units, integer string
	MaxTimeoutSeconds int
	Description       string
}

// Builder produces payment requirements and challenges for priced
// resource paths. Its terms are fixed at construction: the same builder
// yields byte-identical terms for the same path on every call, which is
// what lets verify and settle reconstruct exactly what an unpaid client
// was offered.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder fills defaults for any unset field so challenge production
// can never fail.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PayTo == "" {
		cfg.PayTo = DefaultPayTo
	}
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	if cfg.Asset == "" {
		cfg.Asset = DefaultAsset
	}
	if cfg.AssetName == "" {
		cfg.AssetName = DefaultAssetName
	}
	if cfg.AssetVersion == "" {
		cfg.AssetVersion = DefaultAssetVersion
	}
	if cfg.Amount == "" {
		cfg.Amount = DefaultAmount
	}
	if cfg.MaxTimeoutSeconds <= 0 {
		cfg.MaxTimeoutSeconds = DefaultMaxTimeoutSeconds
	}
	if cfg.Description == "" {
		cfg.Description = DefaultDescription
	}
	return &Builder{cfg: cfg}
}

// Requirement returns the single payment alternative offered for the
// resource. The extra block carries the asset's EIP-712 signing domain so
// a client can produce a compliant authorization offline.
func (b *Builder) Requirement() PaymentRequirements {
	return PaymentRequirements{
		Scheme:            "exact",
		Network:           b.cfg.Network,
		Amount:            b.cfg.Amount,
		Asset:             b.cfg.Asset,
		PayTo:             b.cfg.PayTo,
		MaxTimeoutSeconds: b.cfg.MaxTimeoutSeconds,
		Extra: map[string]interface{}{
			"name":    b.cfg.AssetName,
			"version": b.cfg.AssetVersion,
		},
	}
}

// Build constructs the challenge for a resource path.
func (b *Builder) Build(resourcePath string) *PaymentChallenge {
	return &PaymentChallenge{
		X402Version: X402Version,
		Error:       fmt.Sprintf("Payment required to access %s", resourcePath),
		Resource: &ResourceInfo{
			URL:         b.cfg.BaseURL + resourcePath,
			Description: b.cfg.Description,
			MimeType:    "application/json",
		},
		Accepts: []PaymentRequirements{b.Requirement()},
	}
}

// ResourceURL returns the public URL of a resource path as it appears in
// challenge descriptors and discovery entries.
func (b *Builder) ResourceURL(resourcePath string) string {
	return b.cfg.BaseURL + resourcePath
}
