package x402

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	cdpjwt "github.com/coinbase/cdp-sdk/go/auth"
)

const (
	CoinbaseFacilitatorBaseURL = "https://api.cdp.coinbase.com"
	CoinbaseFacilitatorV2Route = "/platform/v2/x402"

	x402SDKVersion = "0.7.3"
	cdpSDKVersion  = "1.29.0"
)

// CoinbaseAuthProvider signs facilitator requests with CDP API keys. The
// Coinbase-hosted facilitator expects a JWT bound to the exact method,
// host, and path of each call.
type CoinbaseAuthProvider struct {
	apiKeyID     string
	apiKeySecret string
	requestHost  string
	basePath     string
}

// NewCoinbaseAuthProvider builds a provider for calls to facilitatorURL.
func NewCoinbaseAuthProvider(apiKeyID, apiKeySecret, facilitatorURL string) *CoinbaseAuthProvider {
	host, basePath := splitFacilitatorURL(facilitatorURL)
	return &CoinbaseAuthProvider{
		apiKeyID:     apiKeyID,
		apiKeySecret: apiKeySecret,
		requestHost:  host,
		basePath:     basePath,
	}
}

// AuthHeaders implements AuthProvider.
func (p *CoinbaseAuthProvider) AuthHeaders(_ context.Context, method, route string) (map[string]string, error) {
	headers := map[string]string{
		"Correlation-Context": correlationHeader(),
	}
	if p.apiKeyID == "" || p.apiKeySecret == "" {
		return headers, nil
	}
	jwt, err := cdpjwt.GenerateJWT(cdpjwt.JwtOptions{
		KeyID:         p.apiKeyID,
		KeySecret:     p.apiKeySecret,
		RequestMethod: method,
		RequestHost:   p.requestHost,
		RequestPath:   p.basePath + route,
	})
	if err != nil {
		return nil, fmt.Errorf("generate JWT: %w", err)
	}
	headers["Authorization"] = "Bearer " + jwt
	return headers, nil
}

// FacilitatorConfigFromEnv resolves where the facilitator lives. An
// explicit URL wins; otherwise configured CDP keys select the
// Coinbase-hosted facilitator, with the public default as last resort.
// CDP keys attach JWT auth when the resolved URL is Coinbase's.
func FacilitatorConfigFromEnv(explicitURL string) FacilitatorConfig {
	apiKeyID := strings.TrimSpace(os.Getenv("CDP_API_KEY"))
	apiKeySecret := strings.TrimSpace(os.Getenv("CDP_API_KEY_SECRET"))

	facilitatorURL := strings.TrimSpace(explicitURL)
	if facilitatorURL == "" {
		if apiKeyID != "" || apiKeySecret != "" {
			facilitatorURL = CoinbaseFacilitatorBaseURL + CoinbaseFacilitatorV2Route
		} else {
			facilitatorURL = DefaultFacilitatorURL
		}
	}

	cfg := FacilitatorConfig{URL: facilitatorURL}
	if apiKeyID != "" && apiKeySecret != "" && strings.Contains(facilitatorURL, "coinbase") {
		cfg.Auth = NewCoinbaseAuthProvider(apiKeyID, apiKeySecret, facilitatorURL)
	}
	return cfg
}

func correlationHeader() string {
	data := map[string]string{
		"sdk_version":    cdpSDKVersion,
		"sdk_language":   "go",
		"source":         "x402",
		"source_version": x402SDKVersion,
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, url.QueryEscape(data[key])))
	}
	return strings.Join(parts, ",")
}

func splitFacilitatorURL(raw string) (host, basePath string) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimPrefix(raw, "https://"), ""
	}
	return parsed.Host, strings.TrimRight(parsed.Path, "/")
}
