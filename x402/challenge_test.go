package x402

import (
	"bytes"
	"encoding/json"
	"testing"
)

func testBuilder() *Builder {
	return NewBuilder(BuilderConfig{
		BaseURL:           "https://search.example.com",
		PayTo:             "0x8D170Db9aB247E7013d024566093E13dc7b0f181",
		Network:           "eip155:84532",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		AssetName:         "USDC",
		AssetVersion:      "2",
		Amount:            "1000",
		MaxTimeoutSeconds: 300,
	})
}

func TestBuildChallenge(t *testing.T) {
	t.Parallel()

	ch := testBuilder().Build("/search")

	if ch.X402Version != 2 {
		t.Fatalf("expected x402Version 2, got %d", ch.X402Version)
	}
	if ch.Error != "Payment required to access /search" {
		t.Fatalf("unexpected error text: %q", ch.Error)
	}
	if ch.Resource == nil {
		t.Fatalf("expected resource info")
	}
	if ch.Resource.URL != "https://search.example.com/search" {
		t.Fatalf("unexpected resource url: %q", ch.Resource.URL)
	}
	if ch.Resource.MimeType != "application/json" {
		t.Fatalf("unexpected mime type: %q", ch.Resource.MimeType)
	}
	if len(ch.Accepts) != 1 {
		t.Fatalf("expected exactly one payment requirement, got %d", len(ch.Accepts))
	}

	req := ch.Accepts[0]
	if req.Scheme != "exact" {
		t.Fatalf("unexpected scheme: %q", req.Scheme)
	}
	if req.Network != "eip155:84532" {
		t.Fatalf("unexpected network: %q", req.Network)
	}
	if req.Amount != "1000" {
		t.Fatalf("unexpected amount: %q", req.Amount)
	}
	if req.Asset != "0x036CbD53842c5426634e7929541eC2318f3dCF7e" {
		t.Fatalf("unexpected asset: %q", req.Asset)
	}
	if req.PayTo != "0x8D170Db9aB247E7013d024566093E13dc7b0f181" {
		t.Fatalf("unexpected payTo: %q", req.PayTo)
	}
	if req.MaxTimeoutSeconds != 300 {
		t.Fatalf("unexpected maxTimeoutSeconds: %d", req.MaxTimeoutSeconds)
	}
	if req.Extra["name"] != "USDC" || req.Extra["version"] != "2" {
		t.Fatalf("unexpected extra: %#v", req.Extra)
	}
}

func TestChallengeDeterminism(t *testing.T) {
	t.Parallel()

	b := testBuilder()

	first, err := json.Marshal(b.Build("/search"))
	if err != nil {
		t.Fatalf("marshal first challenge: %v", err)
	}
	second, err := json.Marshal(b.Build("/search"))
	if err != nil {
		t.Fatalf("marshal second challenge: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("challenges for the same path differ:\n%s\n%s", first, second)
	}
}

func TestRequirementFreshExtra(t *testing.T) {
	t.Parallel()

	b := testBuilder()

	first := b.Requirement()
	first.Extra["name"] = "mutated"

	second := b.Requirement()
	if second.Extra["name"] != "USDC" {
		t.Fatalf("requirement extra leaked between calls: %#v", second.Extra)
	}
}

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuilderConfig{})
	req := b.Requirement()

	if req.Network != DefaultNetwork {
		t.Fatalf("expected default network, got %q", req.Network)
	}
	if req.Asset != DefaultAsset {
		t.Fatalf("expected default asset, got %q", req.Asset)
	}
	if req.Amount != DefaultAmount {
		t.Fatalf("expected default amount, got %q", req.Amount)
	}
	if req.MaxTimeoutSeconds != DefaultMaxTimeoutSeconds {
		t.Fatalf("expected default timeout, got %d", req.MaxTimeoutSeconds)
	}

	ch := b.Build("/search")
	if ch.Resource.URL != DefaultBaseURL+"/search" {
		t.Fatalf("expected default base url in resource, got %q", ch.Resource.URL)
	}
	if ch.Resource.Description != DefaultDescription {
		t.Fatalf("expected default description, got %q", ch.Resource.Description)
	}
}

func TestResourceURL(t *testing.T) {
	t.Parallel()

	b := testBuilder()
	if got := b.ResourceURL("/search"); got != "https://search.example.com/search" {
		t.Fatalf("unexpected resource url: %q", got)
	}
}
