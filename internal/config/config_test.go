package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.Sale.UnitPrice != "0.3" || cfg.Sale.TokenDecimals != 6 {
		t.Fatalf("sale defaults = %+v", cfg.Sale)
	}
	if cfg.Assets.TotalArtCount != 117 {
		t.Fatalf("TotalArtCount = %d, want 117", cfg.Assets.TotalArtCount)
	}
	if cfg.Chain.FeedWindow != 1000 {
		t.Fatalf("FeedWindow = %d, want 1000", cfg.Chain.FeedWindow)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packmint.yaml")
	contents := `
listen: ":9090"
chain:
  rpc_url: https://rpc.example.com
  pack_address: "0x3434343434343434343434343434343434343434"
sale:
  unit_price: "0.5"
assets:
  collection_cid: bafycollection
  gateways:
    - https://a.example.com/ipfs/
    - https://b.example.com/ipfs/
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	if cfg.Chain.RPCURL != "https://rpc.example.com" {
		t.Fatalf("RPCURL = %q", cfg.Chain.RPCURL)
	}
	if cfg.Sale.UnitPrice != "0.5" {
		t.Fatalf("UnitPrice = %q", cfg.Sale.UnitPrice)
	}
	if got := cfg.BaseLocator(); got != "ipfs://bafycollection/" {
		t.Fatalf("BaseLocator() = %q", got)
	}
	if len(cfg.Assets.Gateways) != 2 {
		t.Fatalf("Gateways = %v", cfg.Assets.Gateways)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PACKMINT_RPC_URL", "https://env.example.com")
	t.Setenv("PACKMINT_UNIT_PRICE", "0.25")
	t.Setenv("PACKMINT_GATEWAYS", "https://x.example/ipfs/, https://y.example/ipfs/")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Chain.RPCURL != "https://env.example.com" {
		t.Fatalf("RPCURL = %q", cfg.Chain.RPCURL)
	}
	if cfg.Sale.UnitPrice != "0.25" {
		t.Fatalf("UnitPrice = %q", cfg.Sale.UnitPrice)
	}
	if len(cfg.Assets.Gateways) != 2 || cfg.Assets.Gateways[1] != "https://y.example/ipfs/" {
		t.Fatalf("Gateways = %v", cfg.Assets.Gateways)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("PACKMINT_TOTAL_ART_COUNT", "-1")

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected validation error for negative art count")
	}
}

func TestBaseLocatorEmptyWithoutCID(t *testing.T) {
	cfg := Default()
	if got := cfg.BaseLocator(); got != "" {
		t.Fatalf("BaseLocator() = %q, want empty", got)
	}
}
