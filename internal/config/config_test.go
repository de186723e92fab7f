package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
wallet:
  secret_key: testsecret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.General.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.General.LogLevel)
	}
	if cfg.Buy.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.Buy.MaxRetries)
	}
	if cfg.Buy.SlippageBps != 500 {
		t.Errorf("expected default slippage 500, got %d", cfg.Buy.SlippageBps)
	}
	if len(cfg.Relay.Endpoints) != 5 {
		t.Errorf("expected 5 default relay endpoints, got %d", len(cfg.Relay.Endpoints))
	}
	if len(cfg.Relay.TipAccounts) != 8 {
		t.Errorf("expected 8 default tip accounts, got %d", len(cfg.Relay.TipAccounts))
	}
	if cfg.Safety.TopHolderCount != 10 {
		t.Errorf("expected default top holder count 10, got %d", cfg.Safety.TopHolderCount)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_WALLET_SECRET", "expandedsecret")

	path := writeConfig(t, `
wallet:
  secret_key: ${TEST_WALLET_SECRET}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Wallet.SecretKey != "expandedsecret" {
		t.Errorf("expected env-expanded secret, got %q", cfg.Wallet.SecretKey)
	}
}

func TestLoad_RequiresWalletSecret(t *testing.T) {
	path := writeConfig(t, `
buy:
  slippage_bps: 100
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing wallet secret")
	}
}

func TestLoad_SupportFeeRequiresAddress(t *testing.T) {
	path := writeConfig(t, `
wallet:
  secret_key: testsecret
buy:
  support_fee_enabled: true
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for support fee without address")
	}
}

func TestRuntimeHolder_SnapshotAndUpdate(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Wallet.SecretKey = "secret1"

	holder := NewRuntimeHolder(cfg)

	snap := holder.Snapshot()
	if snap.SlippageBps != 500 {
		t.Errorf("expected slippage 500, got %d", snap.SlippageBps)
	}

	holder.Update(func(r *Runtime) { r.SlippageBps = 250 })

	if got := holder.Snapshot().SlippageBps; got != 250 {
		t.Errorf("expected slippage 250 after update, got %d", got)
	}
	if snap.SlippageBps != 500 {
		t.Error("previous snapshot must be unaffected by updates")
	}
	if got := holder.Snapshot().WalletSecret; got != "secret1" {
		t.Errorf("unrelated fields must survive an update, got %q", got)
	}
}
