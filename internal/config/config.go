package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the sniper.
type Config struct {
	General   GeneralConfig   `yaml:"general"`
	RPC       RPCConfig       `yaml:"rpc"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Buy       BuyConfig       `yaml:"buy"`
	Relay     RelayConfig     `yaml:"relay"`
	Safety    SafetyConfig    `yaml:"safety"`
	SnipeList SnipeListConfig `yaml:"snipe_list"`
	Registry  RegistryConfig  `yaml:"registry"`
	Outcome   OutcomeConfig   `yaml:"outcome"`
	NATS      NATSConfig      `yaml:"nats"`
}

type GeneralConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json|text
}

type RPCConfig struct {
	Endpoint   string `yaml:"endpoint"`
	WSEndpoint string `yaml:"ws_endpoint"`
}

type WalletConfig struct {
	// SecretKey is the base58-encoded 64-byte keypair. Usually supplied
	// through ${WALLET_SECRET_KEY} expansion.
	SecretKey string `yaml:"secret_key"`
	// MinSolRequired is the lamport balance below which startup aborts.
	MinSolRequired uint64 `yaml:"min_sol_required"`
}

type BuyConfig struct {
	// AmountLamports is spent per buy, before fees and tip.
	AmountLamports   uint64 `yaml:"amount_lamports"`
	SlippageBps      int    `yaml:"slippage_bps"`
	MaxRetries       int    `yaml:"max_retries"`
	ComputeUnitLimit uint32 `yaml:"compute_unit_limit"`
	ComputeUnitPrice uint64 `yaml:"compute_unit_price"` // micro-lamports per CU
	TipLamports      uint64 `yaml:"tip_lamports"`
	// SupportFeeEnabled sends 1% of the buy amount to SupportFeeAddress.
	SupportFeeEnabled bool   `yaml:"support_fee_enabled"`
	SupportFeeAddress string `yaml:"support_fee_address"`
}

type RelayConfig struct {
	// Endpoints are transaction-submission URLs fanned out to in parallel.
	Endpoints []string `yaml:"endpoints"`
	// TipAccounts are candidate tip recipients; one is picked at random
	// per transaction.
	TipAccounts []string `yaml:"tip_accounts"`
}

type SafetyConfig struct {
	Enabled bool `yaml:"enabled"`
	// MaxCreatorPct is the highest tolerated creator share of supply.
	MaxCreatorPct float64 `yaml:"max_creator_pct"`
	// MaxTopHoldersPct bounds the combined share of the largest holders.
	MaxTopHoldersPct float64 `yaml:"max_top_holders_pct"`
	// MaxSingleHolderPct bounds any one non-custodial holder's share.
	MaxSingleHolderPct float64 `yaml:"max_single_holder_pct"`
	TopHolderCount     int     `yaml:"top_holder_count"`
}

type SnipeListConfig struct {
	// Enabled restricts buys to mints present in the list file.
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type RegistryConfig struct {
	Path string `yaml:"path"`
}

type OutcomeConfig struct {
	Path string `yaml:"path"`
	// ClickHouseDSN enables the optional analytical sink when non-empty.
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

type NATSConfig struct {
	// URL enables the runtime config bus when non-empty.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.RPC.Endpoint == "" {
		cfg.RPC.Endpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.RPC.WSEndpoint == "" {
		cfg.RPC.WSEndpoint = "wss://api.mainnet-beta.solana.com"
	}
	if cfg.Buy.AmountLamports == 0 {
		cfg.Buy.AmountLamports = 10_000_000 // 0.01 SOL
	}
	if cfg.Buy.SlippageBps == 0 {
		cfg.Buy.SlippageBps = 500
	}
	if cfg.Buy.MaxRetries == 0 {
		cfg.Buy.MaxRetries = 3
	}
	if cfg.Buy.ComputeUnitLimit == 0 {
		cfg.Buy.ComputeUnitLimit = 300_000
	}
	if cfg.Buy.ComputeUnitPrice == 0 {
		cfg.Buy.ComputeUnitPrice = 100_000
	}
	if cfg.Buy.TipLamports == 0 {
		cfg.Buy.TipLamports = 1_000_000
	}
	if cfg.Wallet.MinSolRequired == 0 {
		cfg.Wallet.MinSolRequired = 50_000_000 // 0.05 SOL
	}
	if cfg.Safety.MaxCreatorPct == 0 {
		cfg.Safety.MaxCreatorPct = 20
	}
	if cfg.Safety.MaxTopHoldersPct == 0 {
		cfg.Safety.MaxTopHoldersPct = 70
	}
	if cfg.Safety.MaxSingleHolderPct == 0 {
		cfg.Safety.MaxSingleHolderPct = 30
	}
	if cfg.Safety.TopHolderCount == 0 {
		cfg.Safety.TopHolderCount = 10
	}
	if cfg.SnipeList.Path == "" {
		cfg.SnipeList.Path = "pending-snipe-list.txt"
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "pools.db"
	}
	if cfg.Outcome.Path == "" {
		cfg.Outcome.Path = "outcomes.jsonl"
	}
	if len(cfg.Relay.Endpoints) == 0 {
		cfg.Relay.Endpoints = DefaultRelayEndpoints()
	}
	if len(cfg.Relay.TipAccounts) == 0 {
		cfg.Relay.TipAccounts = DefaultTipAccounts()
	}
}

func validate(cfg *Config) error {
	if cfg.Wallet.SecretKey == "" {
		return fmt.Errorf("wallet.secret_key is required")
	}
	if cfg.Buy.SupportFeeEnabled && cfg.Buy.SupportFeeAddress == "" {
		return fmt.Errorf("buy.support_fee_address is required when support fee is enabled")
	}
	return nil
}

// DefaultRelayEndpoints returns the block-engine submission URLs fanned out
// to when the config names none.
func DefaultRelayEndpoints() []string {
	return []string{
		"https://mainnet.block-engine.jito.wtf/api/v1/transactions",
		"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/transactions",
		"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/transactions",
		"https://ny.mainnet.block-engine.jito.wtf/api/v1/transactions",
		"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/transactions",
	}
}

// DefaultTipAccounts returns the known block-engine tip accounts.
func DefaultTipAccounts() []string {
	return []string{
		"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
		"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
		"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
		"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
		"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
		"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
		"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
		"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	}
}
