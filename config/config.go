package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RPCURLEnv overrides Network.RPCURL when set.
const RPCURLEnv = "BKC_RPC_URL"

// Duration wraps time.Duration to support human readable strings in both
// YAML and TOML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText parses durations for TOML and flags.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// MarshalYAML mirrors MarshalText.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Config is the full client configuration shared by the CLI and gateway.
type Config struct {
	Environment  string             `toml:"environment" yaml:"environment"`
	Network      NetworkConfig      `toml:"network" yaml:"network"`
	Contracts    ContractsConfig    `toml:"contracts" yaml:"contracts"`
	Wallet       WalletConfig       `toml:"wallet" yaml:"wallet"`
	Transactions TransactionsConfig `toml:"transactions" yaml:"transactions"`
	Gateway      GatewayConfig      `toml:"gateway" yaml:"gateway"`
	Logging      LoggingConfig      `toml:"logging" yaml:"logging"`
	Telemetry    TelemetryConfig    `toml:"telemetry" yaml:"telemetry"`
	BoosterTiers []BoosterTier      `toml:"booster_tiers" yaml:"booster_tiers"`
}

// NetworkConfig selects the chain and its public endpoints.
type NetworkConfig struct {
	RPCURL         string   `toml:"rpc_url" yaml:"rpc_url"`
	ChainID        uint64   `toml:"chain_id" yaml:"chain_id"`
	ChainName      string   `toml:"chain_name" yaml:"chain_name"`
	ExplorerURL    string   `toml:"explorer_url" yaml:"explorer_url"`
	IPFSGateway    string   `toml:"ipfs_gateway" yaml:"ipfs_gateway"`
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout"`
}

// ContractsConfig lists the deployed contract addresses. The booster and
// bonding curve may be left empty on deployments without the store.
type ContractsConfig struct {
	Token             string `toml:"token" yaml:"token"`
	DelegationManager string `toml:"delegation_manager" yaml:"delegation_manager"`
	RewardManager     string `toml:"reward_manager" yaml:"reward_manager"`
	RewardBoosterNFT  string `toml:"reward_booster_nft" yaml:"reward_booster_nft"`
	NFTBondingCurve   string `toml:"nft_bonding_curve" yaml:"nft_bonding_curve"`
	ActionsManager    string `toml:"actions_manager" yaml:"actions_manager"`
	PublicSale        string `toml:"public_sale" yaml:"public_sale"`
}

// WalletConfig locates the signing key and the watched-asset store.
type WalletConfig struct {
	KeystorePath  string `toml:"keystore" yaml:"keystore"`
	PassphraseEnv string `toml:"passphrase_env" yaml:"passphrase_env"`
	WatchlistPath string `toml:"watchlist" yaml:"watchlist"`
}

// TransactionsConfig tunes the orchestrator.
type TransactionsConfig struct {
	ApprovalToleranceBips uint64 `toml:"approval_tolerance_bips" yaml:"approval_tolerance_bips"`
	// ReceiptTimeout bounds how long a command waits for a receipt. Zero waits
	// until the process is interrupted.
	ReceiptTimeout Duration `toml:"receipt_timeout" yaml:"receipt_timeout"`
}

// GatewayConfig configures the read-only HTTP API.
type GatewayConfig struct {
	Listen             string   `toml:"listen" yaml:"listen"`
	RateLimitPerMinute float64  `toml:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RateLimitBurst     int      `toml:"rate_limit_burst" yaml:"rate_limit_burst"`
	ReadTimeout        Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       Duration `toml:"write_timeout" yaml:"write_timeout"`
	ViewTimeout        Duration `toml:"view_timeout" yaml:"view_timeout"`
	AllowedOrigins     []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
	Traces   bool   `toml:"traces" yaml:"traces"`
	Metrics  bool   `toml:"metrics" yaml:"metrics"`
	Headers  string `toml:"headers" yaml:"headers"`
}

// BoosterTier describes one booster NFT tier offered by the store.
type BoosterTier struct {
	Name      string `toml:"name" yaml:"name"`
	BoostBips uint64 `toml:"boost_bips" yaml:"boost_bips"`
	Image     string `toml:"image" yaml:"image"`
}

// Load reads configuration from path. YAML is used for .yaml/.yml files and
// TOML otherwise. An empty path yields the built-in defaults. Missing fields
// are filled from Default and the result is validated.
func Load(path string) (Config, error) {
	cfg := Config{}
	path = strings.TrimSpace(path)
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyDefaults(&cfg)
	if v := strings.TrimSpace(os.Getenv(RPCURLEnv)); v != "" {
		cfg.Network.RPCURL = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
		}
	}
	return nil
}

// Write persists cfg to path in the format implied by its extension.
func Write(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return toml.NewEncoder(f).Encode(cfg)
	}
}
