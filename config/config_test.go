package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsTargetSepolia(t *testing.T) {
	t.Setenv(RPCURLEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.ChainID != SepoliaChainID {
		t.Fatalf("chain id = %d", cfg.Network.ChainID)
	}
	if cfg.Transactions.ApprovalToleranceBips != 100 {
		t.Fatalf("tolerance = %d", cfg.Transactions.ApprovalToleranceBips)
	}
	addrs, err := cfg.Addresses()
	if err != nil {
		t.Fatalf("addresses: %v", err)
	}
	if addrs[chain.RoleToken] != common.HexToAddress("0x3d178F42c948646BB5a5eA74DF8F5fE2185bFD95") {
		t.Fatalf("token address = %s", addrs[chain.RoleToken].Hex())
	}
	if len(addrs) != len(chain.Roles) {
		t.Fatalf("expected every role bound, got %d", len(addrs))
	}
	if len(cfg.BoosterTiers) != 5 || cfg.BoosterTiers[0].Name != "Diamond" {
		t.Fatalf("unexpected tiers: %+v", cfg.BoosterTiers)
	}
	if tier, ok := cfg.TierByBips(3000); !ok || tier.Name != "Gold" {
		t.Fatalf("tier lookup = %+v %v", tier, ok)
	}
}

func TestLoadTOML(t *testing.T) {
	t.Setenv(RPCURLEnv, "")
	path := writeFile(t, "bkc.toml", `
environment = "local"

[network]
rpc_url = "http://127.0.0.1:8545"
chain_id = 31337
request_timeout = "3s"

[contracts]
token = "0x0000000000000000000000000000000000000001"
delegation_manager = "0x0000000000000000000000000000000000000002"
reward_manager = "0x0000000000000000000000000000000000000003"
actions_manager = "0x0000000000000000000000000000000000000006"

[gateway]
view_timeout = "45s"
allowed_origins = ["http://localhost:3000"]

[[booster_tiers]]
name = "Test"
boost_bips = 1500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.RequestTimeout.Duration != 3*time.Second {
		t.Fatalf("request timeout = %s", cfg.Network.RequestTimeout)
	}
	if cfg.Gateway.ViewTimeout.Duration != 45*time.Second {
		t.Fatalf("view timeout = %s", cfg.Gateway.ViewTimeout)
	}
	if cfg.Network.ExplorerURL != "" {
		t.Fatalf("explorer should stay empty off Sepolia, got %q", cfg.Network.ExplorerURL)
	}
	addrs, err := cfg.Addresses()
	if err != nil {
		t.Fatalf("addresses: %v", err)
	}
	if _, ok := addrs[chain.RoleBooster]; ok {
		t.Fatalf("booster should be omitted")
	}
	if len(cfg.BoosterTiers) != 1 || cfg.BoosterTiers[0].BoostBips != 1500 {
		t.Fatalf("tiers = %+v", cfg.BoosterTiers)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	t.Setenv(RPCURLEnv, "http://override:8545")
	path := writeFile(t, "bkc.yaml", `
network:
  chain_id: 11155111
transactions:
  approval_tolerance_bips: 250
  receipt_timeout: 2m
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network.RPCURL != "http://override:8545" {
		t.Fatalf("rpc url = %q", cfg.Network.RPCURL)
	}
	if cfg.Transactions.ApprovalToleranceBips != 250 || cfg.Transactions.ReceiptTimeout.Duration != 2*time.Minute {
		t.Fatalf("transactions = %+v", cfg.Transactions)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv(RPCURLEnv, "")
	cases := map[string]string{
		"unknown key":      "bogus = 1\n",
		"bad address":      "[contracts]\ntoken = \"nope\"\ndelegation_manager = \"0x0000000000000000000000000000000000000002\"\n",
		"missing required": "[contracts]\ntoken = \"0x0000000000000000000000000000000000000001\"\n",
		"tolerance":        "[transactions]\napproval_tolerance_bips = 20000\n",
		"duplicate tier":   "[[booster_tiers]]\nname = \"A\"\nboost_bips = 1000\n[[booster_tiers]]\nname = \"B\"\nboost_bips = 1000\n",
		"bad duration":     "[network]\nrequest_timeout = \"soon\"\n",
	}
	for name, contents := range cases {
		path := writeFile(t, "bad.toml", contents)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Setenv(RPCURLEnv, "")
	for _, name := range []string{"out.toml", "out.yaml"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		if err := Write(path, Default()); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(raw), "15s") {
			t.Fatalf("%s: durations should be written as strings:\n%s", name, raw)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("reload %s: %v", name, err)
		}
		if cfg.Contracts != DefaultContracts {
			t.Fatalf("%s: contracts changed across round trip", name)
		}
	}
}
