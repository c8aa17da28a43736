package config

import (
	"strings"
	"time"
)

const (
	SepoliaChainID         = 11155111
	DefaultToleranceBips   = 100
	DefaultExplorerURL     = "https://sepolia.etherscan.io"
	DefaultIPFSGateway     = "https://ipfs.io/ipfs/"
	DefaultRPCURL          = "https://ethereum-sepolia-rpc.publicnode.com"
	DefaultGatewayListen   = ":8088"
	DefaultPassphraseEnv   = "BKC_KEYSTORE_PASSPHRASE"
	defaultRequestTimeout  = 15 * time.Second
	defaultGatewayTimeout  = 10 * time.Second
	defaultViewTimeout     = 20 * time.Second
	defaultRateLimitPerMin = 120
	defaultRateLimitBurst  = 30
)

// DefaultContracts is the Sepolia deployment.
var DefaultContracts = ContractsConfig{
	Token:             "0x3d178F42c948646BB5a5eA74DF8F5fE2185bFD95",
	DelegationManager: "0x6C4EF8fc2D2dcA25e3eB2AB2F21b9E7E554442bF",
	RewardManager:     "0xe5440738D6C7e27c43A3FCECf7cf32eCf55101bA",
	RewardBoosterNFT:  "0x5aE62209c1635C150573c318BC8d3B36EecFe177",
	NFTBondingCurve:   "0x1471D83065A6bC1A849f0d4D362b1a86a023D6FB",
	ActionsManager:    "0xB35ab889f12f05F3c17457055989cd5b8406CE43",
	PublicSale:        "0xbD544F8F954Dd7b82B6d0f406a375F80AAD27793",
}

// DefaultBoosterTiers lists the store tiers from highest to lowest boost.
func DefaultBoosterTiers() []BoosterTier {
	return []BoosterTier{
		{Name: "Diamond", BoostBips: 5000, Image: "https://ipfs.io/ipfs/bafybeign2k73pq5pdicg2v2jdgumavw6kjmc4nremdenzvq27ngtcusv5i"},
		{Name: "Platinum", BoostBips: 4000, Image: "https://ipfs.io/ipfs/bafybeiag32gp4wssbjbpxjwxewer64fecrtjryhmnhhevgec74p4ltzrau"},
		{Name: "Gold", BoostBips: 3000, Image: "https://ipfs.io/ipfs/bafybeido6ah36xn4rpzkvl5avicjzf225ndborvx726sjzpzbpvoogntem"},
		{Name: "Silver", BoostBips: 2000, Image: "https://ipfs.io/ipfs/bafybeiaktaw4op7zrvsiyx2sghphrgm6sej6xw362mxgu326ahljjyu3gu"},
		{Name: "Bronze", BoostBips: 1000, Image: "https://ipfs.io/ipfs/bafybeifkke3zepb4hjutntcv6vor7t2e4k5oseaur54v5zsectcepgseye"},
	}
}

// Default returns a configuration targeting the Sepolia deployment.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "sepolia"
	}
	n := &cfg.Network
	if n.RPCURL == "" {
		n.RPCURL = DefaultRPCURL
	}
	if n.ChainID == 0 {
		n.ChainID = SepoliaChainID
	}
	if n.ChainName == "" && n.ChainID == SepoliaChainID {
		n.ChainName = "Sepolia"
	}
	if n.ExplorerURL == "" && n.ChainID == SepoliaChainID {
		n.ExplorerURL = DefaultExplorerURL
	}
	if n.IPFSGateway == "" {
		n.IPFSGateway = DefaultIPFSGateway
	}
	if n.RequestTimeout.Duration == 0 {
		n.RequestTimeout.Duration = defaultRequestTimeout
	}

	c := &cfg.Contracts
	if *c == (ContractsConfig{}) {
		*c = DefaultContracts
	}

	if cfg.Wallet.PassphraseEnv == "" {
		cfg.Wallet.PassphraseEnv = DefaultPassphraseEnv
	}
	if cfg.Transactions.ApprovalToleranceBips == 0 {
		cfg.Transactions.ApprovalToleranceBips = DefaultToleranceBips
	}

	g := &cfg.Gateway
	if g.Listen == "" {
		g.Listen = DefaultGatewayListen
	}
	if g.RateLimitPerMinute == 0 {
		g.RateLimitPerMinute = defaultRateLimitPerMin
	}
	if g.RateLimitBurst == 0 {
		g.RateLimitBurst = defaultRateLimitBurst
	}
	if g.ReadTimeout.Duration == 0 {
		g.ReadTimeout.Duration = defaultGatewayTimeout
	}
	if g.WriteTimeout.Duration == 0 {
		g.WriteTimeout.Duration = 2 * defaultViewTimeout
	}
	if g.ViewTimeout.Duration == 0 {
		g.ViewTimeout.Duration = defaultViewTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if len(cfg.BoosterTiers) == 0 {
		cfg.BoosterTiers = DefaultBoosterTiers()
	}
}
