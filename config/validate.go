package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
)

// MaxToleranceBips caps the approval headroom at 100%.
const MaxToleranceBips = 10_000

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network.RPCURL) == "" {
		return fmt.Errorf("network: rpc_url must be configured")
	}
	if _, err := url.Parse(cfg.Network.RPCURL); err != nil {
		return fmt.Errorf("network: rpc_url: %w", err)
	}
	if cfg.Network.ChainID == 0 {
		return fmt.Errorf("network: chain_id must be configured")
	}
	if _, err := cfg.Addresses(); err != nil {
		return err
	}
	if pub := strings.TrimSpace(cfg.Contracts.PublicSale); pub != "" && !common.IsHexAddress(pub) {
		return fmt.Errorf("contracts: public_sale %q is not a hex address", pub)
	}
	if cfg.Transactions.ApprovalToleranceBips > MaxToleranceBips {
		return fmt.Errorf("transactions: approval_tolerance_bips %d exceeds %d", cfg.Transactions.ApprovalToleranceBips, MaxToleranceBips)
	}
	if cfg.Gateway.RateLimitPerMinute < 0 || cfg.Gateway.RateLimitBurst < 0 {
		return fmt.Errorf("gateway: rate limits must not be negative")
	}
	seen := make(map[uint64]string, len(cfg.BoosterTiers))
	for _, tier := range cfg.BoosterTiers {
		if strings.TrimSpace(tier.Name) == "" {
			return fmt.Errorf("booster_tiers: tier with %d bips has no name", tier.BoostBips)
		}
		if tier.BoostBips == 0 || tier.BoostBips > 10_000 {
			return fmt.Errorf("booster_tiers: %s boost_bips must be within 1..10000", tier.Name)
		}
		if prev, dup := seen[tier.BoostBips]; dup {
			return fmt.Errorf("booster_tiers: %s and %s share %d bips", prev, tier.Name, tier.BoostBips)
		}
		seen[tier.BoostBips] = tier.Name
	}
	return nil
}

// Addresses converts the contract section into role addresses. Required
// contracts must be valid hex addresses; the booster and bonding curve are
// omitted when empty.
func (c Config) Addresses() (chain.Addresses, error) {
	entries := []struct {
		role  chain.Role
		key   string
		value string
	}{
		{chain.RoleToken, "token", c.Contracts.Token},
		{chain.RoleDelegation, "delegation_manager", c.Contracts.DelegationManager},
		{chain.RoleReward, "reward_manager", c.Contracts.RewardManager},
		{chain.RoleBooster, "reward_booster_nft", c.Contracts.RewardBoosterNFT},
		{chain.RoleBondingCurve, "nft_bonding_curve", c.Contracts.NFTBondingCurve},
		{chain.RoleActions, "actions_manager", c.Contracts.ActionsManager},
	}
	out := make(chain.Addresses, len(entries))
	for _, e := range entries {
		v := strings.TrimSpace(e.value)
		if v == "" {
			if e.role.Optional() {
				continue
			}
			return nil, fmt.Errorf("contracts: %s must be configured", e.key)
		}
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("contracts: %s %q is not a hex address", e.key, v)
		}
		out[e.role] = common.HexToAddress(v)
	}
	return out, nil
}

// ChainIDBig returns the configured chain id as a big integer.
func (c Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.Network.ChainID)
}

// TierByBips finds the configured tier for a boost value.
func (c Config) TierByBips(bips uint64) (BoosterTier, bool) {
	for _, tier := range c.BoosterTiers {
		if tier.BoostBips == bips {
			return tier, true
		}
	}
	return BoosterTier{}, false
}
