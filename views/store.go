package views

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"golang.org/x/sync/errgroup"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/config"
)

// ErrStoreUnavailable means the deployment has no booster or bonding-curve
// contract configured.
var ErrStoreUnavailable = errors.New("views: store configuration is incomplete")

const defaultSellLock = 30 * 24 * time.Hour

// StoreTier is one booster tier's market.
type StoreTier struct {
	config.BoosterTier
	Initialized bool
	Available   *big.Int // NFTs held by the pool
	PoolBalance *big.Int // tokens held by the pool for this tier
	BuyPrice    *big.Int
	BuyEnabled  bool
	SellPrice   *big.Int
	Owned       int
	// SellableToken is the first owned token past its sell lock, or nil.
	SellableToken *big.Int
}

// Store reads every tier's pool and, for a non-zero user, which of their
// boosters can be sold back.
func (a *Aggregator) Store(ctx context.Context, user common.Address) ([]StoreTier, error) {
	h := a.handles()
	pool := h.BondingCurve()
	if pool == nil || h.Booster() == nil {
		return nil, ErrStoreUnavailable
	}
	var holdings []BoosterHolding
	if user != (common.Address{}) {
		var err error
		if holdings, err = a.Boosters(ctx, user); err != nil {
			return nil, err
		}
	}

	tiers := make([]StoreTier, len(a.tiers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, tier := range a.tiers {
		g.Go(func() (err error) {
			tiers[i], err = a.storeTier(gctx, pool, tier, holdings)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (a *Aggregator) storeTier(ctx context.Context, pool chain.Contract, tier config.BoosterTier, holdings []BoosterHolding) (StoreTier, error) {
	bips := new(big.Int).SetUint64(tier.BoostBips)
	out := StoreTier{BoosterTier: tier}

	record, err := resilient.Call(ctx, a.reader, pool, "pools", chain.EmptyPool(), bips)
	if err != nil {
		return StoreTier{}, err
	}
	out.Initialized = record.IsInitialized
	out.Available = orZero(record.NftCount)
	out.PoolBalance = orZero(record.TokenBalance)

	if out.BuyPrice, err = resilient.Call(ctx, a.reader, pool, "getBuyPrice", new(big.Int).Set(math.MaxBig256), bips); err != nil {
		return StoreTier{}, err
	}
	out.BuyEnabled = out.Available.Sign() > 0 && out.BuyPrice.Cmp(math.MaxBig256) != 0
	if out.SellPrice, err = resilient.Call(ctx, a.reader, pool, "getSellPrice", new(big.Int), bips); err != nil {
		return StoreTier{}, err
	}

	var owned []BoosterHolding
	for _, h := range holdings {
		if h.BoostBips == tier.BoostBips {
			owned = append(owned, h)
		}
	}
	out.Owned = len(owned)
	if len(owned) == 0 {
		return out, nil
	}
	lock, err := resilient.Call(ctx, a.reader, pool, "LOCK_DURATION", big.NewInt(int64(defaultSellLock/time.Second)))
	if err != nil {
		return StoreTier{}, err
	}
	now := big.NewInt(a.now().Unix())
	for _, h := range owned {
		bought, err := resilient.Call(ctx, a.reader, pool, "nftPurchaseTimestamp", new(big.Int), h.TokenID)
		if err != nil {
			return StoreTier{}, err
		}
		// Tokens never bought from the pool cannot be sold back.
		if bought.Sign() == 0 {
			continue
		}
		if now.Cmp(new(big.Int).Add(bought, lock)) >= 0 {
			out.SellableToken = new(big.Int).Set(h.TokenID)
			break
		}
	}
	return out, nil
}
