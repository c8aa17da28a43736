package views

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"backchain/chain"
	"backchain/chain/resilient"
)

const (
	bipsDenominator = 10_000
	// readConcurrency bounds fan-out reads such as per-validator lookups.
	readConcurrency = 8
)

// Dashboard is the public network summary.
type Dashboard struct {
	TotalSupply *big.Int
	// SupplyEstimated is set when totalSupply read as zero and TGE_SUPPLY
	// was shown instead. A genuine zero supply is indistinguishable from a
	// failed read here.
	SupplyEstimated   bool
	TotalPStake       *big.Int
	MintPool          *big.Int
	TGESupply         *big.Int
	LockedAmount      *big.Int
	LockedPercent     float64 // display only
	RemainingMintable *big.Int
	ScarcityBips      uint64
	Validators        []ValidatorInfo
}

// ValidatorInfo is one entry of the validator list.
type ValidatorInfo struct {
	Address        common.Address
	Registered     bool
	SelfStake      *big.Int
	DelegatedStake *big.Int
	PStake         *big.Int
}

// Dashboard reads the network-wide figures.
func (a *Aggregator) Dashboard(ctx context.Context) (Dashboard, error) {
	h := a.handles()
	token, dm := h.Token(), h.Delegation()

	var (
		supply, pstake, mintPool, tge *big.Int
		dmBalance, poolBalance        *big.Int
		validators                    []ValidatorInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		supply, err = resilient.Call(gctx, a.reader, token, "totalSupply", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		pstake, err = resilient.Call(gctx, a.reader, dm, "totalNetworkPStake", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		mintPool, err = resilient.Call(gctx, a.reader, dm, "MINT_POOL", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		tge, err = resilient.Call(gctx, a.reader, dm, "TGE_SUPPLY", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		dmBalance, err = a.lockedIn(gctx, token, dm)
		return err
	})
	g.Go(func() (err error) {
		poolBalance, err = a.lockedIn(gctx, token, h.BondingCurve())
		return err
	})
	g.Go(func() (err error) {
		validators, err = a.validators(gctx, dm)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	view := Dashboard{
		TotalSupply: supply,
		TotalPStake: pstake,
		MintPool:    mintPool,
		TGESupply:   tge,
		Validators:  validators,
	}
	if supply.Sign() == 0 && tge.Sign() > 0 {
		a.logger.Warn("total supply unavailable, showing TGE supply as an estimate",
			slog.String("tge_supply", tge.String()))
		view.TotalSupply = new(big.Int).Set(tge)
		view.SupplyEstimated = true
	}
	view.LockedAmount = new(big.Int).Add(dmBalance, poolBalance)
	view.LockedPercent = LockedPercentage(view.LockedAmount, view.TotalSupply)
	view.RemainingMintable = RemainingMintable(mintPool, view.TotalSupply, tge)
	view.ScarcityBips = Scarcity(view.RemainingMintable, mintPool, view.TotalSupply)

	a.network.Record(view.TotalSupply, view.LockedPercent, view.ScarcityBips, len(validators), pstake)
	return view, nil
}

// Validators reads the registered validator list with per-validator stake.
func (a *Aggregator) Validators(ctx context.Context) ([]ValidatorInfo, error) {
	return a.validators(ctx, a.handles().Delegation())
}

// lockedIn reads the token balance held by holder. A deployment without
// that contract locks nothing.
func (a *Aggregator) lockedIn(ctx context.Context, token, holder chain.Contract) (*big.Int, error) {
	if holder == nil {
		return new(big.Int), nil
	}
	return resilient.BalanceOf(ctx, a.reader, token, holder.Address())
}

func (a *Aggregator) validators(ctx context.Context, dm chain.Contract) ([]ValidatorInfo, error) {
	addrs, err := resilient.Call(ctx, a.reader, dm, "getAllValidators", []common.Address{})
	if err != nil {
		return nil, err
	}
	out := make([]ValidatorInfo, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			record, err := resilient.Call(gctx, a.reader, dm, "validators", chain.EmptyValidator(), addr)
			if err != nil {
				return err
			}
			pstake, err := resilient.Call(gctx, a.reader, dm, "userTotalPStake", new(big.Int), addr)
			if err != nil {
				return err
			}
			out[i] = ValidatorInfo{
				Address:        addr,
				Registered:     record.IsRegistered,
				SelfStake:      orZero(record.SelfStakeAmount),
				DelegatedStake: orZero(record.TotalDelegatedAmount),
				PStake:         pstake,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LockedPercentage is locked * 100 / supply, or 0 when supply is zero.
func LockedPercentage(locked, supply *big.Int) float64 {
	if supply == nil || supply.Sign() <= 0 || locked == nil {
		return 0
	}
	ratio := new(big.Rat).SetFrac(new(big.Int).Mul(locked, big.NewInt(100)), supply)
	pct, _ := ratio.Float64()
	return pct
}

// RemainingMintable is mintPool minus what has been minted beyond the TGE
// supply, floored at zero.
func RemainingMintable(mintPool, supply, tge *big.Int) *big.Int {
	minted := new(big.Int)
	if supply.Cmp(tge) > 0 {
		minted.Sub(supply, tge)
	}
	remaining := new(big.Int).Sub(mintPool, minted)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}

// Scarcity is the remaining share of the mint pool in basis points. With an
// unset mint pool it reports full scarcity only before anything is minted.
func Scarcity(remaining, mintPool, supply *big.Int) uint64 {
	if mintPool.Sign() > 0 {
		bips := new(big.Int).Mul(remaining, big.NewInt(bipsDenominator))
		bips.Quo(bips, mintPool)
		return bips.Uint64()
	}
	if supply.Sign() == 0 && remaining.Sign() > 0 {
		return bipsDenominator
	}
	return 0
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
