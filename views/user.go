package views

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"backchain/chain"
	"backchain/chain/resilient"
)

// Delegation is one position of the connected account.
type Delegation struct {
	Index        uint64
	Amount       *big.Int
	UnlockTime   *big.Int
	LockDuration *big.Int
	Validator    common.Address
	PStake       *big.Int
	// Locked positions can only leave through a force unstake.
	Locked bool
	// Penalty is what a force unstake forfeits.
	Penalty *big.Int
}

// RewardTotals splits pending rewards by source.
type RewardTotals struct {
	Staking *big.Int
	Miner   *big.Int
	Total   *big.Int
}

// UserView is the connected account's position.
type UserView struct {
	Account      common.Address
	Balance      *big.Int
	TotalPStake  *big.Int
	Delegations  []Delegation
	Rewards      RewardTotals
	ClaimEnabled bool
}

// UserView reads the account's balance, delegations and pending rewards.
func (a *Aggregator) UserView(ctx context.Context, user common.Address) (UserView, error) {
	h := a.handles()
	dm := h.Delegation()
	view := UserView{Account: user}

	var records []chain.DelegationRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Balance, err = resilient.BalanceOf(gctx, a.reader, h.Token(), user)
		return err
	})
	g.Go(func() (err error) {
		records, err = resilient.Call(gctx, a.reader, dm, "getDelegationsOf", []chain.DelegationRecord{}, user)
		return err
	})
	g.Go(func() (err error) {
		view.TotalPStake, err = resilient.Call(gctx, a.reader, dm, "userTotalPStake", new(big.Int), user)
		return err
	})
	g.Go(func() (err error) {
		view.Rewards, err = a.rewardTotals(gctx, user)
		return err
	})
	if err := g.Wait(); err != nil {
		return UserView{}, err
	}

	delegations, err := a.delegations(ctx, dm, user, records)
	if err != nil {
		return UserView{}, err
	}
	view.Delegations = delegations
	view.ClaimEnabled = view.Rewards.Total.Sign() > 0
	return view, nil
}

func (a *Aggregator) delegations(ctx context.Context, dm chain.Contract, user common.Address, records []chain.DelegationRecord) ([]Delegation, error) {
	now := big.NewInt(a.now().Unix())
	out := make([]Delegation, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			index := uint64(i)
			pstake, err := resilient.Call(gctx, a.reader, dm, "getDelegationPStake", new(big.Int), user, new(big.Int).SetUint64(index))
			if err != nil {
				return err
			}
			amount := orZero(rec.Amount)
			unlock := orZero(rec.UnlockTime)
			out[i] = Delegation{
				Index:        index,
				Amount:       amount,
				UnlockTime:   unlock,
				LockDuration: orZero(rec.LockDuration),
				Validator:    rec.Validator,
				PStake:       pstake,
				Locked:       unlock.Cmp(now) > 0,
				Penalty:      new(big.Int).Rsh(amount, 1),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RewardTotals reads pending staking and mining rewards.
func (a *Aggregator) RewardTotals(ctx context.Context, user common.Address) (RewardTotals, error) {
	return a.rewardTotals(ctx, user)
}

func (a *Aggregator) rewardTotals(ctx context.Context, user common.Address) (RewardTotals, error) {
	h := a.handles()
	var totals RewardTotals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals.Staking, err = resilient.Call(gctx, a.reader, h.Delegation(), "pendingDelegatorRewards", new(big.Int), user)
		return err
	})
	g.Go(func() (err error) {
		totals.Miner, err = resilient.Call(gctx, a.reader, h.Reward(), "minerRewardsOwed", new(big.Int), user)
		return err
	})
	if err := g.Wait(); err != nil {
		return RewardTotals{}, err
	}
	totals.Total = new(big.Int).Add(totals.Staking, totals.Miner)
	return totals, nil
}

// RewardEfficiency is the reward share, in percent, a booster of boostBips
// grants: 50% base plus one point per 100 bips, capped at 100%.
func RewardEfficiency(boostBips uint64) float64 {
	return float64(EfficiencyBips(boostBips)) / 100
}

// EfficiencyBips is RewardEfficiency in basis points.
func EfficiencyBips(boostBips uint64) uint64 {
	const base = bipsDenominator / 2
	if boostBips >= bipsDenominator-base {
		return bipsDenominator
	}
	return base + boostBips
}

// RewardsView is the claim page: pending rewards and how a claim splits
// between the account and the treasury.
type RewardsView struct {
	RewardTotals
	Booster        BoosterSummary
	EfficiencyBips uint64
	// Claimable is the share of staking rewards paid to the account.
	Claimable *big.Int
	Treasury  *big.Int
}

// Rewards reads pending rewards and applies the account's best booster.
func (a *Aggregator) Rewards(ctx context.Context, user common.Address) (RewardsView, error) {
	var view RewardsView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.RewardTotals, err = a.rewardTotals(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		view.Booster, err = a.HighestBooster(gctx, user)
		return err
	})
	if err := g.Wait(); err != nil {
		return RewardsView{}, err
	}
	view.EfficiencyBips = EfficiencyBips(view.Booster.BoostBips)
	view.Claimable = new(big.Int).Mul(view.Staking, new(big.Int).SetUint64(view.EfficiencyBips))
	view.Claimable.Quo(view.Claimable, big.NewInt(bipsDenominator))
	view.Treasury = new(big.Int).Sub(view.Staking, view.Claimable)
	return view, nil
}
