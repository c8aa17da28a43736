package views

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"backchain/chain"
	"backchain/chain/resilient"
)

// DefaultDelegationFeeBips is the delegation fee assumed when the contract
// does not report one.
const DefaultDelegationFeeBips = 50

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ValidatorStage is where an account stands in validator onboarding.
type ValidatorStage string

const (
	StageRegistered       ValidatorStage = "registered"
	StageStakeUnavailable ValidatorStage = "stake_unavailable"
	StageInsufficient     ValidatorStage = "insufficient_balance"
	StagePayFee           ValidatorStage = "pay_fee"
	StageRegister         ValidatorStage = "register"
)

// ValidatorPanel is the onboarding state of an account.
type ValidatorPanel struct {
	Stage ValidatorStage
	// Stake is the minimum validator stake; the registration fee equals it.
	Stake   *big.Int
	FeePaid bool
	// Required is what the account must hold for the remaining steps.
	Required *big.Int
	Balance  *big.Int
}

// ValidatorPanel reports the next validator onboarding step for user.
func (a *Aggregator) ValidatorPanel(ctx context.Context, user common.Address) (ValidatorPanel, error) {
	h := a.handles()
	dm := h.Delegation()
	var (
		record chain.ValidatorRecord
		panel  ValidatorPanel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		record, err = resilient.Call(gctx, a.reader, dm, "validators", chain.EmptyValidator(), user)
		return err
	})
	g.Go(func() (err error) {
		panel.Stake, err = resilient.Call(gctx, a.reader, dm, "getMinValidatorStake", new(big.Int))
		return err
	})
	g.Go(func() (err error) {
		panel.FeePaid, err = resilient.Call(gctx, a.reader, dm, "hasPaidRegistrationFee", false, user)
		return err
	})
	g.Go(func() (err error) {
		panel.Balance, err = resilient.BalanceOf(gctx, a.reader, h.Token(), user)
		return err
	})
	if err := g.Wait(); err != nil {
		return ValidatorPanel{}, err
	}

	panel.Required = new(big.Int).Set(panel.Stake)
	if !panel.FeePaid {
		panel.Required.Lsh(panel.Required, 1)
	}
	switch {
	case record.IsRegistered:
		panel.Stage = StageRegistered
	case panel.Stake.Sign() == 0:
		panel.Stage = StageStakeUnavailable
	case panel.Balance.Cmp(panel.Required) < 0:
		panel.Stage = StageInsufficient
	case !panel.FeePaid:
		panel.Stage = StagePayFee
	default:
		panel.Stage = StageRegister
	}
	return panel, nil
}

// DelegationFeeBips reads the delegation fee, defaulting to
// DefaultDelegationFeeBips.
func (a *Aggregator) DelegationFeeBips(ctx context.Context) (uint64, error) {
	bips, err := resilient.Call(ctx, a.reader, a.handles().Delegation(), "DELEGATION_FEE_BIPS", big.NewInt(DefaultDelegationFeeBips))
	if err != nil {
		return 0, err
	}
	if !bips.IsUint64() || bips.Sign() == 0 {
		return DefaultDelegationFeeBips, nil
	}
	return bips.Uint64(), nil
}

// Preview estimates a delegation before it is sent.
type Preview struct {
	Fee *big.Int
	Net *big.Int
	// PStake is net whole tokens times lock days.
	PStake *big.Int
}

// DelegationPreview computes the fee, the net amount and the estimated
// pStake of delegating amount for lockDays.
func DelegationPreview(amount *big.Int, lockDays uint64, feeBips uint64) Preview {
	if amount == nil || amount.Sign() < 0 {
		amount = new(big.Int)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBips))
	fee.Quo(fee, big.NewInt(bipsDenominator))
	net := new(big.Int).Sub(amount, fee)
	pstake := new(big.Int).Mul(net, new(big.Int).SetUint64(lockDays))
	pstake.Quo(pstake, weiPerToken)
	return Preview{Fee: fee, Net: net, PStake: pstake}
}

// SortByPStake orders validators by pStake, smallest first, as the
// delegation list shows them.
func SortByPStake(validators []ValidatorInfo) {
	sort.SliceStable(validators, func(i, j int) bool {
		return validators[i].PStake.Cmp(validators[j].PStake) < 0
	})
}
