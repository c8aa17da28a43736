package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
	"backchain/wallet"
)

// ForceUnstakePrompt is shown before a penalised early exit.
const ForceUnstakePrompt = "Are you sure? This action will incur a 50% penalty on your principal."

// Delegate approves the delegation manager for amount and locks it toward
// validator for lock (whole seconds).
func (o *Orchestrator) Delegate(ctx context.Context, validator common.Address, amount *big.Int, lock time.Duration, ctrl Control) (Outcome, error) {
	return o.run(ctx, "delegate", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if validator == (common.Address{}) {
			return o.reject(ctx, "Invalid validator address.", fmt.Errorf("orchestrator: validator address required"))
		}
		if !positive(amount) {
			return o.reject(ctx, "Invalid amount.", ErrInvalidAmount)
		}
		manager, err := sess.Handles.Must(chain.RoleDelegation)
		if err != nil {
			return err
		}
		seconds := new(big.Int).SetInt64(int64(lock / time.Second))
		return o.approveAndTransact(ctx, sess, out, manager.Address(), amount, "Delegation",
			call(chain.RoleDelegation, "delegate", validator, amount, seconds),
			"Delegation successful!", "Error delegating tokens")
	})
}

// Unstake withdraws the unlocked delegation at index.
func (o *Orchestrator) Unstake(ctx context.Context, index uint64, ctrl Control) (Outcome, error) {
	return o.run(ctx, "unstake", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		return o.transact(ctx, sess, out,
			call(chain.RoleDelegation, "unstake", new(big.Int).SetUint64(index)),
			"Unstake successful!", "Error unstaking tokens")
	})
}

// ForceUnstake exits a locked delegation early after the user accepts the
// penalty. A declined prompt returns ErrDeclined without a transaction or
// notification.
func (o *Orchestrator) ForceUnstake(ctx context.Context, index uint64, ctrl Control) (Outcome, error) {
	return o.run(ctx, "force_unstake", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if o.confirmer == nil {
			return &notified{err: ErrDeclined}
		}
		ok, err := o.confirmer.Confirm(ctx, ForceUnstakePrompt)
		if err != nil {
			return fmt.Errorf("orchestrator: confirm force unstake: %w", err)
		}
		if !ok {
			return &notified{err: ErrDeclined}
		}
		return o.transact(ctx, sess, out,
			call(chain.RoleDelegation, "forceUnstake", new(big.Int).SetUint64(index)),
			"Force unstake successful!", "Error performing force unstake")
	})
}

// PayValidatorFee approves fee and pays the validator registration fee.
func (o *Orchestrator) PayValidatorFee(ctx context.Context, fee *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "pay_validator_fee", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if !positive(fee) {
			return o.reject(ctx, "Invalid amount.", ErrInvalidAmount)
		}
		manager, err := sess.Handles.Must(chain.RoleDelegation)
		if err != nil {
			return err
		}
		return o.approveAndTransact(ctx, sess, out, manager.Address(), fee, "Validator Fee",
			call(chain.RoleDelegation, "payRegistrationFee"),
			"Fee paid successfully!", "Error paying validator fee")
	})
}

// RegisterValidator approves the self-stake and registers the connected
// account as a validator.
func (o *Orchestrator) RegisterValidator(ctx context.Context, stake *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "register_validator", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if !positive(stake) {
			return o.reject(ctx, "Invalid amount.", ErrInvalidAmount)
		}
		manager, err := sess.Handles.Must(chain.RoleDelegation)
		if err != nil {
			return err
		}
		return o.approveAndTransact(ctx, sess, out, manager.Address(), stake, "Validator Stake",
			call(chain.RoleDelegation, "registerValidator", sess.User),
			"Validator registered!", "Error registering validator")
	})
}
