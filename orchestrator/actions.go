package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/wallet"
)

var (
	ErrSportsStakeUnavailable = errors.New("orchestrator: minimum sports stake is zero")
	ErrInvalidAction          = errors.New("orchestrator: invalid action request")
)

// ActionRequest describes a new lottery or charity action.
type ActionRequest struct {
	Type     chain.ActionType
	Duration time.Duration
	// CharityStake is the creator stake for charity actions. Sports actions
	// stake the contract minimum instead.
	CharityStake *big.Int
	Description  string
}

// CreateAction opens a sports or charity action. Sports actions stake the
// contract's minimum creator stake; charity actions stake CharityStake.
func (o *Orchestrator) CreateAction(ctx context.Context, req ActionRequest, ctrl Control) (Outcome, error) {
	return o.run(ctx, "create_action", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		const failure = "Creation Failed"
		if req.Duration <= 0 {
			return o.reject(ctx, failure+": Duration must be greater than zero.", ErrInvalidAction)
		}
		manager, err := sess.Handles.Must(chain.RoleActions)
		if err != nil {
			return err
		}
		var stake *big.Int
		charityStake := new(big.Int)
		switch req.Type {
		case chain.ActionCharity:
			if !positive(req.CharityStake) {
				return o.reject(ctx, failure+": Stake for Charity must be greater than zero.", ErrInvalidAmount)
			}
			charityStake.Set(req.CharityStake)
			stake = charityStake
		case chain.ActionSports:
			stake, err = resilient.Call(ctx, o.reader, manager, "getMinCreatorStake", new(big.Int))
			if err != nil {
				return o.fail(ctx, failure, err)
			}
			if stake.Sign() == 0 {
				return o.reject(ctx, failure+": Minimum stake for Sports is currently zero. The system may not be fully initialized or total supply is too low.", ErrSportsStakeUnavailable)
			}
		default:
			return o.reject(ctx, fmt.Sprintf("%s: Unknown action type %d.", failure, req.Type), ErrInvalidAction)
		}
		seconds := new(big.Int).SetInt64(int64(req.Duration / time.Second))
		return o.approveAndTransact(ctx, sess, out, manager.Address(), stake, "Action Creation",
			call(chain.RoleActions, "createAction", seconds, uint8(req.Type), charityStake, strings.TrimSpace(req.Description)),
			"Action created successfully!", failure)
	})
}

// Participate buys coupons in actionID for amount tokens.
func (o *Orchestrator) Participate(ctx context.Context, actionID uint64, amount *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "participate", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if !positive(amount) {
			return o.reject(ctx, "Invalid amount.", ErrInvalidAmount)
		}
		manager, err := sess.Handles.Must(chain.RoleActions)
		if err != nil {
			return err
		}
		return o.approveAndTransact(ctx, sess, out, manager.Address(), amount, "Participation",
			call(chain.RoleActions, "participate", new(big.Int).SetUint64(actionID), amount),
			"Participation successful!", "Error participating")
	})
}

// FinalizeAction closes an expired action and distributes its prize.
func (o *Orchestrator) FinalizeAction(ctx context.Context, actionID uint64, ctrl Control) (Outcome, error) {
	return o.run(ctx, "finalize_action", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		return o.transact(ctx, sess, out,
			call(chain.RoleActions, "finalizeAction", new(big.Int).SetUint64(actionID)),
			"Action finalized! Prize distributed.", "Error finalizing action")
	})
}
