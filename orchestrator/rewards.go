package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/wallet"
)

var (
	ErrInvalidRecipient    = errors.New("orchestrator: invalid beneficiary address")
	ErrInsufficientBalance = errors.New("orchestrator: insufficient token balance")
	ErrNothingToClaim      = errors.New("orchestrator: no rewards to claim")
)

// CreateVestingCertificate buys a vesting certificate for recipient with
// amount tokens from the connected account.
func (o *Orchestrator) CreateVestingCertificate(ctx context.Context, recipient string, amount *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "create_vesting_certificate", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		recipient = strings.TrimSpace(recipient)
		if !common.IsHexAddress(recipient) {
			return o.reject(ctx, "Invalid beneficiary address.", ErrInvalidRecipient)
		}
		if !positive(amount) {
			return o.reject(ctx, "Invalid amount.", ErrInvalidAmount)
		}
		balance, err := resilient.BalanceOf(ctx, o.reader, sess.Handles.Token(), sess.User)
		if err != nil {
			return err
		}
		if amount.Cmp(balance) > 0 {
			return o.reject(ctx, "Insufficient $BKC balance.", ErrInsufficientBalance)
		}
		manager, err := sess.Handles.Must(chain.RoleReward)
		if err != nil {
			return err
		}
		err = o.approveAndTransact(ctx, sess, out, manager.Address(), amount, "PoP Mining Purchase",
			call(chain.RoleReward, "createVestingCertificate", common.HexToAddress(recipient), amount),
			"PoP Mining completed successfully!", "Error executing PoP Mining")
		if err == nil {
			resetCache(o.certificates)
		}
		return err
	})
}

// Withdraw redeems the vesting certificate tokenID, paying any early-exit
// penalty the contract applies.
func (o *Orchestrator) Withdraw(ctx context.Context, tokenID *big.Int, ctrl Control) (Outcome, error) {
	return o.run(ctx, "withdraw", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		if tokenID == nil || tokenID.Sign() < 0 {
			return o.reject(ctx, "Invalid certificate.", errors.New("orchestrator: token id required"))
		}
		out.TokenID = new(big.Int).Set(tokenID)
		err := o.transact(ctx, sess, out,
			call(chain.RoleReward, "withdraw", tokenID),
			"Withdrawal successful!", "Error during withdrawal")
		if err == nil {
			resetCache(o.certificates)
		}
		return err
	})
}

// ClaimAll claims the non-zero reward components one after the other:
// staking rewards from the delegation manager, then mining rewards from the
// reward manager. A failure after a successful claim leaves that claim in
// place and reports only the failing step.
func (o *Orchestrator) ClaimAll(ctx context.Context, staking, miner *big.Int, ctrl Control) (Outcome, error) {
	if !positive(staking) && !positive(miner) {
		o.notify(ctx, LevelInfo, "No rewards to claim.", common.Hash{})
		return Outcome{}, ErrNothingToClaim
	}
	return o.run(ctx, "claim_all", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		type claim struct {
			amount  *big.Int
			role    chain.Role
			method  string
			message string
		}
		claims := []claim{
			{staking, chain.RoleDelegation, "claimDelegatorReward", "Claiming staking rewards..."},
			{miner, chain.RoleReward, "claimMinerRewards", "Claiming PoP Mining rewards..."},
		}
		for _, c := range claims {
			if !positive(c.amount) {
				continue
			}
			o.notify(ctx, LevelInfo, c.message, common.Hash{})
			hash, err := o.confirm(ctx, sess, call(c.role, c.method))
			if err != nil {
				return err
			}
			out.TxHashes = append(out.TxHashes, hash)
		}
		message := "Reward claimed successfully!"
		if len(out.TxHashes) > 1 {
			message = "All rewards claimed successfully!"
		}
		o.notify(ctx, LevelSuccess, message, out.TxHashes[0])
		return nil
	})
}
