package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"backchain/chain"
	"backchain/format"
	"backchain/orchestrator"
	"backchain/views"
)

const day = 24 * time.Hour

func (c *cli) writeCommands() []*cobra.Command {
	delegate := &cobra.Command{
		Use:   "delegate <validator> <amount> <lock-days>",
		Short: "Approve and delegate tokens to a validator",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := format.ParseTokens(args[1])
			if err != nil {
				return err
			}
			days, err := strconv.ParseUint(args[2], 10, 32)
			if err != nil || days == 0 {
				return fmt.Errorf("invalid lock days %q", args[2])
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.Delegate(ctx, validator, amount, time.Duration(days)*day, nil)
			})
		},
	}

	unstake := &cobra.Command{
		Use:   "unstake <index>",
		Short: "Withdraw an unlocked delegation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.Unstake(ctx, index, nil)
			})
		},
	}

	forceUnstake := &cobra.Command{
		Use:   "force-unstake <index>",
		Short: "Withdraw a locked delegation, forfeiting the penalty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.ForceUnstake(ctx, index, nil)
			})
		},
	}

	claim := &cobra.Command{
		Use:   "claim",
		Short: "Claim staking and miner rewards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				totals, err := e.views.RewardTotals(ctx, e.account)
				if err != nil {
					return orchestrator.Outcome{}, err
				}
				return e.orch.ClaimAll(ctx, totals.Staking, totals.Miner, nil)
			})
		},
	}

	vest := &cobra.Command{
		Use:   "vest <recipient> <amount>",
		Short: "Create a vesting certificate for a recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := format.ParseTokens(args[1])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.CreateVestingCertificate(ctx, args[0], amount, nil)
			})
		},
	}

	withdraw := &cobra.Command{
		Use:   "withdraw <certificate-id>",
		Short: "Withdraw a vesting certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.Withdraw(ctx, id, nil)
			})
		},
	}

	buy := &cobra.Command{
		Use:   "buy <tier>",
		Short: "Buy a booster NFT of a tier (name or boost bips) at the current price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				tiers, err := e.views.Store(ctx, e.account)
				if err != nil {
					return orchestrator.Outcome{}, err
				}
				tier, err := findTier(tiers, args[0])
				if err != nil {
					return orchestrator.Outcome{}, err
				}
				if !tier.BuyEnabled {
					return orchestrator.Outcome{}, fmt.Errorf("%s boosters are not for sale right now", tier.Name)
				}
				fmt.Fprintf(e.out, "Buying %s booster for %s BKC\n", tier.Name, format.Tokens(tier.BuyPrice))
				return e.orch.BuyBooster(ctx, tier.BoostBips, tier.BuyPrice, nil)
			})
		},
	}

	sell := &cobra.Command{
		Use:   "sell <token-id>",
		Short: "Sell a booster NFT back to its pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.SellBooster(ctx, id, nil)
			})
		},
	}

	becomeValidator := &cobra.Command{
		Use:   "become-validator",
		Short: "Pay the registration fee if needed, then register as a validator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return registerValidator(ctx, e)
			})
		},
	}

	approve := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Ensure a spender may move at least amount (with tolerance)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spender, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := format.ParseTokens(args[1])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, true, func(ctx context.Context, e *env) error {
				ctx, cancel := e.writeContext(ctx)
				defer cancel()
				_, err := e.orch.EnsureApproval(ctx, spender, amount, nil, "manual")
				return err
			})
		},
	}

	return []*cobra.Command{delegate, unstake, forceUnstake, claim, vest, withdraw, buy, sell, becomeValidator, approve, c.actionCommand()}
}

func (c *cli) actionCommand() *cobra.Command {
	action := &cobra.Command{
		Use:   "action",
		Short: "Create, join and finalize sports or charity actions",
	}

	var (
		kind        string
		durationArg string
		stakeArg    string
		description string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Open a new action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := orchestrator.ActionRequest{Description: description}
			switch strings.ToLower(kind) {
			case "sports", "0":
				req.Type = chain.ActionSports
			case "charity", "1":
				req.Type = chain.ActionCharity
				stake, err := format.ParseTokens(stakeArg)
				if err != nil {
					return fmt.Errorf("charity stake: %w", err)
				}
				req.CharityStake = stake
			default:
				return fmt.Errorf("unknown action type %q", kind)
			}
			d, err := parseDuration(durationArg)
			if err != nil {
				return err
			}
			req.Duration = d
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.CreateAction(ctx, req, nil)
			})
		},
	}
	create.Flags().StringVar(&kind, "type", "sports", "sports or charity")
	create.Flags().StringVar(&durationArg, "duration", "7d", "how long the action stays open (e.g. 36h, 7d)")
	create.Flags().StringVar(&stakeArg, "stake", "", "creator stake for charity actions")
	create.Flags().StringVar(&description, "description", "", "description shown to participants")

	participate := &cobra.Command{
		Use:   "participate <action-id> <amount>",
		Short: "Buy coupons in an open action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			amount, err := format.ParseTokens(args[1])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				return e.orch.Participate(ctx, id, amount, nil)
			})
		},
	}

	finalize := &cobra.Command{
		Use:   "finalize <action-id>",
		Short: "Finalize an action past its end time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return c.write(cmd, func(ctx context.Context, e *env) (orchestrator.Outcome, error) {
				a, ok, err := e.views.Action(ctx, id)
				if err != nil {
					return orchestrator.Outcome{}, err
				}
				if !ok {
					return orchestrator.Outcome{}, fmt.Errorf("action %d not found", id)
				}
				if !a.Finalizable(time.Now()) {
					return orchestrator.Outcome{}, fmt.Errorf("action %d is %s", id, strings.ToLower(a.StatusLabel))
				}
				return e.orch.FinalizeAction(ctx, id, nil)
			})
		},
	}

	action.AddCommand(create, participate, finalize)
	return action
}

// write runs one orchestrator operation in a signing env, then prints any
// transaction the notifications did not already link.
func (c *cli) write(cmd *cobra.Command, fn func(ctx context.Context, e *env) (orchestrator.Outcome, error)) error {
	return c.withEnv(cmd, true, func(ctx context.Context, e *env) error {
		ctx, cancel := e.writeContext(ctx)
		defer cancel()
		out, err := fn(ctx, e)
		if err != nil {
			if errors.Is(err, orchestrator.ErrNothingToClaim) || errors.Is(err, orchestrator.ErrDeclined) {
				return nil
			}
			return err
		}
		for _, hash := range out.TxHashes {
			if e.notes.Shown(hash) {
				continue
			}
			if link := format.TxURL(e.cfg.Network.ExplorerURL, hash); link != "" {
				fmt.Fprintln(e.out, link)
			} else {
				fmt.Fprintln(e.out, hash.Hex())
			}
		}
		if out.TokenID != nil {
			fmt.Fprintf(e.out, "Token #%s\n", out.TokenID)
		}
		return nil
	})
}

// registerValidator walks the onboarding steps the account still needs.
func registerValidator(ctx context.Context, e *env) (orchestrator.Outcome, error) {
	panel, err := e.views.ValidatorPanel(ctx, e.account)
	if err != nil {
		return orchestrator.Outcome{}, err
	}
	switch panel.Stage {
	case views.StageRegistered:
		fmt.Fprintln(e.out, "Already registered as a validator.")
		return orchestrator.Outcome{}, nil
	case views.StageStakeUnavailable:
		return orchestrator.Outcome{}, errors.New("minimum validator stake is not available yet")
	case views.StageInsufficient:
		return orchestrator.Outcome{}, fmt.Errorf("need %s BKC, have %s BKC",
			format.Tokens(panel.Required), format.Tokens(panel.Balance))
	}
	var all orchestrator.Outcome
	if panel.Stage == views.StagePayFee {
		paid, err := e.orch.PayValidatorFee(ctx, panel.Stake, nil)
		if err != nil {
			return orchestrator.Outcome{}, err
		}
		all.TxHashes = append(all.TxHashes, paid.TxHashes...)
	}
	registered, err := e.orch.RegisterValidator(ctx, panel.Stake, nil)
	if err != nil {
		return all, err
	}
	all.Operation = registered.Operation
	all.TxHashes = append(all.TxHashes, registered.TxHashes...)
	return all, nil
}

func findTier(tiers []views.StoreTier, key string) (views.StoreTier, error) {
	bips, numErr := strconv.ParseUint(key, 10, 64)
	for _, t := range tiers {
		if (numErr == nil && t.BoostBips == bips) || strings.EqualFold(t.Name, key) {
			return t, nil
		}
	}
	return views.StoreTier{}, fmt.Errorf("unknown booster tier %q", key)
}

func parseIndex(raw string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return v, nil
}

func parseTokenID(raw string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", raw)
	}
	return id, nil
}

// parseDuration accepts Go durations plus a whole-day "Nd" form.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseUint(days, 10, 32)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(n) * day, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}
