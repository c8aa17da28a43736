package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"backchain/format"
	"backchain/views"
)

func (c *cli) queryCommands() []*cobra.Command {
	dashboard := &cobra.Command{
		Use:   "dashboard",
		Short: "Show supply, locked share, scarcity and validators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				d, err := e.views.Dashboard(ctx)
				if err != nil {
					return err
				}
				printDashboard(e, d)
				return nil
			})
		},
	}

	validators := &cobra.Command{
		Use:   "validators",
		Short: "List validators by pStake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				list, err := e.views.Validators(ctx)
				if err != nil {
					return err
				}
				views.SortByPStake(list)
				printValidators(e, list)
				return nil
			})
		},
	}

	account := &cobra.Command{
		Use:   "account <address>",
		Short: "Show balance, delegations and pending rewards of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				v, err := e.views.UserView(ctx, user)
				if err != nil {
					return err
				}
				printUserView(e, v)
				return nil
			})
		},
	}

	rewards := &cobra.Command{
		Use:   "rewards <address>",
		Short: "Show pending rewards and the booster-adjusted claim split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				v, err := e.views.Rewards(ctx, user)
				if err != nil {
					return err
				}
				w := e.out
				fmt.Fprintf(w, "Staking rewards: %s BKC\n", format.Tokens(v.Staking))
				fmt.Fprintf(w, "Miner rewards:   %s BKC\n", format.Tokens(v.Miner))
				fmt.Fprintf(w, "Booster:         %s (%s efficiency)\n", v.Booster.Name, format.Bips(v.EfficiencyBips))
				fmt.Fprintf(w, "You receive:     %s BKC\n", format.Tokens(v.Claimable))
				fmt.Fprintf(w, "To treasury:     %s BKC\n", format.Tokens(v.Treasury))
				return nil
			})
		},
	}

	certificates := &cobra.Command{
		Use:   "certificates <address>",
		Short: "List vesting certificates, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				certs, err := e.views.Certificates(ctx, user)
				if err != nil {
					return err
				}
				if len(certs) == 0 {
					fmt.Fprintln(e.out, "No vesting certificates.")
					return nil
				}
				tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tAMOUNT\tVESTED\tPENALTY\tNO FEE FROM\tTIER")
				for _, cert := range certs {
					d, err := e.views.CertificateDetail(ctx, cert.TokenID)
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\t%s\n", d.TokenID, format.Tokens(d.TotalAmount),
						d.Progress, format.Tokens(d.Penalty), d.NoFeeDate.Format(time.DateOnly), d.Tier)
				}
				return tw.Flush()
			})
		},
	}

	var storeAccount string
	store := &cobra.Command{
		Use:   "store",
		Short: "Show booster tiers with prices and availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var user common.Address
			if storeAccount != "" {
				var err error
				if user, err = parseAddress(storeAccount); err != nil {
					return err
				}
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				tiers, err := e.views.Store(ctx, user)
				if err != nil {
					return err
				}
				printStore(e, tiers, user != common.Address{})
				return nil
			})
		},
	}
	store.Flags().StringVar(&storeAccount, "account", "", "include holdings of this account")

	var filterFlag string
	var pageFlag int
	actions := &cobra.Command{
		Use:   "actions",
		Short: "List sports and charity actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := views.ParseActionFilter(filterFlag)
			if err != nil {
				return err
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				list, err := e.views.Actions(ctx, filter)
				if err != nil {
					return err
				}
				page := views.Paginate(list, pageFlag, views.ActionsPerPage)
				if page.Total == 0 {
					fmt.Fprintln(e.out, "No actions found.")
					return nil
				}
				tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPOT\tENDS\tDESCRIPTION")
				for _, a := range page.Items {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Type, a.StatusLabel,
						format.Tokens(a.TotalPot), a.EndTime.UTC().Format(time.RFC3339), a.Description)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Page %d of %d (%d actions)\n", page.Page, page.TotalPages, page.Total)
				return nil
			})
		},
	}
	actions.Flags().StringVar(&filterFlag, "filter", "all", "all, sports or charity")
	actions.Flags().IntVar(&pageFlag, "page", 1, "page number")

	status := &cobra.Command{
		Use:   "validator-status <address>",
		Short: "Show the next validator onboarding step of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				p, err := e.views.ValidatorPanel(ctx, user)
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Stage:          %s\n", p.Stage)
				fmt.Fprintf(e.out, "Minimum stake:  %s BKC\n", format.Tokens(p.Stake))
				fmt.Fprintf(e.out, "Fee paid:       %t\n", p.FeePaid)
				fmt.Fprintf(e.out, "Required:       %s BKC\n", format.Tokens(p.Required))
				fmt.Fprintf(e.out, "Balance:        %s BKC\n", format.Tokens(p.Balance))
				return nil
			})
		},
	}

	preview := &cobra.Command{
		Use:   "delegation-preview <amount> <lock-days>",
		Short: "Estimate the fee and pStake of a delegation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := format.ParseTokens(args[0])
			if err != nil {
				return err
			}
			days, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lock days %q", args[1])
			}
			return c.withEnv(cmd, false, func(ctx context.Context, e *env) error {
				feeBips, err := e.views.DelegationFeeBips(ctx)
				if err != nil {
					return err
				}
				p := views.DelegationPreview(amount, days, feeBips)
				fmt.Fprintf(e.out, "Fee (%s):  %s BKC\n", format.Bips(feeBips), format.Tokens(p.Fee))
				fmt.Fprintf(e.out, "Delegated:  %s BKC\n", format.Tokens(p.Net))
				fmt.Fprintf(e.out, "pStake:     %s\n", format.PStake(p.PStake))
				return nil
			})
		},
	}

	return []*cobra.Command{dashboard, validators, account, rewards, certificates, store, actions, status, preview}
}

func printDashboard(e *env, d views.Dashboard) {
	w := e.out
	supply := format.Tokens(d.TotalSupply)
	if d.SupplyEstimated {
		supply += " (TGE estimate)"
	}
	fmt.Fprintf(w, "Total supply:       %s BKC\n", supply)
	fmt.Fprintf(w, "Network pStake:     %s\n", format.PStake(d.TotalPStake))
	fmt.Fprintf(w, "Locked:             %s BKC (%.2f%%)\n", format.Tokens(d.LockedAmount), d.LockedPercent)
	fmt.Fprintf(w, "Remaining mintable: %s BKC\n", format.Tokens(d.RemainingMintable))
	fmt.Fprintf(w, "Scarcity:           %s\n", format.Bips(d.ScarcityBips))
	fmt.Fprintf(w, "Validators:         %d\n", len(d.Validators))
}

func printValidators(e *env, list []views.ValidatorInfo) {
	if len(list) == 0 {
		fmt.Fprintln(e.out, "No validators registered.")
		return
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tSELF STAKE\tDELEGATED\tPSTAKE")
	for _, v := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Address.Hex(), format.Tokens(v.SelfStake),
			format.Tokens(v.DelegatedStake), format.PStake(v.PStake))
	}
	_ = tw.Flush()
}

func printUserView(e *env, v views.UserView) {
	w := e.out
	fmt.Fprintf(w, "Account:  %s\n", v.Account.Hex())
	fmt.Fprintf(w, "Balance:  %s BKC\n", format.Tokens(v.Balance))
	fmt.Fprintf(w, "pStake:   %s\n", format.PStake(v.TotalPStake))
	fmt.Fprintf(w, "Rewards:  %s BKC", format.Tokens(v.Rewards.Total))
	if !v.ClaimEnabled {
		fmt.Fprint(w, " (nothing to claim)")
	}
	fmt.Fprintln(w)
	if len(v.Delegations) == 0 {
		fmt.Fprintln(w, "No active delegations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tVALIDATOR\tAMOUNT\tPSTAKE\tUNLOCKS IN\tFORCE PENALTY")
	for _, d := range v.Delegations {
		remaining := time.Until(unixTime(d.UnlockTime))
		if !d.Locked {
			remaining = 0
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.Index, format.Address(d.Validator), format.Tokens(d.Amount),
			format.PStake(d.PStake), format.Countdown(remaining), format.Tokens(d.Penalty))
	}
	_ = tw.Flush()
}

func printStore(e *env, tiers []views.StoreTier, withHoldings bool) {
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	header := "TIER\tBOOST\tAVAILABLE\tBUY\tSELL"
	if withHoldings {
		header += "\tOWNED\tSELLABLE"
	}
	fmt.Fprintln(tw, header)
	for _, t := range tiers {
		buy := "unavailable"
		if t.BuyEnabled {
			buy = format.Tokens(t.BuyPrice)
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", t.Name, format.Bips(t.BoostBips), t.Available, buy, format.Tokens(t.SellPrice))
		if withHoldings {
			sellable := "-"
			if t.SellableToken != nil {
				sellable = "#" + t.SellableToken.String()
			}
			line += fmt.Sprintf("\t%d\t%s", t.Owned, sellable)
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

func unixTime(v *big.Int) time.Time {
	if v == nil || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0)
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}
