package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"backchain/cmd/internal/passphrase"
	"backchain/config"
	"backchain/format"
	"backchain/wallet"
)

// Commands that never touch the chain.
func (c *cli) localCommands() []*cobra.Command {
	var force bool
	var passEnv string
	generateKey := &cobra.Command{
		Use:   "generate-key <keystore-path>",
		Short: "Create an encrypted signing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := refuseOverwrite(path, force); err != nil {
				return err
			}
			secret, err := passphrase.NewSource(passEnv, "new keystore").Get()
			if err != nil {
				return err
			}
			addr, err := wallet.GenerateKeystore(path, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Keystore written to %s\nAddress: %s\n", path, addr.Hex())
			return nil
		},
	}
	generateKey.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	generateKey.Flags().StringVar(&passEnv, "pass-env", config.DefaultPassphraseEnv, "environment variable holding the passphrase")

	var initForce bool
	initConfig := &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default Sepolia configuration (.toml or .yaml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := refuseOverwrite(args[0], initForce); err != nil {
				return err
			}
			if err := config.Write(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Configuration written to %s\n", args[0])
			return nil
		},
	}
	initConfig.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	watchlist := &cobra.Command{
		Use:   "watchlist",
		Short: "List tokens registered with the local wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.flags.configPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Wallet.WatchlistPath) == "" {
				return errors.New("wallet.watchlist is not configured")
			}
			list, err := wallet.OpenWatchlist(cfg.Wallet.WatchlistPath)
			if err != nil {
				return err
			}
			defer list.Close()
			assets, err := list.List()
			if err != nil {
				return err
			}
			if len(assets) == 0 {
				fmt.Fprintln(c.stdout, "No watched assets.")
				return nil
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STANDARD\tCONTRACT\tTOKEN\tADDED")
			for _, a := range assets {
				id := "-"
				if a.TokenID != nil {
					id = "#" + a.TokenID.String()
				}
				added := "-"
				if !a.AddedAt.IsZero() {
					added = a.AddedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Standard, format.Address(a.Address), id, added)
			}
			return tw.Flush()
		},
	}

	return []*cobra.Command{generateKey, initConfig, watchlist}
}

func refuseOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; pass --force to overwrite", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
