package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/config"
)

var accountsShowNIK bool

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect the account record store",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List account records (identity numbers masked)",
	RunE:  accountsList,
}

var accountsValidateCmd = &cobra.Command{
	Use:   "validate [seed-file]",
	Short: "Validate an account seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accts, err := accounts.LoadSeed(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d accounts\n", args[0], len(accts))
		return nil
	},
}

func init() {
	accountsListCmd.Flags().BoolVar(&accountsShowNIK, "show-nik", false, "Print full identity numbers")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsValidateCmd)
	rootCmd.AddCommand(accountsCmd)
}

func accountsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := openAccountStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	accts, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}
	renderAccounts(cmd.OutOrStdout(), accts, accountsShowNIK)
	return nil
}

// renderAccounts writes account lines to w (testable).
func renderAccounts(w io.Writer, accts []accounts.Account, showNIK bool) {
	if len(accts) == 0 {
		fmt.Fprintln(w, "No accounts found.")
		return
	}
	fmt.Fprintf(w, "Accounts (%d):\n\n", len(accts))
	for _, a := range accts {
		nik := a.NIK
		if !showNIK {
			nik = maskNIK(nik)
		}
		fmt.Fprintf(w, "  %s | %-20s | %s\n", nik, a.Name, formatRupiah(a.Balance))
	}
}
