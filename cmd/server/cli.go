package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	transferFrom        string
	transferTo          string
	transferAmount      string
	transferDescription string
	transferAs          string

	dashboardEmail string
	dashboardAs    string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move money between two accounts",
	Long: `Move money from one account to another. Without --from the transfer
is sent on behalf of the session account (--as, or the Redis session).

Example:
  ledger transfer --from ana@example.com --to bo@example.com --amount 25 --description rent`,
	RunE: runTransfer,
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print balance, monthly income and monthly expenses",
	RunE:  runDashboard,
}

func init() {
	transferCmd.Flags().StringVar(&transferFrom, "from", "", "Sender email")
	transferCmd.Flags().StringVar(&transferTo, "to", "", "Recipient email")
	transferCmd.Flags().StringVar(&transferAmount, "amount", "", "Amount to move")
	transferCmd.Flags().StringVar(&transferDescription, "description", "", "Free text carried on both entries")
	transferCmd.Flags().StringVar(&transferAs, "as", "", "Session email to send as when --from is empty")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")

	dashboardCmd.Flags().StringVar(&dashboardEmail, "email", "", "Account email (defaults to the session account)")
	dashboardCmd.Flags().StringVar(&dashboardAs, "as", "", "Session email when --email is empty")
}

func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func runTransfer(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(transferAmount)
	if err != nil {
		return fmt.Errorf("--amount: %w", err)
	}

	a, err := newApp(cmd.Context(), cfg, cliLogger(), transferAs)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if !a.ledger.VerifyRecipient(ctx, transferTo) {
		return fmt.Errorf("recipient %s not found", transferTo)
	}

	if transferFrom == "" {
		err = a.ledger.Send(ctx, transferTo, amount, transferDescription)
	} else {
		err = a.ledger.TransferMoney(ctx, transferFrom, transferTo, amount, transferDescription)
	}
	if err != nil {
		var mErr *ledger.MutationError
		if errors.As(err, &mErr) && mErr.Partial() {
			fmt.Fprintf(cmd.ErrOrStderr(), "committed: %v\n", mErr.Committed)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "transferred %s to %s\n", amount.StringFixed(2), transferTo)
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, cliLogger(), dashboardAs)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := struct {
		Dashboard any `json:"dashboard"`
		Recent    any `json:"recentTransactions"`
		History   any `json:"balanceHistory"`
	}{}

	email := dashboardEmail
	if email == "" {
		account, err := a.ledger.CurrentAccount(ctx)
		if err != nil {
			return err
		}
		email = account.Email
		if out.Dashboard, err = a.ledger.CurrentDashboard(ctx); err != nil {
			return err
		}
	} else if out.Dashboard, err = a.ledger.DashboardData(ctx, email); err != nil {
		return err
	}

	if out.Recent, err = a.ledger.RecentTransactions(ctx, email); err != nil {
		return err
	}
	out.History = a.ledger.BalanceHistory(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
