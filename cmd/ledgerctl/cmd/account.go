package cmd

import (
	"context"
	"fmt"
	"strconv"

	"paperledger/internal/app"
	"paperledger/internal/ledger"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [initial_cash]",
	Short: "Create the account or reset its cash",
	Long: `Creates the single ledger account with the given cash, or with
ledger.initial_cash from the config when omitted. When the account already
exists its cash is reset and positions are kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cash *float64
		if len(args) == 1 {
			v, err := parseFloatArg("initial_cash", args[0])
			if err != nil {
				return err
			}
			cash = &v
		}
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			if cash == nil {
				return stack.Engine.InitializeAccount(ctx, stack.Config.Ledger.InitialCash)
			}
			return stack.Engine.InitializeAccount(ctx, *cash)
		})
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			acct, err := stack.Engine.Account(ctx)
			if err != nil {
				return nil, err
			}
			if acct == nil {
				return nil, ledger.ErrAccountNotInitialized
			}
			return acct, nil
		})
	},
}

var cashCmd = &cobra.Command{
	Use:   "cash <delta>",
	Short: "Deposit (positive) or withdraw (negative) cash",
	Example: `  ledgerctl cash 50000
  ledgerctl cash -- -20000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := parseFloatArg("delta", args[0])
		if err != nil {
			return err
		}
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			return stack.Engine.AdjustCash(ctx, delta)
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd, accountCmd, cashCmd)
}

func parseFloatArg(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %q", name, raw)
	}
	return v, nil
}
