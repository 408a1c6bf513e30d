package cmd

import (
	"context"
	"fmt"
	"strconv"

	"paperledger/internal/app"
	"paperledger/internal/ledger"

	"github.com/spf13/cobra"
)

type orderFlags struct {
	fee       float64
	tradeDate string
	name      string
	tag       string
	reason    string
}

var (
	buyFlags    orderFlags
	sellFlags   orderFlags
	ordersLimit int
)

var buyCmd = &cobra.Command{
	Use:     "buy <code> <price> <volume>",
	Short:   "Record a filled buy",
	Example: `  ledgerctl buy 600519.SH 10.5 100 --fee 5 --tag breakout`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrder(cmd, ledger.ActionBuy, args, buyFlags)
	},
}

var sellCmd = &cobra.Command{
	Use:     "sell <code> <price> <volume>",
	Short:   "Record a filled sell",
	Example: `  ledgerctl sell 600519.SH 11 100 --reason "take profit"`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrder(cmd, ledger.ActionSell, args, sellFlags)
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			return stack.Engine.Orders(ctx, ordersLimit)
		})
	},
}

func init() {
	rootCmd.AddCommand(buyCmd, sellCmd, ordersCmd)

	for _, c := range []struct {
		cmd   *cobra.Command
		flags *orderFlags
	}{{buyCmd, &buyFlags}, {sellCmd, &sellFlags}} {
		c.cmd.Flags().Float64Var(&c.flags.fee, "fee", 0, "commission and taxes for the fill")
		c.cmd.Flags().StringVar(&c.flags.tradeDate, "date", "", "trade date YYYYMMDD (default today)")
	}
	buyCmd.Flags().StringVar(&buyFlags.name, "name", "", "display name for a new position")
	buyCmd.Flags().StringVar(&buyFlags.tag, "tag", "", "strategy tag")
	sellCmd.Flags().StringVar(&sellFlags.reason, "reason", "", "why the position was reduced")

	ordersCmd.Flags().IntVarP(&ordersLimit, "limit", "n", 50, "maximum orders to show (0 for all)")
}

func runOrder(cmd *cobra.Command, action ledger.Action, args []string, f orderFlags) error {
	price, err := parseFloatArg("price", args[1])
	if err != nil {
		return err
	}
	volume, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("volume must be an integer: %q", args[2])
	}
	req := ledger.OrderRequest{
		TradeDate:   f.tradeDate,
		Code:        args[0],
		Action:      action,
		Price:       price,
		Volume:      volume,
		Fee:         f.fee,
		StrategyTag: f.tag,
		Reason:      f.reason,
		DisplayName: f.name,
	}
	return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
		return stack.Engine.ApplyOrder(ctx, req)
	})
}
