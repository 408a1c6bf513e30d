package cmd

import (
	"context"
	"fmt"
	"strings"

	"paperledger/internal/app"

	"github.com/spf13/cobra"
)

var marksLimit int

var markCmd = &cobra.Command{
	Use:     "mark <code=price>...",
	Short:   "Mark held positions to the given prices",
	Example: `  ledgerctl mark 600519.SH=11.2 000001.SZ=9.87`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prices := make(map[string]float64, len(args))
		for _, arg := range args {
			code, raw, ok := strings.Cut(arg, "=")
			if !ok || strings.TrimSpace(code) == "" {
				return fmt.Errorf("expected code=price, got %q", arg)
			}
			price, err := parseFloatArg("price for "+code, raw)
			if err != nil {
				return err
			}
			prices[code] = price
		}
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			return stack.Engine.MarkPrices(ctx, prices)
		})
	},
}

var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "List recorded price snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			return stack.Engine.Marks(ctx, marksLimit)
		})
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle [code]...",
	Short: "Release today's buys for sale (all positions when no code is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			return stack.Engine.Settle(ctx, args...)
		})
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List end-of-day account snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			if stack.History == nil {
				return nil, fmt.Errorf("history store is not configured")
			}
			return stack.History.List(ctx, historyLimit)
		})
	},
}

func init() {
	rootCmd.AddCommand(markCmd, marksCmd, settleCmd, historyCmd)
	marksCmd.Flags().IntVarP(&marksLimit, "limit", "n", 20, "maximum snapshots to show (0 for all)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 30, "maximum days to show (0 for all)")
}
