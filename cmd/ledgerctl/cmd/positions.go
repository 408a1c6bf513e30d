package cmd

import (
	"context"
	"fmt"
	"strconv"

	"paperledger/internal/app"
	"paperledger/internal/ledger"

	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions [code]",
	Short: "List positions, or show one by code",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			if len(args) == 0 {
				return stack.Engine.Positions(ctx)
			}
			pos, err := stack.Engine.Position(ctx, args[0])
			if err != nil {
				return nil, err
			}
			if pos == nil {
				return nil, &ledger.PositionNotFoundError{Code: args[0]}
			}
			return pos, nil
		})
	},
}

var deletePositionCmd = &cobra.Command{
	Use:   "delete-position <id>",
	Short: "Drop a position row without touching cash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("id must be an integer: %q", args[0])
		}
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			deleted, err := stack.Engine.DeletePosition(ctx, id)
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": id, "deleted": deleted}, nil
		})
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every position without touching cash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear positions without --yes")
		}
		return withStack(cmd, func(ctx context.Context, stack *app.Stack) (any, error) {
			n, err := stack.Engine.ClearPositions(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"deleted": n}, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(positionsCmd, deletePositionCmd, clearCmd)
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm clearing all positions")
}
