package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"paperledger/internal/app"
	"paperledger/internal/config"
	"paperledger/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the paper-trading ledger directly against its database",
	Long: `ledgerctl opens the same store the paperledger server uses and applies
ledger operations from the command line. Every command prints JSON.

Examples:
  ledgerctl init 1000000
  ledgerctl buy 600519.SH 10.5 100 --fee 5
  ledgerctl mark 600519.SH=11.2
  ledgerctl settle`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
}

// withStack opens the ledger, runs fn and closes everything again.
func withStack(cmd *cobra.Command, fn func(ctx context.Context, stack *app.Stack) (any, error)) error {
	cfg, err := config.Load(config.ResolvePath(cfgFile))
	if err != nil {
		return err
	}
	// stdout carries the JSON result, so logs go to stderr and stay quiet
	// unless debugging.
	logger.SetOutput(cmd.ErrOrStderr())
	if cfg.App.LogLevel == "debug" {
		logger.SetLevel("debug")
	} else {
		logger.SetLevel("warn")
	}
	stack, err := app.OpenStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	out, err := fn(cmd.Context(), stack)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
