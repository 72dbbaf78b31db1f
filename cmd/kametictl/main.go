package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/kameti/internal/config"
	"github.com/mmynk/kameti/pkg/api"
	"github.com/mmynk/kameti/pkg/logging"
)

var Version = "dev"

func main() {
	logging.Setup()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kametictl",
		Short:         "Operator tool for the kameti payout engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", "", "Server base URL (default $KAMETI_SERVER)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (default $KAMETI_TOKEN)")
	rootCmd.PersistentFlags().String("db", "", "Database path for local commands (default $KAMETI_DB_PATH)")

	// Add subcommands
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(readinessCmd())
	rootCmd.AddCommand(payoutCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(userCmd())

	return rootCmd
}

// loadConfig applies persistent flag overrides on top of the environment.
func loadConfig(cmd *cobra.Command) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		cfg.Server = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Token = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command) (*api.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("no token: pass --token or set KAMETI_TOKEN")
	}
	return api.NewClient(http.DefaultClient, cfg.Server, cfg.Token), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
