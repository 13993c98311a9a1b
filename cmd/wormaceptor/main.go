package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/config"
	obs "github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/observability"
	"github.com/azikar24/WormaCeptor-sub003/pkg/inspector"
)

var configPath string

func main() {
	// .env is optional; real env vars still win
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wormaceptor",
		Short:         "Capture, store and browse HTTP traffic",
		Version:       obs.Build().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./wormaceptor.yaml if present)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd
}

func loadConfig() (cfgpkg.Config, *zerolog.Logger, error) {
	cfg, err := cfgpkg.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, obs.NewLogger(cfg.App.LogLevel), nil
}

// openEngine builds an engine for one-shot commands; the retention loop is not started.
func openEngine(ctx context.Context) (*inspector.Engine, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	eng, err := inspector.New(ctx, cfg, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return eng, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
