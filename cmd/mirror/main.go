package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"smart-mirror/config"
)

type options struct {
	configPath string
	envPath    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "mirror",
		Short:         "Smart mirror voice assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&opts.envPath, "env", ".env", "path to .env file")

	root.AddCommand(
		newServeCmd(opts),
		newAgentCmd(opts),
		newSweepCmd(opts),
		newSayCmd(opts),
	)
	return root
}

// load reads .env (when present) before the config so ${VAR} references in
// the YAML resolve.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(o.envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Log), nil
}
