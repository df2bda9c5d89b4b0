package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smart-mirror/internal/infra/photos"
	"smart-mirror/internal/infra/tts"
)

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete captured photos older than the expiry window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			store, err := photos.NewStore(cfg.Captures.Dir, cfg.Captures.Expiry, logger)
			if err != nil {
				return err
			}
			removed := store.Sweep(time.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d photo(s) older than %s\n", removed, cfg.Captures.Expiry)
			return nil
		},
	}
}

func newSayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "say TEXT...",
		Short: "Speak text through the configured voice",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			speech := tts.NewSerializer(newSynthesizer(cfg.Speech, logger), 1, logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			ctx, cancel := context.WithCancel(ctx)
			g.Go(func() error {
				return speech.Run(ctx)
			})
			g.Go(func() error {
				defer cancel()
				return speech.Speak(ctx, strings.Join(args, " "))
			})
			return g.Wait()
		},
	}
}
