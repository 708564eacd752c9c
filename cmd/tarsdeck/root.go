package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/potrolco/tarsdeck/internal/app"
	"github.com/potrolco/tarsdeck/internal/config"
)

const skipConfigLoad = "skipConfigLoad"

type commandContext struct {
	configFlag string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(strings.TrimSpace(c.configFlag))
	})
	return c.config, c.configErr
}

// withDeck wires a Deck for one-shot commands. The websocket is never dialled.
func (c *commandContext) withDeck(ctx context.Context, fn func(*app.Deck) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	d, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func newRootCmd() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "tarsdeck",
		Short:         "Terminal dashboard for a TARS transcoding server",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigLoad] == "true" {
				return nil
			}
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			logger := newConsoleLogger(cfg.LogLevel)
			cmd.SetContext(pslog.ContextWithLogger(cmd.Context(), logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash(cmd, cc)
		},
	}
	root.PersistentFlags().StringVarP(&cc.configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(newDashCmd(cc))
	root.AddCommand(newWatchCmd(cc))
	root.AddCommand(newStatusCmd(cc))
	root.AddCommand(newGPUCmd(cc))
	root.AddCommand(newSettingsCmd(cc))
	root.AddCommand(newWorkersCmd(cc))
	root.AddCommand(newQueueCmd(cc))
	root.AddCommand(newHistoryCmd(cc))
	root.AddCommand(newConfigCmd(cc))

	return root
}

func newDashCmd(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Open the interactive dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash(cmd, cc)
		},
	}
}

// runDash starts the TUI. Without a terminal on stdout it prints the status
// tables instead.
func runDash(cmd *cobra.Command, cc *commandContext) error {
	ctx := cmd.Context()
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	if !isTerminal(os.Stdout) {
		pslog.Ctx(ctx).Warn("stdout is not a terminal, printing status instead")
		return runStatus(cmd, cc)
	}

	logger, closeLog, err := newFileLogger(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx = pslog.ContextWithLogger(ctx, logger)
	logger.Info("dashboard starting", "server", cfg.ServerURL)

	d, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.Run(ctx, d); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	logger.Info("dashboard stopped")
	return nil
}

func newWatchCmd(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Log live worker, queue and message updates until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			return app.Watch(ctx, d)
		},
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
