package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/app"
)

type commandContext struct {
	configFlag *string
	build      func(ctx context.Context, path string) (*app.App, error)
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, build: buildApp}
}

func buildApp(ctx context.Context, path string) (*app.App, error) {
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

// withApp builds the application for one command and tears it down after.
// SIGINT and SIGTERM cancel the command context.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	a, err := c.build(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = a.Logger.Sync() }()

	return fn(ctx, a)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "toolctl",
		Short:         "Research and publish tool drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newResearchCommand(ctx))
	rootCmd.AddCommand(newPublishCommand(ctx))
	rootCmd.AddCommand(newPublishBatchCommand(ctx))

	return rootCmd
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("invalid draft id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
