package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/app"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish one draft to the content repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				res, err := a.Publisher.Publish(c, ids[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s (commit %s)\n", res.Draft.SlugValue(), res.FilePath, res.CommitSHA)
				if res.Degraded {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", res.Warning)
				}
				return nil
			})
		},
	}
}

func newPublishBatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-batch <id>...",
		Short: "Publish several drafts in a single commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				res, err := a.Publisher.PublishBatch(c, ids)
				if res != nil {
					if printErr := printJSON(cmd.OutOrStdout(), res); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}
}
