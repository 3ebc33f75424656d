package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/app"
)

func newResearchCommand(ctx *commandContext) *cobra.Command {
	var processAll bool

	cmd := &cobra.Command{
		Use:   "research [id]",
		Short: "Run the research pipeline for a draft or drain the queue",
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case processAll && len(args) > 0:
				return errors.New("--process-all does not take a draft id")
			case !processAll && len(args) != 1:
				return errors.New("expected exactly one draft id, or --process-all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if processAll {
				return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
					res, err := a.Worker.ProcessAll(c)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Processed %d drafts: %d succeeded, %d failed\n",
						res.Succeeded+res.Failed, res.Succeeded, res.Failed)
					return nil
				})
			}

			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				d, err := a.Research.Run(c, ids[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Researched %s (%s), status %s\n", d.NameValue(), d.SlugValue(), d.Status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&processAll, "process-all", false, "Research every queued draft until the queue is empty")
	return cmd
}
