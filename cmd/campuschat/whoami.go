package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and remember it as the local identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			account, err := app.client.Me(ctx)
			if err != nil {
				return describe(err)
			}
			out := cmd.OutOrStdout()
			if account.ID.IsZero() {
				me := app.identity.Get(ctx)
				if !me.Known {
					fmt.Fprintln(out, "unknown")
					return nil
				}
				fmt.Fprintf(out, "%s (cached)\n", me.ID)
				return nil
			}
			if err := app.identity.Remember(ctx, account.ID); err != nil {
				app.logger.Warn("remember identity failed", "error", err)
			}
			fmt.Fprintln(out, account.ID)
			if account.Name != "" {
				fmt.Fprintln(out, account.Name)
			}
			if account.Email != "" {
				fmt.Fprintln(out, account.Email)
			}
			return nil
		},
	}
}
