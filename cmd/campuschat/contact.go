package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"campuschat/internal/app/initiator"
	"campuschat/internal/domain/chat"
)

func newContactCommand(opts *rootOptions) *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "contact <listing-id>",
		Short: "Start or resume the conversation with a listing's seller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			out := cmd.OutOrStdout()
			contact := initiator.New(app.client, initiator.Config{
				Signal: app.signal,
				Logger: app.logger,
				Navigator: initiator.NavigatorFunc(func(_ context.Context, id chat.ID) {
					fmt.Fprintf(out, "Conversation #%s\n", id)
				}),
			})
			id, err := contact.StartOrResume(ctx, chat.ID(strings.TrimSpace(args[0])))
			if err != nil {
				return describe(err)
			}
			if !open {
				return nil
			}
			return runChat(ctx, app, id, cmd, false)
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the conversation after contacting")
	return cmd
}
