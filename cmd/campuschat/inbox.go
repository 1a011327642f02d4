package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"campuschat/internal/app/directory"
)

func newInboxCommand(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List your conversations, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			dir := directory.New(app.client, directory.Config{
				Interval:  app.cfg.InboxInterval,
				Signal:    app.signal,
				Publisher: app.publisher,
				Logger:    app.logger,
			})
			out := cmd.OutOrStdout()
			if !watch {
				conversations, err := dir.Refresh(ctx)
				if err != nil {
					return describe(err)
				}
				renderInbox(out, conversations)
				return nil
			}
			return watchInbox(ctx, app, dir, cmd)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and re-render on every change")
	return cmd
}

func watchInbox(ctx context.Context, app *application, dir *directory.Directory, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	out := cmd.OutOrStdout()

	done := make(chan error, 1)
	go func() { done <- dir.Run(ctx) }()
	for {
		select {
		case <-dir.Changes():
			snap := dir.Snapshot()
			if snap.State == directory.StateErrored && snap.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "! %v\n", snap.Err)
				continue
			}
			if snap.Loaded {
				fmt.Fprintf(out, "\n%d unread\n", snap.TotalUnread())
				renderInbox(out, snap.Conversations)
			}
		case <-app.signal.Lost():
			return errSessionLost
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return describe(err)
		}
	}
}
