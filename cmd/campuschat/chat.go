package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"campuschat/internal/app/conversation"
	"campuschat/internal/domain/chat"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "chat <conversation-id>",
		Short: "Open a conversation; each input line is sent as a message",
		Long: `Open a conversation and follow it. Every line read from stdin is sent as
typed. A message that fails to send is kept as a draft; an empty line retries it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)
			return runChat(ctx, app, chat.ID(strings.TrimSpace(args[0])), cmd, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the recent messages and exit")
	return cmd
}

func runChat(ctx context.Context, app *application, id chat.ID, cmd *cobra.Command, once bool) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	session := conversation.New(id, app.client, conversation.Config{
		Interval:  app.cfg.MessagesInterval,
		Limit:     app.cfg.MessagesLimit,
		Identity:  app.identity,
		Signal:    app.signal,
		Publisher: app.publisher,
		Logger:    app.logger,
	})
	defer session.Close()

	if once {
		messages, err := session.LoadRecent(ctx, 0)
		if err != nil {
			return describe(err)
		}
		if len(messages) == 0 {
			fmt.Fprintln(out, "No messages yet")
		}
		for _, m := range messages {
			renderMessage(out, m, session.IsMine(m))
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	lines := readLines(cmd.InOrStdin())

	printed := make(map[chat.ID]bool)
	show := func(messages []chat.Message) {
		for _, m := range messages {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			renderMessage(out, m, session.IsMine(m))
		}
	}
	var lastErr error
	draft := ""
	for {
		select {
		case <-session.Changes():
			snap := session.Snapshot()
			show(snap.Messages)
			if snap.State == conversation.StateErrored && snap.Err != nil && snap.Err != lastErr {
				fmt.Fprintf(errOut, "! %v\n", snap.Err)
			}
			lastErr = snap.Err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			body := line
			if strings.TrimSpace(body) == "" && draft != "" {
				body = draft
			}
			sent, err := session.Send(ctx, body)
			switch {
			case chat.IsValidation(err):
				fmt.Fprintln(errOut, "! message is empty")
			case errors.Is(err, conversation.ErrHalted):
				return errSessionLost
			case err != nil:
				draft = body
				fmt.Fprintf(errOut, "! not sent: %v (press enter to retry)\n", describe(err))
			default:
				draft = ""
				show([]chat.Message{sent})
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

// readLines streams input lines until EOF. The goroutine outlives the chat
// only while blocked on a terminal read.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
