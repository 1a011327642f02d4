package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"campuschat/internal/domain/chat"
)

const (
	timeLayout    = "Jan 2 15:04"
	previewLength = 48
)

func renderInbox(w io.Writer, conversations []chat.Conversation) {
	if len(conversations) == 0 {
		fmt.Fprintln(w, "No conversations yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONVERSATION\tLISTING\tUNREAD\tLAST ACTIVITY\tPREVIEW")
	for _, c := range conversations {
		unread := ""
		if n, shown := c.UnreadBadge(); shown {
			unread = strconv.Itoa(n)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.Title(),
			c.ListingID,
			unread,
			chat.FormatTime(c.LastActivityAt, timeLayout),
			truncate(oneLine(c.Preview()), previewLength),
		)
	}
	tw.Flush()
}

// renderMessage prints one line per message; the viewer's own messages are
// labelled "me", everything else by sender id.
func renderMessage(w io.Writer, m chat.Message, mine bool) {
	who := "#" + m.SenderID.String()
	if mine {
		who = "me"
	}
	stamp := chat.FormatTime(m.CreatedAt, timeLayout)
	if stamp != "" {
		stamp = "[" + stamp + "] "
	}
	fmt.Fprintf(w, "%s%s: %s\n", stamp, who, m.Body)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
