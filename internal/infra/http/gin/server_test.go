package ginserver_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"campuschat/internal/domain/chat"
	"campuschat/internal/infra/api"
	"campuschat/internal/infra/http/gin/stubtest"
)

var (
	tokens   = map[string]string{"buyer-token": "1", "seller-token": "2", "other-token": "3"}
	listings = map[string]string{"77": "2"}
)

func TestBackendRejectsAnonymousCalls(t *testing.T) {
	backend := stubtest.New(t, tokens, listings)
	ctx := context.Background()

	for name, client := range map[string]*api.Client{
		"anonymous":     backend.Client(t, ""),
		"unknown token": backend.Client(t, "stolen"),
	} {
		if _, err := client.ListConversations(ctx); !errors.Is(err, api.ErrUnauthorized) {
			t.Errorf("%s: ListConversations err = %v, want ErrUnauthorized", name, err)
		}
	}
}

func TestBackendBearerAuth(t *testing.T) {
	backend := stubtest.New(t, tokens, listings)
	client, err := api.NewClient(api.Config{
		BaseURL:    backend.Server.URL,
		Credential: api.BearerCredential{Token: "buyer-token"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	account, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if account.ID != "1" {
		t.Errorf("Me().ID = %q, want 1", account.ID)
	}
}

func TestBackendConversationLifecycle(t *testing.T) {
	backend := stubtest.New(t, tokens, listings)
	ctx := context.Background()
	buyer := backend.Client(t, "buyer-token")
	seller := backend.Client(t, "seller-token")

	first, err := buyer.CreateConversation(ctx, "77")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	again, err := buyer.CreateConversation(ctx, "77")
	if err != nil {
		t.Fatalf("CreateConversation (resume): %v", err)
	}
	if first.ID.IsZero() || first.ID != again.ID {
		t.Fatalf("resume returned %q, first %q", again.ID, first.ID)
	}
	if first.BuyerID != "1" || first.SellerID != "2" || first.ListingID != "77" {
		t.Errorf("participants = %+v", first)
	}

	for _, body := range []string{"Is it available?", "  I can pick it up today  "} {
		if _, err := buyer.SendMessage(ctx, first.ID, body); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}
	messages, err := seller.ListMessages(ctx, first.ID, 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 2 || !chat.Sorted(messages) {
		t.Fatalf("messages = %+v, want 2 ascending", messages)
	}
	if messages[1].Body != "  I can pick it up today  " {
		t.Errorf("body altered: %q", messages[1].Body)
	}

	inbox, err := seller.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(inbox) != 1 || inbox[0].UnreadCount != 2 {
		t.Fatalf("seller inbox = %+v, want one conversation with 2 unread", inbox)
	}
	if inbox[0].Preview() != "I can pick it up today" {
		t.Errorf("preview = %q", inbox[0].Preview())
	}

	if err := seller.MarkRead(ctx, first.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	inbox, _ = seller.ListConversations(ctx)
	if _, shown := inbox[0].UnreadBadge(); shown {
		t.Errorf("unread after MarkRead = %d", inbox[0].UnreadCount)
	}

	buyerInbox, _ := buyer.ListConversations(ctx)
	if buyerInbox[0].UnreadCount != 0 {
		t.Errorf("own messages must not count as unread, got %d", buyerInbox[0].UnreadCount)
	}
}

func TestBackendListMessagesLimit(t *testing.T) {
	backend := stubtest.New(t, tokens, listings)
	ctx := context.Background()
	buyer := backend.Client(t, "buyer-token")
	conversation, err := buyer.CreateConversation(ctx, "77")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	for i := 1; i <= 5; i++ {
		if _, err := buyer.SendMessage(ctx, conversation.ID, "msg "+strconv.Itoa(i)); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}
	messages, err := buyer.ListMessages(ctx, conversation.ID, 3)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 3 || messages[0].Body != "msg 3" || messages[2].Body != "msg 5" {
		t.Errorf("messages = %+v, want the latest three ascending", messages)
	}
}

func TestBackendInboxOrderedByActivity(t *testing.T) {
	backend := stubtest.New(t, tokens, map[string]string{"77": "2", "78": "2"})
	ctx := context.Background()
	buyer := backend.Client(t, "buyer-token")
	older, _ := buyer.CreateConversation(ctx, "77")
	newer, _ := buyer.CreateConversation(ctx, "78")

	inbox, _ := buyer.ListConversations(ctx)
	if len(inbox) != 2 || inbox[0].ID != newer.ID {
		t.Fatalf("inbox = %+v, want newest first", inbox)
	}
	if _, err := buyer.SendMessage(ctx, older.ID, "bump"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	inbox, _ = buyer.ListConversations(ctx)
	if inbox[0].ID != older.ID {
		t.Errorf("inbox[0] = %q, want %q after new message", inbox[0].ID, older.ID)
	}
}

func TestBackendFailures(t *testing.T) {
	backend := stubtest.New(t, tokens, listings)
	ctx := context.Background()
	buyer := backend.Client(t, "buyer-token")
	seller := backend.Client(t, "seller-token")
	outsider := backend.Client(t, "other-token")
	conversation, err := buyer.CreateConversation(ctx, "77")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	cases := []struct {
		name    string
		call    func() error
		status  int
		message string
	}{
		{"self chat", func() error { _, err := seller.CreateConversation(ctx, "77"); return err }, http.StatusBadRequest, "You cannot message yourself"},
		{"unknown listing", func() error { _, err := buyer.CreateConversation(ctx, "404"); return err }, http.StatusNotFound, "Listing not found"},
		{"outsider", func() error { _, err := outsider.ListMessages(ctx, conversation.ID, 10); return err }, http.StatusForbidden, "You are not a participant of this conversation"},
		{"unknown conversation", func() error { return buyer.MarkRead(ctx, "999") }, http.StatusNotFound, "Conversation not found"},
		{"blank body", func() error { _, err := buyer.SendMessage(ctx, conversation.ID, "   "); return err }, http.StatusBadRequest, "Message body is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			failure, ok := api.AsFailure(tc.call())
			if !ok {
				t.Fatal("expected *api.Failure")
			}
			if failure.StatusCode != tc.status || failure.Message != tc.message {
				t.Errorf("failure = %d %q, want %d %q", failure.StatusCode, failure.Message, tc.status, tc.message)
			}
		})
	}
}

func TestBackendHealth(t *testing.T) {
	backend := stubtest.New(t, tokens, listings)
	resp, err := backend.Server.Client().Get(backend.Server.URL + "/livez")
	if err != nil {
		t.Fatalf("GET /livez: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/livez = %d", resp.StatusCode)
	}
}
