package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"campuschat/internal/domain/chat"
)

const conversationsPath = "/chat/conversations"

// ListConversations fetches every conversation visible to the current user.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var conversations []chat.Conversation
	if err := c.Do(ctx, http.MethodGet, conversationsPath, nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// CreateConversation asks the backend to create or resume the conversation
// with the listing's seller.
func (c *Client) CreateConversation(ctx context.Context, listingID chat.ID) (chat.Conversation, error) {
	var conversation chat.Conversation
	request := struct {
		PostID chat.ID `json:"post_id"`
	}{PostID: listingID}
	if err := c.Do(ctx, http.MethodPost, conversationsPath, request, &conversation); err != nil {
		return chat.Conversation{}, err
	}
	return conversation, nil
}

// ListMessages fetches the most recent limit messages of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID chat.ID, limit int) ([]chat.Message, error) {
	path := messagesPath(conversationID)
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var messages []chat.Message
	if err := c.Do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts body as-is and returns the server-confirmed message.
func (c *Client) SendMessage(ctx context.Context, conversationID chat.ID, body string) (chat.Message, error) {
	var message chat.Message
	request := struct {
		Body string `json:"body"`
	}{Body: body}
	if err := c.Do(ctx, http.MethodPost, messagesPath(conversationID), request, &message); err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// MarkRead advances the viewer's read cursor to the end of the conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID chat.ID) error {
	return c.Do(ctx, http.MethodPost, conversationPath(conversationID)+"/read", nil, nil)
}

// Account is the subset of GET /auth/me the chat client reads.
type Account struct {
	ID    chat.ID `json:"id"`
	Email string  `json:"email,omitempty"`
	Name  string  `json:"name,omitempty"`
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (Account, error) {
	var account Account
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

func conversationPath(id chat.ID) string {
	return fmt.Sprintf("%s/%s", conversationsPath, url.PathEscape(id.String()))
}

func messagesPath(id chat.ID) string {
	return conversationPath(id) + "/messages"
}
