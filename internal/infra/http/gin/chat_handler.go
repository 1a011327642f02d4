package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"campuschat/internal/domain/chat"
	"campuschat/internal/infra/storage/memory"
)

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	CreateConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
}

// ChatHandler serves chat endpoints from the in-memory repository.
type ChatHandler struct {
	Store  *memory.ChatRepository
	Logger *slog.Logger
}

const defaultMessagesLimit = 50

// ListConversations returns the caller's conversations, most recently active first.
func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conversations, err := h.Store.ListConversations(c.Request.Context(), p.ID)
	if err != nil {
		h.respondStoreError(c, err, "list conversations", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// CreateConversation gets or creates the caller's conversation for a listing.
func (h ChatHandler) CreateConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		PostID chat.ID `json:"post_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}
	if req.PostID.IsZero() {
		c.String(http.StatusBadRequest, "post_id is required")
		return
	}
	conversation, created, err := h.Store.GetOrCreateConversation(c.Request.Context(), req.PostID, p.ID)
	if err != nil {
		h.respondStoreError(c, err, "create conversation", "listing_id", req.PostID, "user_id", p.ID)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conversation)
}

// ListMessages returns the latest messages of a conversation in ascending order.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := chat.ID(strings.TrimSpace(c.Param("id")))
	limit := parsePositiveIntStrict(c.Query("limit"), defaultMessagesLimit)
	messages, err := h.Store.ListMessages(c.Request.Context(), conversationID, p.ID, limit)
	if err != nil {
		h.respondStoreError(c, err, "list messages", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage appends the body exactly as received.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := chat.ID(strings.TrimSpace(c.Param("id")))
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}
	message, err := h.Store.AddMessage(c.Request.Context(), conversationID, p.ID, req.Body)
	if err != nil {
		h.respondStoreError(c, err, "send message", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// MarkRead moves the caller's read cursor to the newest message.
func (h ChatHandler) MarkRead(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := chat.ID(strings.TrimSpace(c.Param("id")))
	if err := h.Store.MarkRead(c.Request.Context(), conversationID, p.ID); err != nil {
		h.respondStoreError(c, err, "mark read", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondStoreError writes a plain-text message the client surfaces verbatim.
func (h ChatHandler) respondStoreError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Warn("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch {
	case errors.Is(err, memory.ErrListingNotFound):
		c.String(http.StatusNotFound, "Listing not found")
	case errors.Is(err, memory.ErrConversationNotFound):
		c.String(http.StatusNotFound, "Conversation not found")
	case errors.Is(err, memory.ErrNotParticipant):
		c.String(http.StatusForbidden, "You are not a participant of this conversation")
	case errors.Is(err, chat.ErrSelfChat):
		c.String(http.StatusBadRequest, "You cannot message yourself")
	case errors.Is(err, chat.ErrEmptyBody):
		c.String(http.StatusBadRequest, "Message body is required")
	default:
		c.String(http.StatusInternalServerError, "Internal error")
	}
}

func parsePositiveIntStrict(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

var _ ChatHTTP = (*ChatHandler)(nil)
