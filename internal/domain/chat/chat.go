package chat

import (
	"fmt"
	"strings"
	"time"
)

// Conversation is a buyer/seller thread anchored to one listing. UnreadCount is
// relative to the viewing user.
type Conversation struct {
	ID                 ID         `json:"id"`
	ListingID          ID         `json:"post_id"`
	BuyerID            ID         `json:"buyer_id"`
	SellerID           ID         `json:"seller_id"`
	LastActivityAt     time.Time  `json:"updated_at"`
	LastMessagePreview *string    `json:"last_message,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount        int        `json:"unread_count,omitempty"`
}

const noMessagesPreview = "No messages yet"

// UnreadBadge returns the count to surface and whether an indicator is shown at all.
func (c Conversation) UnreadBadge() (int, bool) {
	if c.UnreadCount > 0 {
		return c.UnreadCount, true
	}
	return 0, false
}

// Preview returns the last message text or a placeholder for empty threads.
func (c Conversation) Preview() string {
	if c.LastMessagePreview != nil {
		if text := strings.TrimSpace(*c.LastMessagePreview); text != "" {
			return text
		}
	}
	return noMessagesPreview
}

// Title is the inbox heading for the conversation.
func (c Conversation) Title() string {
	return fmt.Sprintf("Conversation #%s", c.ID)
}

// Message is an immutable unit of text within a conversation.
type Message struct {
	ID             ID        `json:"id"`
	ConversationID ID        `json:"conversation_id"`
	SenderID       ID        `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Less orders messages by (CreatedAt, ID).
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.Compare(b.ID) < 0
}

// Sorted reports whether messages are in ascending (CreatedAt, ID) order.
func Sorted(messages []Message) bool {
	for i := 1; i < len(messages); i++ {
		if Less(messages[i], messages[i-1]) {
			return false
		}
	}
	return true
}

// FormatTime renders a timestamp in local time, or "" when it is unset.
func FormatTime(ts time.Time, layout string) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(layout)
}
