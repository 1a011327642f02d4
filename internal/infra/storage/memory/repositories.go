package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"campuschat/internal/domain/chat"
)

var (
	// ErrListingNotFound is returned when a listing cannot be located in memory.
	ErrListingNotFound = errors.New("memory: listing not found")
	// ErrConversationNotFound is returned when a conversation does not exist.
	ErrConversationNotFound = errors.New("memory: conversation not found")
	// ErrNotParticipant is returned when the caller is not buyer or seller.
	ErrNotParticipant = errors.New("memory: not a chat participant")
)

const snippetLimit = 500

// ChatRepository is an in-memory chat backend for the development server and
// tests. Not suitable for production.
type ChatRepository struct {
	mu            sync.RWMutex
	sellers       map[chat.ID]chat.ID
	conversations map[chat.ID]*conversationRecord
	byPair        map[string]chat.ID
	order         []chat.ID
	nextConvID    uint64
	nextMsgID     uint64
	now           func() time.Time
	lastStamp     time.Time
}

type conversationRecord struct {
	conversation chat.Conversation
	messages     []chat.Message
	readUpTo     map[chat.ID]int
}

// NewChatRepository builds an empty repository. now may be nil.
func NewChatRepository(now func() time.Time) *ChatRepository {
	if now == nil {
		now = time.Now
	}
	return &ChatRepository{
		sellers:       make(map[chat.ID]chat.ID),
		conversations: make(map[chat.ID]*conversationRecord),
		byPair:        make(map[string]chat.ID),
		now:           now,
	}
}

// SaveListing registers who sells a listing.
func (r *ChatRepository) SaveListing(ctx context.Context, listingID, sellerID chat.ID) error {
	if listingID.IsZero() || sellerID.IsZero() {
		return chat.ErrListingMissing
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sellers[listingID] = sellerID
	return nil
}

// GetOrCreateConversation returns the single conversation for (listing, buyer),
// creating it on first contact.
func (r *ChatRepository) GetOrCreateConversation(ctx context.Context, listingID, buyerID chat.ID) (chat.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sellerID, ok := r.sellers[listingID]
	if !ok {
		return chat.Conversation{}, false, ErrListingNotFound
	}
	if sellerID == buyerID {
		return chat.Conversation{}, false, chat.ErrSelfChat
	}
	key := pairKey(listingID, buyerID)
	if id, ok := r.byPair[key]; ok {
		return r.viewLocked(r.conversations[id], buyerID), false, nil
	}
	r.nextConvID++
	id := chat.ID(strconv.FormatUint(r.nextConvID, 10))
	record := &conversationRecord{
		conversation: chat.Conversation{
			ID:             id,
			ListingID:      listingID,
			BuyerID:        buyerID,
			SellerID:       sellerID,
			LastActivityAt: r.stampLocked(),
		},
		readUpTo: make(map[chat.ID]int),
	}
	r.conversations[id] = record
	r.byPair[key] = id
	r.order = append(r.order, id)
	return r.viewLocked(record, buyerID), true, nil
}

// ListConversations returns the viewer's conversations, most recently active first.
func (r *ChatRepository) ListConversations(ctx context.Context, viewerID chat.ID) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.Conversation, 0)
	for _, id := range r.order {
		record := r.conversations[id]
		if !record.hasParticipant(viewerID) {
			continue
		}
		out = append(out, r.viewLocked(record, viewerID))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// Conversation returns one conversation as seen by viewerID.
func (r *ChatRepository) Conversation(ctx context.Context, id, viewerID chat.ID) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, err := r.participantLocked(id, viewerID)
	if err != nil {
		return chat.Conversation{}, err
	}
	return r.viewLocked(record, viewerID), nil
}

// AddMessage appends a message and bumps the conversation's activity.
func (r *ChatRepository) AddMessage(ctx context.Context, conversationID, senderID chat.ID, body string) (chat.Message, error) {
	if err := chat.ValidateBody(body); err != nil {
		return chat.Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, err := r.participantLocked(conversationID, senderID)
	if err != nil {
		return chat.Message{}, err
	}
	r.nextMsgID++
	at := r.stampLocked()
	message := chat.Message{
		ID:             chat.ID(strconv.FormatUint(r.nextMsgID, 10)),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      at,
	}
	record.messages = append(record.messages, message)
	snippet := trimSnippet(body, snippetLimit)
	record.conversation.LastMessagePreview = &snippet
	record.conversation.LastMessageAt = &at
	record.conversation.LastActivityAt = at
	// A sender has read everything up to their own message.
	record.readUpTo[senderID] = len(record.messages)
	return message, nil
}

// ListMessages returns the latest limit messages in ascending order.
func (r *ChatRepository) ListMessages(ctx context.Context, conversationID, viewerID chat.ID, limit int) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, err := r.participantLocked(conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	messages := record.messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]chat.Message, len(messages))
	copy(out, messages)
	return out, nil
}

// MarkRead moves the viewer's read cursor to the newest message.
func (r *ChatRepository) MarkRead(ctx context.Context, conversationID, viewerID chat.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, err := r.participantLocked(conversationID, viewerID)
	if err != nil {
		return err
	}
	record.readUpTo[viewerID] = len(record.messages)
	return nil
}

func (r *ChatRepository) participantLocked(id, viewerID chat.ID) (*conversationRecord, error) {
	record, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if !record.hasParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	return record, nil
}

func (r *ChatRepository) viewLocked(record *conversationRecord, viewerID chat.ID) chat.Conversation {
	view := record.conversation
	if record.conversation.LastMessagePreview != nil {
		preview := *record.conversation.LastMessagePreview
		view.LastMessagePreview = &preview
	}
	if record.conversation.LastMessageAt != nil {
		at := *record.conversation.LastMessageAt
		view.LastMessageAt = &at
	}
	unread := 0
	for _, m := range record.messages[record.readUpTo[viewerID]:] {
		if m.SenderID != viewerID {
			unread++
		}
	}
	view.UnreadCount = unread
	return view
}

// stampLocked returns a timestamp that never goes backwards.
func (r *ChatRepository) stampLocked() time.Time {
	now := r.now().UTC()
	if now.Before(r.lastStamp) {
		now = r.lastStamp
	}
	r.lastStamp = now
	return now
}

func (c *conversationRecord) hasParticipant(id chat.ID) bool {
	return c.conversation.BuyerID == id || c.conversation.SellerID == id
}

func pairKey(listingID, buyerID chat.ID) string {
	return listingID.String() + ":" + buyerID.String()
}

func trimSnippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
