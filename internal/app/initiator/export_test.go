package initiator

import "campuschat/internal/domain/chat"

// Waiting counts callers blocked on listingID.
func (i *Initiator) Waiting(listingID chat.ID) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.waiting[listingID.String()]
}
