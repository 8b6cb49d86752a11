package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEntryMessage is the lightweight notification published after a ledger
// entry is written. Consumers fetch the full entry from the database; the
// message only carries enough to locate it.
type LedgerEntryMessage struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	EntryDate string    `json:"entryDate"` // "2006-01-02"
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEntryMessage creates a notification for a freshly written entry
func NewLedgerEntryMessage(id, ownerID, entryDate string) *LedgerEntryMessage {
	return &LedgerEntryMessage{
		ID:        id,
		OwnerID:   ownerID,
		EntryDate: entryDate,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEntryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEntryMessageFromJSON creates a message from JSON bytes
func LedgerEntryMessageFromJSON(data []byte) (*LedgerEntryMessage, error) {
	var msg LedgerEntryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
