package domain

type EventType string

const (
	EventTransactionAdded    EventType = "transaction_added"
	EventTransactionUpdated  EventType = "transaction_updated"
	EventTransactionsDeleted EventType = "transactions_deleted"
	EventTransactionsCleared EventType = "transactions_cleared"
	EventActivityCleared     EventType = "activity_cleared"
)

// ChangeEvent notifies live consumers that stored data changed.
type ChangeEvent struct {
	Type  EventType `json:"type"`
	ID    int64     `json:"id,omitempty"`
	Count int64     `json:"count,omitempty"`
}
