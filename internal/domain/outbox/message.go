package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
)

// Message stores a run summary for reliable publication to the result topic
type Message struct {
	ID            int64               `json:"id"`
	RunID         uuid.UUID           `json:"run_id"`
	BatchID       string              `json:"batch_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(summary *ledger.RunSummary) (*Message, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return &Message{
		RunID:     summary.RunID,
		BatchID:   summary.BatchID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetRunSummary extracts the run summary from the payload
func (m *Message) GetRunSummary() (*ledger.RunSummary, error) {
	var summary ledger.RunSummary
	if err := json.Unmarshal(m.Payload, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
