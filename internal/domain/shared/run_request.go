package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRunRequest = errors.New("invalid run request")
)

// RunRequest defines a Kafka message asking the reconciler to process one ingested batch
type RunRequest struct {
	RunID         uuid.UUID `json:"run_id"`
	BatchID       string    `json:"batch_id"`
	CorrelationID string    `json:"correlation_id"`
	RequestedAt   time.Time `json:"requested_at"`
}

// Validate checks the fields the reconciler cannot run without
func (r *RunRequest) Validate() error {
	if r.RunID == uuid.Nil {
		return errors.Join(ErrInvalidRunRequest, errors.New("run_id is required"))
	}
	if r.BatchID == "" {
		return errors.Join(ErrInvalidRunRequest, errors.New("batch_id is required"))
	}
	return nil
}
