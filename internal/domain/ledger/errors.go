package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rewards-reconciler/internal/domain/shared"
)

var (
	ErrSchemaValidation = errors.New("schema validation fault")
	ErrStructuralFault  = errors.New("matcher structural fault")
	ErrBatchCanceled    = errors.New("batch canceled")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrEmptyBatch       = errors.New("batch contains no records")
	ErrBatchExists      = errors.New("batch already ingested")
)

// Fault is a batch-level error that halts a run with a specific code
type Fault interface {
	error
	FaultCode() shared.FaultCode
}

// FaultCodeOf extracts the fault code from an error chain
func FaultCodeOf(err error) (shared.FaultCode, bool) {
	var fault Fault
	if errors.As(err, &fault) {
		return fault.FaultCode(), true
	}
	return "", false
}

// SchemaValidationFault indicates the quarantine ratio exceeded the configured threshold
type SchemaValidationFault struct {
	Total       int
	Quarantined int
	Ratio       float64
	Threshold   float64
	SampleIDs   []string // first offending records, by transaction id or row reference
}

func (e SchemaValidationFault) Error() string {
	return fmt.Sprintf("schema validation fault: %d of %d records quarantined (ratio %.4f exceeds threshold %.4f); first offenders: %s",
		e.Quarantined, e.Total, e.Ratio, e.Threshold, strings.Join(e.SampleIDs, ", "))
}

func (e SchemaValidationFault) FaultCode() shared.FaultCode {
	return shared.FaultSchemaValidation
}

// Is implements the errors.Is interface for SchemaValidationFault
func (e SchemaValidationFault) Is(target error) bool {
	if target == ErrSchemaValidation {
		return true
	}
	_, ok := target.(SchemaValidationFault)
	return ok
}

// StructuralFault indicates the matcher output broke an engine invariant
type StructuralFault struct {
	Code          shared.FaultCode
	CustomerID    string
	TransactionID string
	Detail        string
}

func (e StructuralFault) Error() string {
	return fmt.Sprintf("%s: customer %s transaction %s: %s", e.Code, e.CustomerID, e.TransactionID, e.Detail)
}

func (e StructuralFault) FaultCode() shared.FaultCode {
	return e.Code
}

// Is implements the errors.Is interface for StructuralFault
func (e StructuralFault) Is(target error) bool {
	if target == ErrStructuralFault {
		return true
	}
	t, ok := target.(StructuralFault)
	if !ok {
		return false
	}
	// An empty target code matches any structural fault
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code
}

// ErrRunNotFound indicates a missing reconciliation run report
type ErrRunNotFound struct {
	RunID string
}

func (e ErrRunNotFound) Error() string {
	return "reconciliation run not found: " + e.RunID
}

// Is implements the errors.Is interface for ErrRunNotFound
func (e ErrRunNotFound) Is(target error) bool {
	t, ok := target.(ErrRunNotFound)
	if !ok {
		return false
	}
	if t.RunID == "" {
		return true
	}
	return e.RunID == t.RunID
}

// ErrSnapshotNotFound indicates no balance snapshot exists for a customer at the requested time
type ErrSnapshotNotFound struct {
	CustomerID string
}

func (e ErrSnapshotNotFound) Error() string {
	return "balance snapshot not found for customer: " + e.CustomerID
}

// Is implements the errors.Is interface for ErrSnapshotNotFound
func (e ErrSnapshotNotFound) Is(target error) bool {
	t, ok := target.(ErrSnapshotNotFound)
	if !ok {
		return false
	}
	if t.CustomerID == "" {
		return true
	}
	return e.CustomerID == t.CustomerID
}
