package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/reconciler/service"
	"github.com/shopspring/decimal"
)

// maxFaultSamples bounds the offending ids carried by a SchemaValidationFault
const maxFaultSamples = 5

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type SourceValidatorImpl struct {
	logger *slog.Logger
}

func NewSourceValidator(logger *slog.Logger) service.SourceValidator {
	return &SourceValidatorImpl{
		logger: logger.With("component", "source_validator"),
	}
}

// Validate partitions raw records into valid transactions and quarantined records.
// Every input record lands in exactly one partition.
func (v *SourceValidatorImpl) Validate(ctx context.Context, records []ledger.RawRecord, cfg ledger.RunConfig) (*ledger.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w before source validation: %w", ledger.ErrBatchCanceled, err)
	}

	result := &ledger.ValidationResult{
		Valid:       make([]ledger.Transaction, 0, len(records)),
		Quarantined: make([]ledger.QuarantinedRecord, 0),
	}

	occurrences := make(map[string]int, len(records))
	for _, record := range records {
		if id := strings.TrimSpace(record.TransactionID); id != "" {
			occurrences[id]++
		}
	}

	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		tx, reasons := parseRecord(record)

		if id := tx.TransactionID; id != "" {
			if _, dup := seen[id]; dup {
				reasons = appendReason(reasons, shared.ReasonDuplicateID)
			} else {
				seen[id] = struct{}{}
				if occurrences[id] > 1 {
					tx.AuditFlags = append(tx.AuditFlags, shared.ReasonDuplicateID)
				}
			}
		}

		if len(reasons) > 0 {
			v.logger.Debug("Record quarantined",
				"row_number", record.RowNumber,
				"transaction_id", record.TransactionID,
				"reasons", reasons,
			)
			result.Quarantined = append(result.Quarantined, ledger.QuarantinedRecord{
				Record:  record,
				Reasons: reasons,
			})
			continue
		}
		result.Valid = append(result.Valid, tx)
	}

	v.logger.Info("Source validation finished",
		"run_id", cfg.RunID.String(),
		"input_records", len(records),
		"valid_records", len(result.Valid),
		"quarantined_records", len(result.Quarantined),
	)

	if len(records) == 0 {
		return result, nil
	}

	ratio := float64(len(result.Quarantined)) / float64(len(records))
	if ratio > cfg.QuarantineThreshold {
		fault := ledger.SchemaValidationFault{
			Total:       len(records),
			Quarantined: len(result.Quarantined),
			Ratio:       ratio,
			Threshold:   cfg.QuarantineThreshold,
			SampleIDs:   sampleOffenders(result.Quarantined),
		}
		v.logger.Error("Quarantine ratio exceeds threshold",
			"run_id", cfg.RunID.String(),
			"ratio", ratio,
			"threshold", cfg.QuarantineThreshold,
		)
		return result, fault
	}

	return result, nil
}

// parseRecord converts a raw record and collects every reason it cannot be used
func parseRecord(record ledger.RawRecord) (ledger.Transaction, []shared.ReasonCode) {
	var reasons []shared.ReasonCode
	tx := ledger.Transaction{
		TransactionID: strings.TrimSpace(record.TransactionID),
		CustomerID:    strings.TrimSpace(record.CustomerID),
	}

	if tx.CustomerID == "" || tx.TransactionID == "" {
		reasons = appendReason(reasons, shared.ReasonMissingField)
	}

	typeOK := false
	if raw := strings.TrimSpace(record.Type); raw == "" {
		reasons = appendReason(reasons, shared.ReasonMissingField)
	} else if tx.Type, typeOK = shared.ParseTransactionType(raw); !typeOK {
		reasons = appendReason(reasons, shared.ReasonBadType)
	}

	amountOK := false
	if raw := strings.TrimSpace(record.Amount); raw == "" {
		reasons = appendReason(reasons, shared.ReasonMissingField)
	} else if amount, err := decimal.NewFromString(raw); err != nil {
		reasons = appendReason(reasons, shared.ReasonBadType)
	} else {
		tx.Amount = amount
		amountOK = true
	}

	if raw := strings.TrimSpace(record.CreatedAt); raw == "" {
		reasons = appendReason(reasons, shared.ReasonMissingField)
	} else if createdAt, ok := parseTimestamp(raw); !ok {
		reasons = appendReason(reasons, shared.ReasonBadType)
	} else {
		tx.CreatedAt = createdAt
	}

	if typeOK && amountOK && !signMatchesType(tx.Type, tx.Amount) {
		reasons = appendReason(reasons, shared.ReasonSignViolation)
	}

	return tx, reasons
}

// signMatchesType enforces Earned >= 0 and Spent/Expired <= 0
func signMatchesType(t shared.TransactionType, amount decimal.Decimal) bool {
	if t.IsConsumption() {
		return !amount.IsPositive()
	}
	return !amount.IsNegative()
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func appendReason(reasons []shared.ReasonCode, code shared.ReasonCode) []shared.ReasonCode {
	for _, r := range reasons {
		if r == code {
			return reasons
		}
	}
	return append(reasons, code)
}

func sampleOffenders(quarantined []ledger.QuarantinedRecord) []string {
	samples := make([]string, 0, maxFaultSamples)
	for _, q := range quarantined {
		if len(samples) == maxFaultSamples {
			break
		}
		if id := strings.TrimSpace(q.Record.TransactionID); id != "" {
			samples = append(samples, id)
			continue
		}
		samples = append(samples, fmt.Sprintf("row %d", q.Record.RowNumber))
	}
	return samples
}
