package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
)

// index is the in-process view shared by the memory and jsonl ledgers. It does
// no locking of its own.
type index struct {
	records []domain.OperationRecord
	byID    map[string]int
}

func newIndex() *index {
	return &index{byID: map[string]int{}}
}

func (x *index) add(rec domain.OperationRecord) {
	x.byID[rec.OperationID] = len(x.records)
	x.records = append(x.records, rec)
}

func (x *index) get(id string) (domain.OperationRecord, error) {
	i, ok := x.byID[id]
	if !ok {
		return domain.OperationRecord{}, fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	return cloneRecord(x.records[i]), nil
}

func (x *index) has(id string) bool {
	_, ok := x.byID[id]
	return ok
}

// recent returns up to n records, newest first. n <= 0 means all.
func (x *index) recent(n int) []domain.OperationRecord {
	if n <= 0 || n > len(x.records) {
		n = len(x.records)
	}
	out := make([]domain.OperationRecord, 0, n)
	for i := len(x.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneRecord(x.records[i]))
	}
	return out
}

func (x *index) markRolledBack(id string, at time.Time) error {
	i, ok := x.byID[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	at = at.UTC()
	x.records[i].RolledBack = true
	x.records[i].RolledBackAt = &at
	return nil
}

func (x *index) export(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, rec := range x.records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func (x *index) len() int {
	return len(x.records)
}

func cloneRecord(rec domain.OperationRecord) domain.OperationRecord {
	rec.ToolCalls = append([]domain.ToolCall(nil), rec.ToolCalls...)
	rec.RollbackCommands = append([]string(nil), rec.RollbackCommands...)
	if rec.RolledBackAt != nil {
		at := *rec.RolledBackAt
		rec.RolledBackAt = &at
	}
	return rec
}

// stamp assigns the id and fills defaults on an incoming record.
func stamp(rec domain.OperationRecord, id string, at time.Time) domain.OperationRecord {
	rec.OperationID = id
	if rec.Timestamp.IsZero() {
		rec.Timestamp = at
	}
	if rec.RiskLevel == "" {
		rec.RiskLevel = domain.RiskLow
	}
	rec.RolledBack = false
	rec.RolledBackAt = nil
	return cloneRecord(rec)
}
