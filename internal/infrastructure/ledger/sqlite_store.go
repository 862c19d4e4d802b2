package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/db"
	"github.com/doeshing/opsguard/internal/ports"
)

// SQLiteStore persists operation records in a SQLite database. Appends are
// serialized by mu; reads go straight to the WAL-mode database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	ids *idGenerator
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string, now func() time.Time) (*SQLiteStore, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteStore(database, now)
	if err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(database *sql.DB, now func() time.Time) (*SQLiteStore, error) {
	store := &SQLiteStore{db: database, ids: newIDGenerator(now)}
	var last sql.NullString
	if err := database.QueryRow(`SELECT MAX(operation_id) FROM operations`).Scan(&last); err != nil {
		return nil, fmt.Errorf("seed operation ids: %w", err)
	}
	if last.Valid {
		store.ids.observe(last.String)
	}
	return store, nil
}

const recordColumns = `operation_id, timestamp, user_input, risk_level, tool_calls, success,
	execution_time, rollback_commands, rolled_back, rolled_back_at`

// Append implements ports.AuditLedger.
func (s *SQLiteStore) Append(ctx context.Context, record domain.OperationRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, at := s.ids.next()
	rec := stamp(record, id, at)

	calls, err := json.Marshal(nonNilCalls(rec.ToolCalls))
	if err != nil {
		return "", fmt.Errorf("encode tool calls: %w", err)
	}
	rollback, err := json.Marshal(nonNilStrings(rec.RollbackCommands))
	if err != nil {
		return "", fmt.Errorf("encode rollback commands: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO operations (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		rec.OperationID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.UserInput,
		string(rec.RiskLevel),
		string(calls),
		boolToInt(rec.Success),
		rec.ExecutionTime.Seconds(),
		string(rollback),
	)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", id, err)
	}
	return id, nil
}

// Get implements ports.AuditLedger.
func (s *SQLiteStore) Get(ctx context.Context, operationID string) (domain.OperationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM operations WHERE operation_id = ?`, operationID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OperationRecord{}, fmt.Errorf("operation %s: %w", operationID, domain.ErrNotFound)
	}
	return rec, err
}

// ListRecent implements ports.AuditLedger.
func (s *SQLiteStore) ListRecent(ctx context.Context, n int) ([]domain.OperationRecord, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM operations ORDER BY operation_id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// MarkRolledBack implements ports.AuditLedger.
func (s *SQLiteStore) MarkRolledBack(ctx context.Context, operationID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE operations SET rolled_back = 1, rolled_back_at = ? WHERE operation_id = ?`,
		at.UTC().Format(time.RFC3339Nano), operationID)
	if err != nil {
		return fmt.Errorf("mark %s rolled back: %w", operationID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("operation %s: %w", operationID, domain.ErrNotFound)
	}
	return nil
}

// Export implements ports.AuditLedger, oldest record first.
func (s *SQLiteStore) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM operations ORDER BY operation_id ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()
	enc := json.NewEncoder(w)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n)
	return n, err
}

// Close implements ports.AuditLedger.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.OperationRecord, error) {
	var (
		rec                 domain.OperationRecord
		ts, risk            string
		calls, rollback     string
		success, rolledBack int
		seconds             float64
		rolledBackAt        sql.NullString
	)
	if err := row.Scan(&rec.OperationID, &ts, &rec.UserInput, &risk, &calls, &success,
		&seconds, &rollback, &rolledBack, &rolledBackAt); err != nil {
		return domain.OperationRecord{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.OperationRecord{}, fmt.Errorf("operation %s timestamp: %w", rec.OperationID, err)
	}
	rec.Timestamp = t
	rec.RiskLevel = domain.RiskLevel(risk)
	rec.Success = success == 1
	rec.ExecutionTime = time.Duration(seconds * float64(time.Second))
	if err := json.Unmarshal([]byte(calls), &rec.ToolCalls); err != nil {
		return domain.OperationRecord{}, fmt.Errorf("operation %s tool calls: %w", rec.OperationID, err)
	}
	if err := json.Unmarshal([]byte(rollback), &rec.RollbackCommands); err != nil {
		return domain.OperationRecord{}, fmt.Errorf("operation %s rollback commands: %w", rec.OperationID, err)
	}
	rec.RolledBack = rolledBack == 1
	if rolledBackAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, rolledBackAt.String)
		if err == nil {
			rec.RolledBackAt = &at
		}
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]domain.OperationRecord, error) {
	records := []domain.OperationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nonNilCalls(calls []domain.ToolCall) []domain.ToolCall {
	if calls == nil {
		return []domain.ToolCall{}
	}
	return calls
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ ports.AuditLedger = (*SQLiteStore)(nil)
