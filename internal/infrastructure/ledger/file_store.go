package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/pkg/filesystem"
	"github.com/doeshing/opsguard/internal/ports"
)

const annotationRollback = "rollback"

// annotation is an append-only amendment to an earlier record line.
type annotation struct {
	Type         string    `json:"type"`
	OperationID  string    `json:"operation_id"`
	RolledBackAt time.Time `json:"rolled_back_at"`
}

// FileStore appends operation records to a jsonl file. Rollback markers are
// written as annotation lines and folded back in when the file is replayed.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	file    *os.File
	idx     *index
	ids     *idGenerator
	skipped int
}

// OpenFileStore opens (or creates) the ledger at path and replays it.
func OpenFileStore(path string, now func() time.Time) (*FileStore, error) {
	if err := filesystem.EnsureParentDir(path, domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, domain.SecureFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	store := &FileStore{path: path, file: file, idx: newIndex(), ids: newIDGenerator(now)}
	if err := store.replay(); err != nil {
		file.Close()
		return nil, err
	}
	return store, nil
}

func (f *FileStore) replay() error {
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind ledger: %w", err)
	}
	scanner := bufio.NewScanner(f.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var marks []annotation
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			// A torn final line after a crash is tolerated.
			f.skipped++
			continue
		}
		if probe.Type == annotationRollback {
			var a annotation
			if err := json.Unmarshal(line, &a); err != nil {
				f.skipped++
				continue
			}
			marks = append(marks, a)
			continue
		}
		var rec domain.OperationRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.OperationID == "" || f.idx.has(rec.OperationID) {
			f.skipped++
			continue
		}
		f.idx.add(rec)
		f.ids.observe(rec.OperationID)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	for _, a := range marks {
		if err := f.idx.markRolledBack(a.OperationID, a.RolledBackAt); err != nil {
			f.skipped++
		}
	}
	return f.terminateTornLine()
}

// terminateTornLine ends a partial last line so the next append starts clean.
func (f *FileStore) terminateTornLine() error {
	info, err := f.file.Stat()
	if err != nil || info.Size() == 0 {
		return err
	}
	last := make([]byte, 1)
	if _, err := f.file.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read ledger tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.file.Write([]byte{'\n'})
	return err
}

// writeLine appends one JSON document and flushes it to stable storage.
func (f *FileStore) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := f.file.Write(data); err != nil {
		return err
	}
	return f.file.Sync()
}

// Append implements ports.AuditLedger.
func (f *FileStore) Append(_ context.Context, record domain.OperationRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return "", errors.New("ledger closed")
	}
	id, at := f.ids.next()
	rec := stamp(record, id, at)
	if err := f.writeLine(rec); err != nil {
		return "", fmt.Errorf("append %s: %w", id, err)
	}
	f.idx.add(rec)
	return id, nil
}

// Get implements ports.AuditLedger.
func (f *FileStore) Get(_ context.Context, operationID string) (domain.OperationRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.idx.get(operationID)
}

// ListRecent implements ports.AuditLedger.
func (f *FileStore) ListRecent(_ context.Context, n int) ([]domain.OperationRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.idx.recent(n), nil
}

// MarkRolledBack implements ports.AuditLedger.
func (f *FileStore) MarkRolledBack(_ context.Context, operationID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.idx.has(operationID) {
		return fmt.Errorf("operation %s: %w", operationID, domain.ErrNotFound)
	}
	if f.file == nil {
		return errors.New("ledger closed")
	}
	at = at.UTC()
	if err := f.writeLine(annotation{Type: annotationRollback, OperationID: operationID, RolledBackAt: at}); err != nil {
		return fmt.Errorf("mark %s rolled back: %w", operationID, err)
	}
	return f.idx.markRolledBack(operationID, at)
}

// Export implements ports.AuditLedger.
func (f *FileStore) Export(_ context.Context, w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.idx.export(w)
}

// Count returns the number of stored records.
func (f *FileStore) Count(context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.idx.len(), nil
}

// Skipped reports how many unreadable lines were ignored during replay.
func (f *FileStore) Skipped() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.skipped
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Close implements ports.AuditLedger.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

var _ ports.AuditLedger = (*FileStore)(nil)
