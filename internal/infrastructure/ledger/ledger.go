// Package ledger implements the append-only audit ledger. Operation ids are
// "op_" followed by a UTC timestamp with nanosecond precision; they sort
// lexically in append order on every backend.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// Counter is implemented by ledgers that can report their size cheaply.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Open builds the ledger selected by the configuration.
func Open(settings domain.LedgerSettings, now func() time.Time) (ports.AuditLedger, error) {
	switch settings.Backend {
	case domain.LedgerBackendMemory:
		return NewMemoryLedger(now), nil
	case domain.LedgerBackendJSONL:
		return OpenFileStore(settings.Path, now)
	case domain.LedgerBackendSQLite, "":
		return OpenSQLiteStore(settings.Path, now)
	default:
		return nil, fmt.Errorf("ledger backend %q: %w", settings.Backend, domain.ErrValidation)
	}
}
