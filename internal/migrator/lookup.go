package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/postgres"
)

// ErrRecordNotFound is returned by LookupPID for unknown legacy ids.
var ErrRecordNotFound = errors.New("legacy record not found")

// RecordStore remembers which PID every migrated legacy record received.
type RecordStore interface {
	PIDLookup
	Save(ctx context.Context, rectype, legacyID, pid, provider string) error
}

const migratedRecordsSchema = `CREATE TABLE IF NOT EXISTS migrated_records (
	rectype     TEXT NOT NULL,
	legacy_id   TEXT NOT NULL,
	pid         TEXT NOT NULL,
	provider    TEXT NOT NULL DEFAULT '',
	migrated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (rectype, legacy_id)
)`

// RecordLookup is the PostgreSQL RecordStore.
type RecordLookup struct {
	client *postgres.Client
}

// NewRecordLookup creates a RecordLookup on client.
func NewRecordLookup(client *postgres.Client) *RecordLookup {
	return &RecordLookup{client: client}
}

func (l *RecordLookup) EnsureSchema(ctx context.Context) error {
	return l.client.Exec(ctx, migratedRecordsSchema)
}

func (l *RecordLookup) LookupPID(ctx context.Context, rectype, legacyID string) (string, error) {
	var pid string
	err := l.client.DB.QueryRowContext(ctx,
		`SELECT pid FROM migrated_records WHERE rectype = $1 AND legacy_id = $2`,
		rectype, legacyID,
	).Scan(&pid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", rectype, legacyID, ErrRecordNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("looking up %s %s: %w", rectype, legacyID, err)
	}
	return pid, nil
}

func (l *RecordLookup) Save(ctx context.Context, rectype, legacyID, pid, provider string) error {
	_, err := l.client.DB.ExecContext(ctx,
		`INSERT INTO migrated_records (rectype, legacy_id, pid, provider)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (rectype, legacy_id) DO UPDATE
		 SET pid = EXCLUDED.pid, provider = EXCLUDED.provider, migrated_at = NOW()`,
		rectype, legacyID, pid, provider,
	)
	if err != nil {
		return fmt.Errorf("saving %s %s: %w", rectype, legacyID, err)
	}
	return nil
}

// DeleteRecordType forgets every migrated record of rectype.
func (l *RecordLookup) DeleteRecordType(ctx context.Context, rectype string) error {
	_, err := l.client.DB.ExecContext(ctx, `DELETE FROM migrated_records WHERE rectype = $1`, rectype)
	return err
}

// MemoryRecords is a process-local RecordStore.
type MemoryRecords struct {
	mu   sync.RWMutex
	pids map[string]string
}

// NewMemoryRecords creates an empty MemoryRecords.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{pids: make(map[string]string)}
}

func (m *MemoryRecords) LookupPID(_ context.Context, rectype, legacyID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.pids[rectype+"/"+legacyID]
	if !ok {
		return "", fmt.Errorf("%s %s: %w", rectype, legacyID, ErrRecordNotFound)
	}
	return pid, nil
}

func (m *MemoryRecords) Save(_ context.Context, rectype, legacyID, pid, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pids[rectype+"/"+legacyID] = pid
	return nil
}
