package billing

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// EventLog remembers which provider events were already applied so a
// redelivery short-circuits.
type EventLog interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID, eventType string) error
}

// MemoryEventLog is an in-memory EventLog.
type MemoryEventLog struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

// NewMemoryEventLog creates an empty in-memory event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{seen: make(map[string]time.Time)}
}

func (m *MemoryEventLog) Seen(_ context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[eventID]
	return ok, nil
}

func (m *MemoryEventLog) Mark(_ context.Context, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; !ok {
		m.seen[eventID] = time.Now().UTC()
	}
	return nil
}

// PostgresEventLog stores processed events in billing_events.
type PostgresEventLog struct {
	db *sql.DB
}

// NewPostgresEventLog creates a PostgreSQL-backed event log.
func NewPostgresEventLog(db *sql.DB) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

func (p *PostgresEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE event_id = $1)`, eventID).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check billing event: %w", err)
	}
	return seen, nil
}

func (p *PostgresEventLog) Mark(ctx context.Context, eventID, eventType string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO billing_events (event_id, event_type) VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return fmt.Errorf("mark billing event: %w", err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ EventLog = (*MemoryEventLog)(nil)
	_ EventLog = (*PostgresEventLog)(nil)
)
