package activity

import (
	"context"
	"sort"
	"sync"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// MemoryStore keeps one append-only slice per tenant.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*Record // tenant id → records, oldest first
}

// NewMemoryStore creates a new in-memory activity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]*Record)}
}

func (m *MemoryStore) Append(_ context.Context, scope tenant.Scope, r *Record) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Owns(r.TenantID) {
		return tenant.ErrIsolationViolation
	}
	cp := *r
	m.mu.Lock()
	m.records[r.TenantID] = append(m.records[r.TenantID], &cp)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, r := range m.records[scope.TenantID()] {
		if cursor.After(r.CreatedAt, r.ID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeTenant drops a deleted tenant's records.
func (m *MemoryStore) PurgeTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	delete(m.records, tenantID)
	m.mu.Unlock()
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
