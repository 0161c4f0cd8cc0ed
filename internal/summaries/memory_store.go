package summaries

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// MemoryStore is an in-memory summary store for demo/development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]*Summary
}

// NewMemoryStore creates a new in-memory summary store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{summaries: make(map[string]*Summary)}
}

func (m *MemoryStore) Create(_ context.Context, scope tenant.Scope, s *Summary) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Owns(s.TenantID) {
		return tenant.ErrIsolationViolation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.summaries[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Scope, id string) (*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[id]
	if !ok || !scope.Owns(s.TenantID) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	out := m.filter(func(s *Summary) bool {
		return scope.Owns(s.TenantID) && cursor.After(s.CreatedAt, s.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListByDocument(_ context.Context, scope tenant.Scope, documentID string) ([]*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return m.filter(func(s *Summary) bool {
		return scope.Owns(s.TenantID) && s.DocumentID == documentID
	}), nil
}

func (m *MemoryStore) Delete(_ context.Context, scope tenant.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[id]
	if !ok || !scope.Owns(s.TenantID) {
		return ErrNotFound
	}
	delete(m.summaries, id)
	return nil
}

func (m *MemoryStore) DeleteForDocument(_ context.Context, scope tenant.Scope, documentID string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.summaries {
		if scope.Owns(s.TenantID) && s.DocumentID == documentID {
			delete(m.summaries, id)
		}
	}
	return nil
}

func (m *MemoryStore) CountByDay(_ context.Context, scope tenant.Scope, since time.Time) ([]DayCount, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	counts := make(map[time.Time]int64)
	for _, s := range m.filter(func(s *Summary) bool {
		return scope.Owns(s.TenantID) && !s.CreatedAt.Before(since)
	}) {
		counts[s.CreatedAt.UTC().Truncate(24*time.Hour)]++
	}
	out := make([]DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, DayCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// PurgeTenant drops a deleted tenant's summaries.
func (m *MemoryStore) PurgeTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.summaries {
		if s.TenantID == tenantID {
			delete(m.summaries, id)
		}
	}
	return nil
}

// filter returns copies of matching summaries, newest first.
func (m *MemoryStore) filter(keep func(*Summary) bool) []*Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Summary
	for _, s := range m.summaries {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
