package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// MemoryStore is an in-memory document store for demo/development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (m *MemoryStore) Create(_ context.Context, scope tenant.Scope, d *Document) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Owns(d.TenantID) {
		return tenant.ErrIsolationViolation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Scope, id string) (*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok || !scope.Owns(d.TenantID) {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Document
	for _, d := range m.docs {
		if scope.Owns(d.TenantID) && cursor.After(d.CreatedAt, d.ID) {
			cp := *d
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

func (m *MemoryStore) SetExtraction(_ context.Context, scope tenant.Scope, id string, status Status, text string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || !scope.Owns(d.TenantID) {
		return ErrNotFound
	}
	d.Status = status
	d.Text = text
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope tenant.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || !scope.Owns(d.TenantID) {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryStore) Usage(_ context.Context, scope tenant.Scope) (Usage, error) {
	if err := scope.Validate(); err != nil {
		return Usage{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var u Usage
	for _, d := range m.docs {
		if scope.Owns(d.TenantID) {
			u.Count++
			u.Bytes += d.SizeBytes
		}
	}
	return u, nil
}

// PurgeTenant drops a deleted tenant's documents.
func (m *MemoryStore) PurgeTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.docs {
		if d.TenantID == tenantID {
			delete(m.docs, id)
		}
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
