package tenant

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory tenant store.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// NewMemoryStore creates a new in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*Tenant)}
}

func (m *MemoryStore) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, scope Scope) (*Tenant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	t, ok := m.tenants[scope.TenantID()]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrTenantNotFound
	}
	if err := CheckOwned(ctx, scope, t.ID); err != nil {
		return nil, err
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, scope Scope, u ProfileUpdate) (*Tenant, []string, error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[scope.TenantID()]
	if !ok {
		return nil, nil, ErrTenantNotFound
	}
	next := *t
	changed, err := u.Apply(&next)
	if err != nil {
		return nil, nil, err
	}
	if len(changed) > 0 {
		next.UpdatedAt = time.Now().UTC()
		m.tenants[t.ID] = &next
	}
	cp := next
	return &cp, changed, nil
}

func (m *MemoryStore) Delete(_ context.Context, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[scope.TenantID()]; !ok {
		return ErrTenantNotFound
	}
	delete(m.tenants, scope.TenantID())
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
