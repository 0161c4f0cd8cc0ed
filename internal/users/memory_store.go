package users

import (
	"context"
	"sort"
	"sync"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// MemoryStore is an in-memory user store.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User // by id
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
		if u.ExternalSubject != "" && existing.ExternalProvider == u.ExternalProvider &&
			existing.ExternalSubject == u.ExternalSubject {
			return ErrEmailTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, scope tenant.Scope, id string) (*User, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok || !scope.Owns(u.TenantID) {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, scope tenant.Scope) ([]*User, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*User
	for _, u := range m.users {
		if scope.Owns(u.TenantID) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, scope tenant.Scope, u *User) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok || !scope.Owns(existing.TenantID) {
		return ErrUserNotFound
	}
	cp := *u
	cp.TenantID = existing.TenantID // tenant is immutable
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope tenant.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !scope.Owns(u.TenantID) {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	return m.find(func(u *User) bool { return u.Email == email })
}

func (m *MemoryStore) GetByExternal(_ context.Context, provider, subject string) (*User, error) {
	return m.find(func(u *User) bool {
		return u.ExternalSubject != "" && u.ExternalProvider == provider && u.ExternalSubject == subject
	})
}

func (m *MemoryStore) GetByInvitation(_ context.Context, tokenHash string) (*User, error) {
	return m.find(func(u *User) bool {
		return u.InvitationTokenHash != "" && u.InvitationTokenHash == tokenHash
	})
}

func (m *MemoryStore) find(match func(*User) bool) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// PurgeTenant drops a deleted tenant's users.
func (m *MemoryStore) PurgeTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.TenantID == tenantID {
			delete(m.users, id)
		}
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
