package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/syncutil"
)

// MemoryStore is an in-memory ledger for demo/development and tests.
//
// mu only guards the maps themselves. Reads and writes of an account's
// fields happen under that tenant's row lock, so tenants never wait on each
// other's check-and-increment.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	subs     map[string]string // subscription ref → tenant id
	rows     *syncutil.KeyedMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		subs:     make(map[string]string),
		rows:     syncutil.NewKeyedMutex(),
	}
}

func (m *MemoryStore) Open(_ context.Context, a *Account) error {
	unlock := m.rows.Lock(a.TenantID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[a.TenantID]; exists {
		return ErrAccountExists
	}
	cp := *a
	m.accounts[a.TenantID] = &cp
	if cp.SubscriptionRef != "" {
		m.subs[cp.SubscriptionRef] = cp.TenantID
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, tenantID string) (*Account, error) {
	unlock := m.rows.Lock(tenantID)
	defer unlock()

	a, ok := m.lookup(tenantID)
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error) {
	m.mu.RLock()
	tenantID, ok := m.subs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return m.Get(ctx, tenantID)
}

func (m *MemoryStore) RecordUsage(_ context.Context, tenantID string) (*Account, error) {
	return m.mutate(tenantID, func(a *Account) error {
		if a.UsageCount >= a.UsageLimit {
			return ErrQuotaExceeded
		}
		a.UsageCount++
		return nil
	})
}

func (m *MemoryStore) ApplyPlanChange(_ context.Context, tenantID string, change PlanChange) (*Account, error) {
	return m.mutate(tenantID, func(a *Account) error {
		if change.SubscriptionRef != "" && change.SubscriptionRef != a.SubscriptionRef {
			m.mu.Lock()
			defer m.mu.Unlock()
			if owner, taken := m.subs[change.SubscriptionRef]; taken && owner != tenantID {
				return ErrSubscriptionRefTaken
			}
			if a.SubscriptionRef != "" {
				delete(m.subs, a.SubscriptionRef)
			}
			m.subs[change.SubscriptionRef] = tenantID
			a.SubscriptionRef = change.SubscriptionRef
		}
		a.Tier = change.Tier
		a.UsageLimit = change.Limit
		a.Status = StatusActive
		if a.BillingCustomerRef == "" {
			a.BillingCustomerRef = change.CustomerRef
		}
		return nil
	})
}

func (m *MemoryStore) ApplyStatus(_ context.Context, tenantID string, status Status) (*Account, error) {
	return m.mutate(tenantID, func(a *Account) error {
		a.Status = status
		return nil
	})
}

func (m *MemoryStore) ApplyStatusUnlessCanceled(_ context.Context, tenantID string, status Status) (*Account, error) {
	return m.mutate(tenantID, func(a *Account) error {
		if a.Status == StatusCanceled {
			return ErrAccountCanceled
		}
		a.Status = status
		return nil
	})
}

func (m *MemoryStore) SetBillingRef(_ context.Context, tenantID, customerRef string) (*Account, error) {
	return m.mutate(tenantID, func(a *Account) error {
		if a.BillingCustomerRef == "" {
			a.BillingCustomerRef = customerRef
		}
		return nil
	})
}

// PurgeTenant drops the tenant's row. Called on tenant deletion.
func (m *MemoryStore) PurgeTenant(_ context.Context, tenantID string) error {
	unlock := m.rows.Lock(tenantID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[tenantID]; ok && a.SubscriptionRef != "" {
		delete(m.subs, a.SubscriptionRef)
	}
	delete(m.accounts, tenantID)
	return nil
}

// mutate runs fn on the live row under the tenant's lock. fn's changes are
// kept only if it returns nil.
func (m *MemoryStore) mutate(tenantID string, fn func(*Account) error) (*Account, error) {
	unlock := m.rows.Lock(tenantID)
	defer unlock()

	a, ok := m.lookup(tenantID)
	if !ok {
		return nil, ErrAccountNotFound
	}
	draft := *a
	if err := fn(&draft); err != nil {
		return nil, err
	}
	draft.UpdatedAt = time.Now().UTC()
	*a = draft
	cp := draft
	return &cp, nil
}

func (m *MemoryStore) lookup(tenantID string) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[tenantID]
	return a, ok
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
