// Package organization owns the tenant lifecycle: creating a workspace,
// updating its profile and deleting it along with everything it owns.
package organization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/activity"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// Purger removes one tenant's rows from a store. In-memory stores register
// one each so deleting a tenant cascades the way ON DELETE CASCADE does in
// Postgres.
type Purger interface {
	PurgeTenant(ctx context.Context, tenantID string) error
}

// Service manages tenants.
type Service struct {
	store    tenant.Store
	recorder *activity.Recorder
	purgers  []Purger
}

// NewService creates a new organization service.
func NewService(store tenant.Store, recorder *activity.Recorder, purgers ...Purger) *Service {
	return &Service{store: store, recorder: recorder, purgers: purgers}
}

// Create registers a new active tenant with default settings.
func (s *Service) Create(ctx context.Context, name, domain string) (*tenant.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > tenant.MaxNameLength {
		return nil, tenant.ErrInvalidName
	}
	now := time.Now().UTC()
	t := &tenant.Tenant{
		ID:        idgen.New(),
		Name:      name,
		Domain:    strings.ToLower(strings.TrimSpace(domain)),
		Active:    true,
		Settings:  tenant.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the scope's tenant.
func (s *Service) Get(ctx context.Context, scope tenant.Scope) (*tenant.Tenant, error) {
	return s.store.Get(ctx, scope)
}

// UpdateProfile applies an admin's profile change and records which fields
// changed. A no-op update records nothing.
func (s *Service) UpdateProfile(ctx context.Context, scope tenant.Scope, u tenant.ProfileUpdate) (*tenant.Tenant, []string, error) {
	t, changed, err := s.store.UpdateProfile(ctx, scope, u)
	if err != nil {
		return nil, nil, err
	}
	if len(changed) > 0 {
		s.recorder.RecordQuietly(ctx, scope, activity.ActionSettingsUpdate, t.ID,
			map[string]any{"changed": changed})
	}
	return t, changed, nil
}

// Delete removes the scope's tenant and everything it owns.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope) error {
	if err := s.store.Delete(ctx, scope); err != nil {
		return err
	}
	for _, p := range s.purgers {
		if err := p.PurgeTenant(ctx, scope.TenantID()); err != nil {
			return fmt.Errorf("purge tenant data: %w", err)
		}
	}
	logging.L(ctx).Info("tenant deleted", "tenant_id", scope.TenantID())
	return nil
}
