// Package activity is the append-only audit trail of tenant-scoped actions.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

var (
	ErrNoActor       = errors.New("activity: record requires an acting user")
	ErrInvalidAction = errors.New("activity: unknown action")
)

// Action is the kind of mutation being recorded.
type Action string

const (
	ActionUpload          Action = "upload"
	ActionDelete          Action = "delete"
	ActionInvite          Action = "invite"
	ActionRoleChange      Action = "role_change"
	ActionSettingsUpdate  Action = "settings_update"
	ActionWorkspaceCreate Action = "workspace_create"
	ActionSummaryCreate   Action = "summary_create"
)

func validAction(a Action) bool {
	switch a {
	case ActionUpload, ActionDelete, ActionInvite, ActionRoleChange,
		ActionSettingsUpdate, ActionWorkspaceCreate, ActionSummaryCreate:
		return true
	}
	return false
}

// Record is one audit entry.
type Record struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	ActorID   string         `json:"actorId"`
	Action    Action         `json:"action"`
	Target    string         `json:"target"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Store persists records. There is no update or delete; rows leave only
// when their tenant is deleted.
type Store interface {
	Append(ctx context.Context, scope tenant.Scope, r *Record) error
	// List returns up to limit records newest first, strictly after cursor.
	List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Record, error)
}

// Publisher receives each record after it is stored. The live feed
// implements it.
type Publisher interface {
	Publish(tenantID, eventType string, data any)
}

// Recorder appends records on behalf of the scope's principal.
type Recorder struct {
	store     Store
	publisher Publisher
}

// NewRecorder creates a recorder. publisher may be nil.
func NewRecorder(store Store, publisher Publisher) *Recorder {
	return &Recorder{store: store, publisher: publisher}
}

// Record appends an entry attributed to the scope's tenant and user.
func (r *Recorder) Record(ctx context.Context, scope tenant.Scope, action Action, target string, details map[string]any) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if scope.IsSystem() {
		return ErrNoActor
	}
	if !validAction(action) {
		return ErrInvalidAction
	}

	rec := &Record{
		ID:        idgen.New(),
		TenantID:  scope.TenantID(),
		ActorID:   scope.PrincipalID(),
		Action:    action,
		Target:    target,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Append(ctx, scope, rec); err != nil {
		return err
	}
	if r.publisher != nil {
		r.publisher.Publish(rec.TenantID, "activity", rec)
	}
	return nil
}

// RecordQuietly records and logs a failure instead of returning it. Used
// after the audited mutation has already committed, where failing the
// request would misreport what happened.
func (r *Recorder) RecordQuietly(ctx context.Context, scope tenant.Scope, action Action, target string, details map[string]any) {
	if err := r.Record(ctx, scope, action, target, details); err != nil {
		logging.L(ctx).Error("failed to record activity", "action", action, "target", target, "error", err)
	}
}

// List returns a page of the scope's records, newest first.
func (r *Recorder) List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Record, string, bool, error) {
	if err := scope.Validate(); err != nil {
		return nil, "", false, err
	}
	recs, err := r.store.List(ctx, scope, limit+1, cursor)
	if err != nil {
		return nil, "", false, err
	}
	page, next, more := pagination.ComputePage(recs, limit, func(rec *Record) (time.Time, string) {
		return rec.CreatedAt, rec.ID
	})
	return page, next, more, nil
}
