package tenant

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrInvalidName    = errors.New("tenant: name is required")
)

// MaxNameLength bounds organization names.
const MaxNameLength = 200

// Tenant is an organization: the unit of isolation and billing.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	Active    bool      `json:"active"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Settings are the workspace preferences an admin can change.
type Settings struct {
	AutoGenerateSummaries bool `json:"autoGenerateSummaries"`
	EmailNotifications    bool `json:"emailNotifications"`
	RequireApproval       bool `json:"requireApproval"`
	TwoFactorAuth         bool `json:"twoFactorAuth"`
	DocumentRetentionDays int  `json:"documentRetentionDays"`
	AllowDataExport       bool `json:"allowDataExport"`
}

// DefaultSettings returns the settings a new workspace starts with.
func DefaultSettings() Settings {
	return Settings{
		AutoGenerateSummaries: true,
		DocumentRetentionDays: 90,
		AllowDataExport:       true,
	}
}

// ProfileUpdate changes the descriptive fields of a tenant. It has no
// entitlement fields: plan, limits and usage change only through the ledger.
type ProfileUpdate struct {
	Name     *string   `json:"name,omitempty"`
	Domain   *string   `json:"domain,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

// Apply writes the update onto t and returns the names of the fields that
// actually changed, settings keys qualified as "settings.<key>".
func (u ProfileUpdate) Apply(t *Tenant) ([]string, error) {
	var changed []string
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" || len(name) > MaxNameLength {
			return nil, ErrInvalidName
		}
		if name != t.Name {
			t.Name = name
			changed = append(changed, "name")
		}
	}
	if u.Domain != nil {
		domain := strings.ToLower(strings.TrimSpace(*u.Domain))
		if domain != t.Domain {
			t.Domain = domain
			changed = append(changed, "domain")
		}
	}
	if u.Settings != nil {
		changed = append(changed, settingsDiff(t.Settings, *u.Settings)...)
		t.Settings = *u.Settings
	}
	return changed, nil
}

func settingsDiff(old, next Settings) []string {
	var out []string
	if old.AutoGenerateSummaries != next.AutoGenerateSummaries {
		out = append(out, "settings.autoGenerateSummaries")
	}
	if old.EmailNotifications != next.EmailNotifications {
		out = append(out, "settings.emailNotifications")
	}
	if old.RequireApproval != next.RequireApproval {
		out = append(out, "settings.requireApproval")
	}
	if old.TwoFactorAuth != next.TwoFactorAuth {
		out = append(out, "settings.twoFactorAuth")
	}
	if old.DocumentRetentionDays != next.DocumentRetentionDays {
		out = append(out, "settings.documentRetentionDays")
	}
	if old.AllowDataExport != next.AllowDataExport {
		out = append(out, "settings.allowDataExport")
	}
	return out
}

// Store persists tenants. Reads and writes go through the scope, so a
// caller can only ever see its own tenant.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, scope Scope) (*Tenant, error)
	UpdateProfile(ctx context.Context, scope Scope, u ProfileUpdate) (*Tenant, []string, error)
	Delete(ctx context.Context, scope Scope) error
}
