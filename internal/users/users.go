// Package users manages the people inside a tenant: signup, password and
// external login, invitations, role changes and removal.
//
// A user belongs to exactly one tenant for its whole life. An active user
// always has a way to authenticate (a password hash or an external identity
// binding); a pending user has only an invitation token hash until it is
// accepted.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

var (
	ErrUserNotFound           = errors.New("users: user not found")
	ErrInvalidEmail           = errors.New("users: invalid email address")
	ErrEmailTaken             = errors.New("users: email already registered")
	ErrPendingInvitation      = errors.New("users: invitation pending")
	ErrInvalidCredentials     = errors.New("users: incorrect email or password")
	ErrNoPassword             = errors.New("users: account has no password")
	ErrInvalidInvitation      = errors.New("users: invalid invitation token")
	ErrInvitationAccepted     = errors.New("users: invitation already accepted")
	ErrForbidden              = errors.New("users: admin role required")
	ErrCannotRemoveSelf       = errors.New("users: cannot remove yourself")
	ErrCannotDemoteSelf       = errors.New("users: cannot change your own role")
	ErrInvalidRole            = errors.New("users: invalid role")
	ErrWeakPassword           = errors.New("users: password too short")
	ErrIncompleteIdentity     = errors.New("users: external identity requires provider, subject and email")
	ErrIdentityBoundElsewhere = errors.New("users: email is bound to a different external identity")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Status is a user's account state.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending_invitation"
)

// User is a member of one tenant.
type User struct {
	ID                  string      `json:"id"`
	TenantID            string      `json:"tenantId"`
	Email               string      `json:"email"`
	Name                string      `json:"name"`
	Role                tenant.Role `json:"role"`
	Status              Status      `json:"status"`
	PasswordHash        string      `json:"-"`
	ExternalProvider    string      `json:"externalProvider,omitempty"`
	ExternalSubject     string      `json:"-"`
	InvitationTokenHash string      `json:"-"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// CanAuthenticate reports whether the user is active and has a credential.
func (u *User) CanAuthenticate() bool {
	return u.Status == StatusActive && (u.PasswordHash != "" || u.ExternalSubject != "")
}

// Principal returns the auth-layer view of the user.
func (u *User) Principal() tenant.Principal {
	return tenant.Principal{ID: u.ID, TenantID: u.TenantID, Role: u.Role}
}

// Store persists users.
//
// Lookups by email, external binding and invitation hash run before any
// tenant is known (login, invitation acceptance) and are therefore global;
// everything else is tenant-scoped.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*User, error)
	List(ctx context.Context, scope tenant.Scope) ([]*User, error)
	Update(ctx context.Context, scope tenant.Scope, u *User) error
	Delete(ctx context.Context, scope tenant.Scope, id string) error

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByExternal(ctx context.Context, provider, subject string) (*User, error)
	GetByInvitation(ctx context.Context, tokenHash string) (*User, error)
}
