package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/activity"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/organization"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/validation"
)

const invitationPrefix = "inv_"

// Session is what a successful signup or login returns. Token is shown once.
type Session struct {
	Token string `json:"accessToken"`
	User  *User  `json:"user"`
}

// SignupRequest creates a workspace and its first admin.
type SignupRequest struct {
	OrganizationName string `json:"organizationName" binding:"required"`
	Name             string `json:"fullName" binding:"required"`
	Email            string `json:"email" binding:"required"`
	Password         string `json:"password" binding:"required"`
}

// ExternalIdentity is an identity asserted by the trusted identity broker
// after it completed a provider login.
type ExternalIdentity struct {
	Provider string `json:"provider" binding:"required"`
	Subject  string `json:"subject" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
}

// Invitation is returned to the inviting admin. The raw token is delivered
// to the invitee out of band.
type Invitation struct {
	User  *User  `json:"user"`
	Token string `json:"invitationToken"`
}

// Service manages users.
type Service struct {
	store      Store
	orgs       *organization.Service
	ledger     *entitlement.Ledger
	tokens     *auth.Manager
	recorder   *activity.Recorder
	bcryptCost int
}

// NewService creates a new user service.
func NewService(store Store, orgs *organization.Service, ledger *entitlement.Ledger, tokens *auth.Manager, recorder *activity.Recorder) *Service {
	return &Service{
		store:      store,
		orgs:       orgs,
		ledger:     ledger,
		tokens:     tokens,
		recorder:   recorder,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

// Signup creates a tenant on the trial plan, its admin user, and a session.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	email := validation.NormalizeEmail(req.Email)
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.createWorkspace(ctx, req.OrganizationName, &User{
		Email:        email,
		Name:         validation.SanitizeString(req.Name, 200),
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	return s.session(ctx, u)
}

// Login authenticates with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Status == StatusPending {
		return nil, ErrPendingInvitation
	}
	if u.PasswordHash == "" {
		return nil, ErrNoPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(ctx, u)
}

// LoginExternal resolves an identity from the broker. A known binding logs
// in; a known email is bound to the identity (completing a pending
// invitation if needed); otherwise a new workspace is created with the user
// as its admin.
func (s *Service) LoginExternal(ctx context.Context, id ExternalIdentity) (*Session, error) {
	id.Provider = strings.ToLower(strings.TrimSpace(id.Provider))
	id.Subject = strings.TrimSpace(id.Subject)
	email := validation.NormalizeEmail(id.Email)
	if id.Provider == "" || id.Subject == "" || email == "" {
		return nil, ErrIncompleteIdentity
	}

	u, err := s.store.GetByExternal(ctx, id.Provider, id.Subject)
	if err == nil {
		return s.session(ctx, u)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u, err = s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.ExternalSubject != "" {
			return nil, ErrIdentityBoundElsewhere
		}
		u.ExternalProvider = id.Provider
		u.ExternalSubject = id.Subject
		u.Status = StatusActive
		u.InvitationTokenHash = ""
		if err := s.store.Update(ctx, tenant.SystemScope(u.TenantID), u); err != nil {
			return nil, err
		}
		return s.session(ctx, u)
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	u, err = s.createWorkspace(ctx, name+"'s Organization", &User{
		Email:            email,
		Name:             validation.SanitizeString(name, 200),
		ExternalProvider: id.Provider,
		ExternalSubject:  id.Subject,
	})
	if err != nil {
		return nil, err
	}
	return s.session(ctx, u)
}

// Invite creates a pending member of the scope's tenant.
func (s *Service) Invite(ctx context.Context, scope tenant.Scope, email, name string, role tenant.Role) (*Invitation, error) {
	if !scope.IsAdmin() {
		return nil, ErrForbidden
	}
	if role == "" {
		role = tenant.RoleMember
	}
	if !tenant.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	email = validation.NormalizeEmail(email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	raw := idgen.Token(invitationPrefix)
	now := time.Now().UTC()
	u := &User{
		ID:                  idgen.New(),
		TenantID:            scope.TenantID(),
		Email:               email,
		Name:                validation.SanitizeString(name, 200),
		Role:                role,
		Status:              StatusPending,
		InvitationTokenHash: auth.HashToken(raw),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.recorder.RecordQuietly(ctx, scope, activity.ActionInvite, u.ID,
		map[string]any{"email": email, "role": string(role)})
	return &Invitation{User: u, Token: raw}, nil
}

// AcceptInvitation sets the invitee's password and activates the account.
func (s *Service) AcceptInvitation(ctx context.Context, token, password string) (*Session, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, invitationPrefix) {
		return nil, ErrInvalidInvitation
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	u, err := s.store.GetByInvitation(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidInvitation
		}
		return nil, err
	}
	if u.Status != StatusPending {
		return nil, ErrInvitationAccepted
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Status = StatusActive
	u.InvitationTokenHash = ""
	if err := s.store.Update(ctx, tenant.SystemScope(u.TenantID), u); err != nil {
		return nil, err
	}
	return s.session(ctx, u)
}

// HasPendingInvitation reports whether email belongs to an invitee who has
// not yet set a password. The invitation token itself is never revealed.
func (s *Service) HasPendingInvitation(ctx context.Context, email string) (bool, error) {
	u, err := s.store.GetByEmail(ctx, validation.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Status == StatusPending, nil
}

// Refresh rotates a live session token. Users who can no longer
// authenticate (removed, or reset to pending) are refused.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*Session, error) {
	tok, err := s.tokens.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Get(ctx, tenant.SystemScope(tok.TenantID), tok.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !u.CanAuthenticate() {
		return nil, ErrInvalidCredentials
	}
	fresh, _, err := s.tokens.Rotate(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	return &Session{Token: fresh, User: u}, nil
}

// Get returns a user of the scope's tenant.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*User, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns the scope's users, oldest first.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]*User, error) {
	return s.store.List(ctx, scope)
}

// ChangeRole sets another user's role.
func (s *Service) ChangeRole(ctx context.Context, scope tenant.Scope, userID string, role tenant.Role) (*User, error) {
	if !scope.IsAdmin() {
		return nil, ErrForbidden
	}
	if !tenant.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	if userID == scope.PrincipalID() {
		return nil, ErrCannotDemoteSelf
	}
	u, err := s.store.Get(ctx, scope, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	old := u.Role
	u.Role = role
	if err := s.store.Update(ctx, scope, u); err != nil {
		return nil, err
	}
	s.recorder.RecordQuietly(ctx, scope, activity.ActionRoleChange, u.ID,
		map[string]any{"from": string(old), "to": string(role)})
	return u, nil
}

// Remove deletes another user of the tenant and revokes their sessions.
func (s *Service) Remove(ctx context.Context, scope tenant.Scope, userID string) error {
	if !scope.IsAdmin() {
		return ErrForbidden
	}
	if userID == scope.PrincipalID() {
		return ErrCannotRemoveSelf
	}
	u, err := s.store.Get(ctx, scope, userID)
	if err != nil {
		return err
	}
	if err := s.tokens.RevokeUser(ctx, scope.TenantID(), u.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.store.Delete(ctx, scope, u.ID); err != nil {
		return err
	}
	s.recorder.RecordQuietly(ctx, scope, activity.ActionDelete, u.ID,
		map[string]any{"email": u.Email, "resource": "user"})
	return nil
}

// LoadPrincipal implements auth.PrincipalLoader.
func (s *Service) LoadPrincipal(ctx context.Context, tenantID, userID string) (tenant.Principal, error) {
	u, err := s.store.Get(ctx, tenant.SystemScope(tenantID), userID)
	if err != nil {
		return tenant.Principal{}, err
	}
	if !u.CanAuthenticate() {
		return tenant.Principal{}, ErrInvalidCredentials
	}
	return u.Principal(), nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	if !validation.IsValidEmail(email) {
		return ErrInvalidEmail
	}
	existing, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Status == StatusPending:
		return ErrPendingInvitation
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return err
	}
}

// createWorkspace creates the tenant, opens its ledger and stores u as its
// admin. A failure after the tenant exists deletes it again.
func (s *Service) createWorkspace(ctx context.Context, orgName string, u *User) (*User, error) {
	org, err := s.orgs.Create(ctx, orgName, "")
	if err != nil {
		return nil, err
	}
	rollback := func(cause error) error {
		if err := s.orgs.Delete(ctx, tenant.SystemScope(org.ID)); err != nil {
			logging.L(ctx).Error("failed to roll back workspace", "tenant_id", org.ID, "error", err)
		}
		return cause
	}
	if _, err := s.ledger.Open(ctx, org.ID); err != nil {
		return nil, rollback(fmt.Errorf("open ledger: %w", err))
	}

	now := time.Now().UTC()
	u.ID = idgen.New()
	u.TenantID = org.ID
	u.Role = tenant.RoleAdmin
	u.Status = StatusActive
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := s.store.Create(ctx, u); err != nil {
		return nil, rollback(err)
	}

	scope := tenant.NewScope(u.Principal())
	s.recorder.RecordQuietly(ctx, scope, activity.ActionWorkspaceCreate, org.ID,
		map[string]any{"name": org.Name})
	logging.L(ctx).Info("workspace created", "tenant_id", org.ID, "user_id", u.ID)
	return u, nil
}

func (s *Service) session(ctx context.Context, u *User) (*Session, error) {
	if !u.CanAuthenticate() {
		return nil, ErrInvalidCredentials
	}
	tok, err := s.tokens.Issue(ctx, u.TenantID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: tok, User: u}, nil
}
