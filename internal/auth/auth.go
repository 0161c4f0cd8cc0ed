// Package auth issues and resolves bearer tokens and hands the resolved
// principal to the rest of the request.
//
// Authentication model:
//   - Tokens are "dsk_" + 64 hex chars, returned once at signup or login
//   - Only the sha256 hash of a token is stored
//   - Each token is bound to one user in one tenant; the user's current role
//     is reloaded on every request, so role changes apply immediately
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
)

// Errors
var (
	ErrNoToken       = errors.New("auth: token required")
	ErrInvalidToken  = errors.New("auth: invalid or expired token")
	ErrTokenNotFound = errors.New("auth: token not found")
)

const tokenPrefix = "dsk_"

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Token is a stored session token.
type Token struct {
	Hash      string    `json:"-"`
	UserID    string    `json:"userId"`
	TenantID  string    `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked"`
}

// Store persists tokens.
type Store interface {
	Create(ctx context.Context, t *Token) error
	GetByHash(ctx context.Context, hash string) (*Token, error)
	Revoke(ctx context.Context, hash string) error
	RevokeUser(ctx context.Context, tenantID, userID string) error
}

// Manager issues and validates tokens.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a new auth manager. ttl <= 0 uses DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Issue creates a token for the user. The raw token is returned once.
func (m *Manager) Issue(ctx context.Context, tenantID, userID string) (string, error) {
	raw := idgen.Token(tokenPrefix)
	now := m.now().UTC()
	t := &Token{
		Hash:      HashToken(raw),
		UserID:    userID,
		TenantID:  tenantID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

// Validate resolves a raw token (with or without the "Bearer " prefix).
func (m *Manager) Validate(ctx context.Context, raw string) (*Token, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, ErrNoToken
	}
	if !strings.HasPrefix(raw, tokenPrefix) {
		return nil, ErrInvalidToken
	}

	t, err := m.store.GetByHash(ctx, HashToken(raw))
	if err != nil {
		return nil, ErrInvalidToken
	}
	if t.Revoked || !m.now().Before(t.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	return t, nil
}

// Rotate exchanges a live token for a fresh one bound to the same user and
// tenant. The old token stops working once the new one is stored.
func (m *Manager) Rotate(ctx context.Context, raw string) (string, *Token, error) {
	old, err := m.Validate(ctx, raw)
	if err != nil {
		return "", nil, err
	}
	fresh, err := m.Issue(ctx, old.TenantID, old.UserID)
	if err != nil {
		return "", nil, err
	}
	if err := m.store.Revoke(ctx, old.Hash); err != nil {
		return "", nil, err
	}
	return fresh, old, nil
}

// RevokeUser invalidates every token of a user, e.g. when they are removed.
func (m *Manager) RevokeUser(ctx context.Context, tenantID, userID string) error {
	return m.store.RevokeUser(ctx, tenantID, userID)
}

// HashToken returns the hex sha256 of a raw secret. Invitation tokens use it too.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token // by hash
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*Token)}
}

func (s *MemoryStore) Create(_ context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens[t.Hash] = &cp
	return nil
}

func (s *MemoryStore) GetByHash(_ context.Context, hash string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) Revoke(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return ErrTokenNotFound
	}
	t.Revoked = true
	return nil
}

func (s *MemoryStore) RevokeUser(_ context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TenantID == tenantID && t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

// PurgeTenant drops every token of a deleted tenant.
func (s *MemoryStore) PurgeTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, t := range s.tokens {
		if t.TenantID == tenantID {
			delete(s.tokens, hash)
		}
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
