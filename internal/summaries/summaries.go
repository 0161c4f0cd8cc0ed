// Package summaries generates and stores document summaries.
//
// Generation is quota-consuming work: every attempt passes through the
// entitlement usage gate before the generator runs, and the unit consumed on
// admission is kept even when generation fails.
package summaries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

var (
	ErrNotFound         = errors.New("summaries: not found")
	ErrInvalidStyle     = errors.New("summaries: invalid summary style")
	ErrDocumentNotFound = errors.New("summaries: document not found")
	ErrDocumentNotReady = errors.New("summaries: document text not available")
	ErrGenerationFailed = errors.New("summaries: generation failed")

	// ErrGeneratorUnavailable means the generator's circuit is open. It is
	// returned before any quota is consumed.
	ErrGeneratorUnavailable = errors.New("summaries: generator unavailable")
)

// Style selects how much of the document a summary covers.
type Style string

const (
	StyleBrief    Style = "brief"
	StyleStandard Style = "standard"
	StyleDetailed Style = "detailed"
)

// ParseStyle validates s. An empty string is the standard style.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "":
		return StyleStandard, nil
	case StyleBrief, StyleStandard, StyleDetailed:
		return Style(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStyle, s)
}

// Summary is one generated summary of a document.
type Summary struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	DocumentID string    `json:"documentId"`
	CreatedBy  string    `json:"createdBy"`
	Style      Style     `json:"summaryType"`
	Content    string    `json:"summaryText"`
	TokensUsed int       `json:"tokensUsed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store persists summaries. Every method is scoped; rows of another tenant
// are reported as ErrNotFound.
type Store interface {
	Create(ctx context.Context, scope tenant.Scope, s *Summary) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*Summary, error)
	// List returns up to limit summaries newest first, strictly after cursor.
	List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Summary, error)
	ListByDocument(ctx context.Context, scope tenant.Scope, documentID string) ([]*Summary, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
	DeleteForDocument(ctx context.Context, scope tenant.Scope, documentID string) error
	// CountByDay counts the scope's summaries per UTC day from since on,
	// oldest day first. Days without summaries are omitted.
	CountByDay(ctx context.Context, scope tenant.Scope, since time.Time) ([]DayCount, error)
}

// DayCount is the number of summaries created on one UTC day.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}
