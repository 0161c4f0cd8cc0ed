package summaries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/activity"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/documents"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/metrics"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/traces"
)

// DocumentSource resolves a document within a scope.
type DocumentSource interface {
	Get(ctx context.Context, scope tenant.Scope, id string) (*documents.Document, error)
}

// readiness is implemented by generators that can refuse work up front.
type readiness interface {
	Ready() bool
}

// Live feed event types published by the service.
const (
	eventQuota   = "quota"
	eventSummary = "summary"
)

// Service creates and manages summaries.
type Service struct {
	store     Store
	docs      DocumentSource
	gate      *entitlement.Gate
	generator Generator
	recorder  *activity.Recorder
	publisher activity.Publisher
}

// NewService creates a summary service. publisher may be nil.
func NewService(store Store, docs DocumentSource, gate *entitlement.Gate, generator Generator, recorder *activity.Recorder, publisher activity.Publisher) *Service {
	return &Service{
		store:     store,
		docs:      docs,
		gate:      gate,
		generator: generator,
		recorder:  recorder,
		publisher: publisher,
	}
}

// Create summarizes a document of the scope's tenant. One unit of quota is
// consumed before the generator runs and is not returned if generation
// fails.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, documentID string, style Style) (*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if scope.IsSystem() {
		return nil, activity.ErrNoActor
	}
	if _, err := ParseStyle(string(style)); err != nil {
		return nil, err
	}
	if style == "" {
		style = StyleStandard
	}

	doc, err := s.docs.Get(ctx, scope, documentID)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !doc.HasText() {
		return nil, ErrDocumentNotReady
	}

	if r, ok := s.generator.(readiness); ok && !r.Ready() {
		metrics.SummariesTotal.WithLabelValues(string(style), "unavailable").Inc()
		return nil, ErrGeneratorUnavailable
	}

	ctx, span := traces.StartSpan(ctx, "summaries.Create",
		traces.TenantID(scope.TenantID()), traces.DocumentID(doc.ID), traces.SummaryStyle(string(style)))
	defer span.End()

	acct, err := s.gate.AdmitAndConsume(ctx, scope)
	if err != nil {
		if errors.Is(err, entitlement.ErrQuotaExceeded) {
			metrics.SummariesTotal.WithLabelValues(string(style), "rejected").Inc()
		}
		traces.Fail(span, err)
		return nil, err
	}
	s.publish(scope.TenantID(), eventQuota, map[string]any{
		"summariesUsed":      acct.UsageCount,
		"summariesLimit":     acct.UsageLimit,
		"summariesRemaining": acct.Remaining(),
	})

	start := time.Now()
	content, tokens, err := s.generator.Generate(ctx, doc.Text, style)
	metrics.SummaryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SummariesTotal.WithLabelValues(string(style), "failed").Inc()
		traces.Fail(span, err)
		logging.L(ctx).Error("summary generation failed", "document_id", doc.ID, "style", style, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	sum := &Summary{
		ID:         idgen.New(),
		TenantID:   scope.TenantID(),
		DocumentID: doc.ID,
		CreatedBy:  scope.PrincipalID(),
		Style:      style,
		Content:    content,
		TokensUsed: tokens,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Create(ctx, scope, sum); err != nil {
		metrics.SummariesTotal.WithLabelValues(string(style), "failed").Inc()
		traces.Fail(span, err)
		return nil, err
	}

	metrics.SummariesTotal.WithLabelValues(string(style), "ok").Inc()
	s.recorder.RecordQuietly(ctx, scope, activity.ActionSummaryCreate, sum.ID, map[string]any{
		"documentId": doc.ID,
		"filename":   doc.Filename,
		"style":      string(style),
		"tokensUsed": tokens,
	})
	s.publish(scope.TenantID(), eventSummary, sum)
	return sum, nil
}

// Get returns one summary of the scope's tenant.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*Summary, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns a page of the scope's summaries, newest first.
func (s *Service) List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Summary, string, bool, error) {
	sums, err := s.store.List(ctx, scope, limit+1, cursor)
	if err != nil {
		return nil, "", false, err
	}
	page, next, more := pagination.ComputePage(sums, limit, func(sum *Summary) (time.Time, string) {
		return sum.CreatedAt, sum.ID
	})
	return page, next, more, nil
}

// ListByDocument returns every summary of one document, newest first.
func (s *Service) ListByDocument(ctx context.Context, scope tenant.Scope, documentID string) ([]*Summary, error) {
	if _, err := s.docs.Get(ctx, scope, documentID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return s.store.ListByDocument(ctx, scope, documentID)
}

// Delete removes one summary. Consumed quota is not returned.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	sum, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, scope, sum.ID); err != nil {
		return err
	}
	s.recorder.RecordQuietly(ctx, scope, activity.ActionDelete, sum.ID,
		map[string]any{"documentId": sum.DocumentID, "resource": "summary"})
	return nil
}

func (s *Service) publish(tenantID, eventType string, data any) {
	if s.publisher != nil {
		s.publisher.Publish(tenantID, eventType, data)
	}
}
