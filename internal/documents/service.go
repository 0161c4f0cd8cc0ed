package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/activity"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/metrics"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/traces"
)

// DefaultMaxSize is the upload ceiling when none is configured.
const DefaultMaxSize = 10 * 1024 * 1024

// Upload is one incoming file.
type Upload struct {
	Filename string
	Data     []byte
}

// Dependent owns rows derived from a document and drops them when the
// document is deleted.
type Dependent interface {
	DeleteForDocument(ctx context.Context, scope tenant.Scope, documentID string) error
}

// Service manages document uploads and retrieval.
type Service struct {
	store      Store
	storage    Storage
	extractor  Extractor
	recorder   *activity.Recorder
	maxSize    int64
	dependents []Dependent
}

// NewService creates a document service. maxSize <= 0 uses DefaultMaxSize
// and a nil extractor keeps every upload at status uploaded.
func NewService(store Store, storage Storage, extractor Extractor, recorder *activity.Recorder, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{
		store:     store,
		storage:   storage,
		extractor: extractor,
		recorder:  recorder,
		maxSize:   maxSize,
	}
}

// AddDependent registers d to be cleaned up on document deletion.
func (s *Service) AddDependent(d Dependent) {
	s.dependents = append(s.dependents, d)
}

// MaxSize is the upload ceiling in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// Upload validates, stores and extracts a file on behalf of the scope's user.
func (s *Service) Upload(ctx context.Context, scope tenant.Scope, up Upload) (*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if scope.IsSystem() {
		return nil, activity.ErrNoActor
	}

	name := cleanFilename(up.Filename)
	ext, ok := normalizeExt(name)
	switch {
	case !ok:
		metrics.DocumentsUploadedTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: allowed types are %s", ErrUnsupportedType, strings.Join(AllowedExtensions(), ", "))
	case len(up.Data) == 0:
		metrics.DocumentsUploadedTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyFile
	case int64(len(up.Data)) > s.maxSize:
		metrics.DocumentsUploadedTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: max size is %d MB", ErrTooLarge, s.maxSize/(1024*1024))
	}

	ctx, span := traces.StartSpan(ctx, "documents.Upload", traces.TenantID(scope.TenantID()))
	defer span.End()

	doc := &Document{
		ID:          idgen.New(),
		TenantID:    scope.TenantID(),
		UploadedBy:  scope.PrincipalID(),
		Filename:    name,
		ContentType: contentTypes[ext],
		SizeBytes:   int64(len(up.Data)),
		Status:      StatusUploaded,
		CreatedAt:   time.Now().UTC(),
	}
	locator, err := s.storage.Save(ctx, doc.TenantID, doc.ID+ext, up.Data)
	if err != nil {
		metrics.DocumentsUploadedTotal.WithLabelValues("error").Inc()
		traces.Fail(span, err)
		return nil, fmt.Errorf("save file: %w", err)
	}
	doc.Locator = locator

	if err := s.store.Create(ctx, scope, doc); err != nil {
		s.storage.Delete(ctx, locator)
		metrics.DocumentsUploadedTotal.WithLabelValues("error").Inc()
		traces.Fail(span, err)
		return nil, err
	}

	s.extract(ctx, scope, doc, ext, up.Data)

	metrics.DocumentsUploadedTotal.WithLabelValues("ok").Inc()
	s.recorder.RecordQuietly(ctx, scope, activity.ActionUpload, doc.ID,
		map[string]any{"filename": doc.Filename, "sizeBytes": doc.SizeBytes})
	return doc, nil
}

// extract runs the extractor inline and records the result on doc. An
// extraction failure marks the document failed; the upload itself stands.
func (s *Service) extract(ctx context.Context, scope tenant.Scope, doc *Document, ext string, data []byte) {
	if s.extractor == nil {
		return
	}
	text, err := s.extractor.Extract(ctx, ext, data)
	status := StatusCompleted
	switch {
	case errors.Is(err, ErrNoExtractor):
		return
	case err != nil:
		logging.L(ctx).Warn("text extraction failed", "document_id", doc.ID, "error", err)
		status, text = StatusFailed, ""
	}
	if err := s.store.SetExtraction(ctx, scope, doc.ID, status, text); err != nil {
		logging.L(ctx).Error("failed to save extracted text", "document_id", doc.ID, "error", err)
		return
	}
	doc.Status, doc.Text = status, text
}

// Get returns one document of the scope's tenant.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*Document, error) {
	return s.store.Get(ctx, scope, id)
}

// List returns a page of the scope's documents, newest first.
func (s *Service) List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Document, string, bool, error) {
	docs, err := s.store.List(ctx, scope, limit+1, cursor)
	if err != nil {
		return nil, "", false, err
	}
	page, next, more := pagination.ComputePage(docs, limit, func(d *Document) (time.Time, string) {
		return d.CreatedAt, d.ID
	})
	return page, next, more, nil
}

// Open returns the document and a reader over its stored bytes. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, scope tenant.Scope, id string) (*Document, io.ReadCloser, error) {
	doc, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(ctx, doc.Locator)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

// Delete removes the document and its stored file.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	doc, err := s.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, scope, doc.ID); err != nil {
		return err
	}
	for _, d := range s.dependents {
		if err := d.DeleteForDocument(ctx, scope, doc.ID); err != nil {
			logging.L(ctx).Error("failed to delete dependent rows", "document_id", doc.ID, "error", err)
		}
	}
	if !s.storage.Delete(ctx, doc.Locator) {
		logging.L(ctx).Warn("stored file was already gone", "document_id", doc.ID)
	}
	s.recorder.RecordQuietly(ctx, scope, activity.ActionDelete, doc.ID,
		map[string]any{"filename": doc.Filename, "resource": "document"})
	return nil
}

// cleanFilename keeps the base name of a client-supplied path.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:255-len(ext)] + ext
	}
	return name
}
