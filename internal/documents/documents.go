// Package documents manages uploaded source documents.
//
// A document's bytes live in a Storage backend; its metadata and extracted
// text live in a Store. Every operation runs in a tenant.Scope and a document
// belonging to another tenant is indistinguishable from one that does not
// exist.
package documents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

var (
	ErrNotFound        = errors.New("documents: not found")
	ErrUnsupportedType = errors.New("documents: unsupported file type")
	ErrTooLarge        = errors.New("documents: file too large")
	ErrEmptyFile       = errors.New("documents: file is empty")
	ErrNoText          = errors.New("documents: no extracted text")
	ErrBlobMissing     = errors.New("documents: stored file missing")
)

// Status is the extraction state of a document.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Accepted file extensions and the content type recorded for each.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// Document is an uploaded file and what was extracted from it.
type Document struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	UploadedBy  string    `json:"uploadedBy"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Locator     string    `json:"-"`
	Text        string    `json:"-"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasText reports whether the document can be summarized.
func (d *Document) HasText() bool {
	return strings.TrimSpace(d.Text) != ""
}

// Store persists document metadata. Every method is scoped; rows of another
// tenant are reported as ErrNotFound.
type Store interface {
	Create(ctx context.Context, scope tenant.Scope, d *Document) error
	Get(ctx context.Context, scope tenant.Scope, id string) (*Document, error)
	// List returns up to limit documents newest first, strictly after cursor.
	List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Document, error)
	// SetExtraction records the result of text extraction.
	SetExtraction(ctx context.Context, scope tenant.Scope, id string, status Status, text string) error
	Delete(ctx context.Context, scope tenant.Scope, id string) error
	// Usage totals the scope's documents and their stored bytes.
	Usage(ctx context.Context, scope tenant.Scope) (Usage, error)
}

// Usage is a tenant's document footprint.
type Usage struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

// normalizeExt returns the lowercased extension of name if it is accepted.
func normalizeExt(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := contentTypes[ext]
	return ext, ok
}

// AllowedExtensions lists accepted extensions without the dot.
func AllowedExtensions() []string {
	return []string{"pdf", "docx", "txt"}
}
