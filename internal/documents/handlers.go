package documents

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/validation"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the file itself.
const multipartOverhead = 64 * 1024

// Handler provides HTTP endpoints for documents.
type Handler struct {
	service *Service
}

// NewHandler creates a new documents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up document routes. The group must require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/documents", h.UploadDocument)
	r.GET("/documents", h.ListDocuments)
	r.GET("/documents/:id", validation.IDParamMiddleware(), h.GetDocument)
	r.GET("/documents/:id/download", validation.IDParamMiddleware(), h.DownloadDocument)
	r.DELETE("/documents/:id", validation.IDParamMiddleware(), h.DeleteDocument)
}

// UploadLimit is the request body ceiling for the upload route.
func (h *Handler) UploadLimit() int64 {
	return h.service.MaxSize() + multipartOverhead
}

type documentWithText struct {
	*Document
	ExtractedText string `json:"extractedText"`
}

// UploadDocument handles POST /v1/documents (multipart field "file")
func (h *Handler) UploadDocument(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.UploadLimit())
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, ErrTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "multipart field 'file' is required"})
		return
	}
	if fh.Size > h.service.MaxSize() {
		respondError(c, ErrTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Unreadable upload"})
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, h.service.MaxSize()+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Unreadable upload"})
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), scope, Upload{Filename: fh.Filename, Data: data})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, documentWithText{Document: doc, ExtractedText: doc.Text})
}

// ListDocuments handles GET /v1/documents
func (h *Handler) ListDocuments(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}
	limit := pagination.ParseLimit(c.Query("limit"))

	docs, next, more, err := h.service.List(c.Request.Context(), scope, limit, cursor)
	if err != nil {
		respondError(c, err)
		return
	}
	if docs == nil {
		docs = []*Document{}
	}
	c.JSON(http.StatusOK, gin.H{
		"documents":  docs,
		"count":      len(docs),
		"nextCursor": next,
		"hasMore":    more,
	})
}

// GetDocument handles GET /v1/documents/:id
func (h *Handler) GetDocument(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	doc, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentWithText{Document: doc, ExtractedText: doc.Text})
}

// DownloadDocument handles GET /v1/documents/:id/download
func (h *Handler) DownloadDocument(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	doc, rc, err := h.service.Open(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer func() { _ = rc.Close() }()

	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%s", strconv.Quote(doc.Filename)),
	})
}

// DeleteDocument handles DELETE /v1/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	if err := h.service.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Document not found"})
	case errors.Is(err, ErrBlobMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "file_missing", "message": "Stored file not found"})
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_file", "message": err.Error()})
	case errors.Is(err, ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large", "message": err.Error()})
	default:
		logging.L(c.Request.Context()).Error("document request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Document request failed"})
	}
}
