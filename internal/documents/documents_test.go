package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/activity"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	service  *Service
	storage  *LocalStorage
	store    *MemoryStore
	recorder *activity.Recorder
	alice    tenant.Principal
	mallory  tenant.Principal
}

func newFixture(t *testing.T, maxSize int64) *fixture {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := NewMemoryStore()
	recorder := activity.NewRecorder(activity.NewMemoryStore(), nil)
	return &fixture{
		service:  NewService(store, storage, PlainTextExtractor{}, recorder, maxSize),
		storage:  storage,
		store:    store,
		recorder: recorder,
		alice:    tenant.Principal{ID: idgen.New(), TenantID: idgen.New(), Role: tenant.RoleMember},
		mallory:  tenant.Principal{ID: idgen.New(), TenantID: idgen.New(), Role: tenant.RoleAdmin},
	}
}

func (f *fixture) upload(t *testing.T, p tenant.Principal, name, body string) *Document {
	t.Helper()
	doc, err := f.service.Upload(context.Background(), tenant.NewScope(p), Upload{Filename: name, Data: []byte(body)})
	require.NoError(t, err)
	return doc
}

func TestUpload_TextIsExtracted(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	scope := tenant.NewScope(f.alice)

	doc := f.upload(t, f.alice, "notes.TXT", "\xef\xbb\xbfQuarterly revenue grew.\r\nCosts fell.\r\n")
	assert.Equal(t, StatusCompleted, doc.Status)
	assert.Equal(t, "Quarterly revenue grew.\nCosts fell.", doc.Text)
	assert.Equal(t, "text/plain", doc.ContentType)
	assert.Equal(t, f.alice.TenantID, doc.TenantID)
	assert.Equal(t, f.alice.ID, doc.UploadedBy)

	stored, err := f.service.Get(ctx, scope, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasText())

	_, err = os.Stat(filepath.Join(f.storage.Root(), f.alice.TenantID, doc.ID+".txt"))
	assert.NoError(t, err, "file lands under the tenant's directory")

	recs, _, _, err := f.recorder.List(ctx, scope, 10, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, activity.ActionUpload, recs[0].Action)
	assert.Equal(t, doc.ID, recs[0].Target)
}

func TestUpload_BinaryFormatsStayUploaded(t *testing.T) {
	f := newFixture(t, 0)
	for _, name := range []string{"report.pdf", "brief.docx"} {
		doc := f.upload(t, f.alice, name, "%PDF-1.7 binary")
		assert.Equal(t, StatusUploaded, doc.Status, name)
		assert.False(t, doc.HasText(), name)
	}
}

func TestUpload_ExtractionFailureMarksFailed(t *testing.T) {
	f := newFixture(t, 0)
	doc := f.upload(t, f.alice, "broken.txt", "\xff\xfe\xfd")
	assert.Equal(t, StatusFailed, doc.Status)
	assert.Empty(t, doc.Text)
}

func TestUpload_Rejects(t *testing.T) {
	f := newFixture(t, 16)
	scope := tenant.NewScope(f.alice)
	ctx := context.Background()

	_, err := f.service.Upload(ctx, scope, Upload{Filename: "run.exe", Data: []byte("MZ")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.service.Upload(ctx, scope, Upload{Filename: "noext", Data: []byte("hi")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.service.Upload(ctx, scope, Upload{Filename: "empty.txt"})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = f.service.Upload(ctx, scope, Upload{Filename: "big.txt", Data: bytes.Repeat([]byte("a"), 17)})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = f.service.Upload(ctx, tenant.SystemScope(f.alice.TenantID), Upload{Filename: "a.txt", Data: []byte("a")})
	assert.ErrorIs(t, err, activity.ErrNoActor)

	_, err = f.service.Upload(ctx, tenant.Scope{}, Upload{Filename: "a.txt", Data: []byte("a")})
	assert.Error(t, err)

	docs, _, _, err := f.service.List(ctx, scope, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpload_PathInFilenameIsStripped(t *testing.T) {
	f := newFixture(t, 0)
	doc := f.upload(t, f.alice, `..\..\etc/passwd.txt`, "root")
	assert.Equal(t, "passwd.txt", doc.Filename)
	assert.Equal(t, f.alice.TenantID+"/"+doc.ID+".txt", doc.Locator)
}

func TestIsolation_AdversarialIDs(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	doc := f.upload(t, f.alice, "secret.txt", "board minutes")
	other := tenant.NewScope(f.mallory)

	for _, id := range []string{doc.ID, "", "../" + doc.ID, idgen.New(), f.alice.TenantID} {
		_, err := f.service.Get(ctx, other, id)
		assert.ErrorIs(t, err, ErrNotFound, id)

		_, _, err = f.service.Open(ctx, other, id)
		assert.ErrorIs(t, err, ErrNotFound, id)

		assert.ErrorIs(t, f.service.Delete(ctx, other, id), ErrNotFound, id)
	}

	docs, _, _, err := f.service.List(ctx, other, 50, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)

	// Alice's document survived every attempt.
	_, rc, err := f.service.Open(ctx, tenant.NewScope(f.alice), doc.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "board minutes", string(body))
}

func TestDelete_RemovesBlobAndRecords(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	scope := tenant.NewScope(f.alice)
	doc := f.upload(t, f.alice, "old.txt", "stale")

	require.NoError(t, f.service.Delete(ctx, scope, doc.ID))

	_, err := f.service.Get(ctx, scope, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(f.storage.Root(), doc.Locator))
	assert.True(t, os.IsNotExist(err))

	recs, _, _, err := f.recorder.List(ctx, scope, 10, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, activity.ActionDelete, recs[0].Action)
	assert.Equal(t, "document", recs[0].Details["resource"])
}

func TestList_Paginates(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	scope := tenant.NewScope(f.alice)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.Create(ctx, scope, &Document{
			ID:        idgen.New(),
			TenantID:  f.alice.TenantID,
			Filename:  "f.txt",
			Status:    StatusUploaded,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page1, next, more, err := f.service.List(ctx, scope, 3, nil)
	require.NoError(t, err)
	require.Len(t, page1, 3)
	assert.True(t, more)
	assert.Equal(t, base.Add(4*time.Minute), page1[0].CreatedAt)

	cursor, err := pagination.Decode(next)
	require.NoError(t, err)
	page2, _, more, err := f.service.List(ctx, scope, 3, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.False(t, more)
	assert.Equal(t, base, page2[1].CreatedAt)
}

func TestPurgeTenant(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.upload(t, f.alice, "a.txt", "a")
	kept := f.upload(t, f.mallory, "b.txt", "b")

	require.NoError(t, f.store.PurgeTenant(ctx, f.alice.TenantID))

	docs, _, _, err := f.service.List(ctx, tenant.NewScope(f.alice), 10, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, err = f.service.Get(ctx, tenant.NewScope(f.mallory), kept.ID)
	assert.NoError(t, err)
}

func TestLocalStorage_RejectsEscapes(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, loc := range []string{"../etc/passwd", "a/../../b", "/abs/path", "a/b/c", "a", "a/.hidden", ""} {
		_, err := s.Open(ctx, loc)
		assert.ErrorIs(t, err, ErrInvalidLocator, loc)
		assert.False(t, s.Delete(ctx, loc), loc)
	}

	_, err = s.Save(ctx, "..", "x.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidLocator)
	_, err = s.Save(ctx, "t1", "../x.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidLocator)

	_, err = s.Open(ctx, "t1/missing.txt")
	assert.ErrorIs(t, err, ErrBlobMissing)
}

func TestLocalStorage_PurgeTenant(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	gone, err := s.Save(ctx, "t1", "a.txt", []byte("a"))
	require.NoError(t, err)
	kept, err := s.Save(ctx, "t2", "b.txt", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, s.PurgeTenant(ctx, "t1"))
	require.NoError(t, s.PurgeTenant(ctx, "t1"), "purging twice is fine")
	assert.ErrorIs(t, s.PurgeTenant(ctx, ".."), ErrInvalidLocator)

	_, err = s.Open(ctx, gone)
	assert.ErrorIs(t, err, ErrBlobMissing)
	rc, err := s.Open(ctx, kept)
	require.NoError(t, err)
	_ = rc.Close()
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func newRouter(f *fixture, p tenant.Principal) *gin.Engine {
	r := gin.New()
	g := r.Group("/v1")
	g.Use(func(c *gin.Context) {
		c.Set(auth.ContextKeyPrincipal, p)
		c.Next()
	})
	NewHandler(f.service).RegisterRoutes(g)
	return r
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandler_UploadGetDownloadDelete(t *testing.T) {
	f := newFixture(t, 0)
	r := newRouter(f, f.alice)

	body, ct := multipartBody(t, "file", "minutes.txt", "The board approved the budget.")
	req := httptest.NewRequest("POST", "/v1/documents", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		ExtractedText string `json:"extractedText"`
		Locator       string `json:"locator"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "completed", created.Status)
	assert.Equal(t, "The board approved the budget.", created.ExtractedText)
	assert.Empty(t, created.Locator, "storage locators are not exposed")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.NotContains(t, w.Body.String(), "extractedText", "listings omit text")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/documents/"+created.ID+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "The board approved the budget.", w.Body.String())
	assert.Equal(t, `attachment; filename="minutes.txt"`, w.Header().Get("Content-Disposition"))

	// Another tenant sees nothing.
	other := newRouter(f, f.mallory)
	w = httptest.NewRecorder()
	other.ServeHTTP(w, httptest.NewRequest("GET", "/v1/documents/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = httptest.NewRecorder()
	other.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/documents/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/documents/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/documents/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UploadErrors(t *testing.T) {
	f := newFixture(t, 8)
	r := newRouter(f, f.alice)

	send := func(field, name, content string) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, field, name, content)
		req := httptest.NewRequest("POST", "/v1/documents", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, send("upload", "a.txt", "x").Code)
	assert.Equal(t, http.StatusBadRequest, send("file", "a.exe", "x").Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, send("file", "a.txt", "much too long").Code)
}

func TestHandler_InvalidIDAndCursor(t *testing.T) {
	f := newFixture(t, 0)
	r := newRouter(f, f.alice)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/documents/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/documents?cursor=bm9waXBl", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
