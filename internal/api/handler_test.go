package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planted-staging/internal/commit"
	"planted-staging/internal/config"
	"planted-staging/internal/content"
	"planted-staging/internal/db"
	"planted-staging/internal/excel"
	"planted-staging/internal/linker"
	"planted-staging/internal/lock"
	"planted-staging/internal/model"
	"planted-staging/internal/moderation"
	"planted-staging/internal/staging"
	"planted-staging/internal/storage"
	"planted-staging/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const token = "test-token"

type testServer struct {
	router *gin.Engine
	store  *content.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:     config.AppConfig{Name: "planted-staging", Version: "test"},
		Staging: config.StagingConfig{MaxFileSize: 1 << 20, DefaultPageSize: 20, MaxPageSize: 100},
		Auth: config.AuthConfig{Admins: []config.AdminCredential{
			{Token: token, ID: "admin-1", FirstName: "Ada", Email: "ada@example.com"},
		}},
	}

	repo := db.NewMemoryRepository()
	strategy := excel.NewExcelStrategy()
	link := linker.New(config.DuplicateDayLastWins)
	publisher := worker.NewEventRecorder(repo)
	store := content.NewMemoryStore()

	stagingService := staging.NewService(cfg.Staging, repo, strategy, link, storage.NewMemoryStorage(), "staged-uploads", publisher)
	engine := moderation.NewEngine(
		repo,
		lock.NewLocalLocker(time.Second),
		commit.NewEngine(store, worker.NewWorkerPool(2)),
		link,
		strategy,
		publisher,
	)

	return &testServer{router: NewRouter(NewHandler(cfg, stagingService, engine)), store: store}
}

type response struct {
	Status     string            `json:"status"`
	Data       json.RawMessage   `json:"data"`
	Message    string            `json:"message"`
	Pagination *model.Pagination `json:"pagination"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (int, response) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func (s *testServer) upload(t *testing.T) model.UploadResponse {
	t.Helper()
	return s.uploadFile(t, "week.xlsx", weekWorkbook(t))
}

func weekWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	sheets := map[string][][]interface{}{
		"Memory Verses": {
			{"DayID", "Date", "Reference", "Verse Text_5_8"},
			{"20260118", "2026-01-18", "John 3:16", "God loves us"},
			{"20260119", "2026-01-19", "John 4:14", "Living water"},
			{"20260120", "2026-01-20", "John 5:24", "Whoever hears"},
		},
		"Children Devotional": {
			{"DayID", "Date", "Title", "Bible Reference", "Verse Text", "Body/Story"},
			{"20260118", "2026-01-18", "God's Promise", "John 3:16", "For God so loved", ""},
		},
	}
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, r := range rows {
			row := r
			require.NoError(t, f.SetSheetRow(name, fmt.Sprintf("A%d", i+1), &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))
	data, err := f.WriteToBuffer()
	require.NoError(t, err)
	return data.Bytes()
}

func (s *testServer) uploadFile(t *testing.T, name string, data []byte) model.UploadResponse {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/bulk-upload/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	code, resp := s.serve(t, req)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	var out model.UploadResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func TestHealthIsOpen(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestAdminRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bulk-upload/staged", nil)
	code, resp := s.serve(t, req)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", resp.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/bulk-upload/staged", nil)
	req.Header.Set("Authorization", "Bearer nope")
	code, _ = s.serve(t, req)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUploadApproveAndDeleteFlow(t *testing.T) {
	s := newTestServer(t)
	up := s.upload(t)
	assert.Equal(t, 4, up.Summary.TotalItems)
	assert.Equal(t, 3, up.TotalDays)

	base := "/api/v1/admin/bulk-upload/staged/" + up.UploadID

	code, resp := s.do(t, http.MethodGet, "/api/v1/admin/bulk-upload/staged?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 1, resp.Pagination.Total)

	code, resp = s.do(t, http.MethodGet, base+"/sheet/memoryVerses?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, code)
	var sheet struct {
		Items []model.StagedItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &sheet))
	require.Len(t, sheet.Items, 1)
	assert.Equal(t, 2, sheet.Items[0].Index)

	code, resp = s.do(t, http.MethodPost, base+"/approve", model.BulkRequest{Mode: model.ModeBulk})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var result model.CommitResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 4, result.ApprovedCount)
	assert.Equal(t, 3, result.CommittedCount)
	assert.Len(t, result.Errors, 1)
	assert.Len(t, s.store.Records(), 3)

	code, resp = s.do(t, http.MethodGet, base+"/summary", nil)
	require.Equal(t, http.StatusOK, code)
	var summary model.UploadSummaryResponse
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, model.UploadFullyApproved, summary.Status)

	code, resp = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", resp.Status)

	code, resp = s.do(t, http.MethodGet, base+"/events", nil)
	require.Equal(t, http.StatusOK, code)
	var events []model.StagingEvent
	require.NoError(t, json.Unmarshal(resp.Data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, model.EventItemsApproved, events[1].Type)
}

func TestModerationErrors(t *testing.T) {
	s := newTestServer(t)
	up := s.upload(t)
	base := "/api/v1/admin/bulk-upload/staged/" + up.UploadID

	seven := 7
	code, _ := s.do(t, http.MethodPatch, base+"/status", model.StatusRequest{Sheet: "memoryVerses", RowIndex: &seven, Status: model.ItemApproved})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPatch, base+"/status", map[string]interface{}{"sheet": "memoryVerses", "status": "approved"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, base+"/reject", model.BulkRequest{Mode: "everything"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, base+"/item?sheet=memoryVerses", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/bulk-upload/staged/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEditRejectAndDeleteItem(t *testing.T) {
	s := newTestServer(t)
	up := s.upload(t)
	base := "/api/v1/admin/bulk-upload/staged/" + up.UploadID
	zero := 0

	code, resp := s.do(t, http.MethodPatch, base+"/item", model.EditItemRequest{
		Sheet: "childrenDevotionals", RowIndex: &zero, Field: "content", Value: "A story",
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var edit model.EditResult
	require.NoError(t, json.Unmarshal(resp.Data, &edit))
	assert.Empty(t, edit.ValidationErrors)

	code, resp = s.do(t, http.MethodPost, base+"/reject", model.BulkRequest{
		Mode:  model.ModeSelective,
		Items: []model.ItemRef{{Sheet: model.SheetMemoryVerses, Index: 1}},
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.JSONEq(t, `{"rejected":1}`, string(resp.Data))

	code, resp = s.do(t, http.MethodDelete, base+"/item?sheet=memoryVerses&rowIndex=1", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var summary model.UploadSummaryResponse
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, 3, summary.Summary.TotalItems)

	code, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDownloadOriginal(t *testing.T) {
	s := newTestServer(t)
	up := s.upload(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bulk-upload/staged/"+up.UploadID+"/original", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "week.xlsx")
	assert.Equal(t, "PK", w.Body.String()[:2])
}

func TestTemplateUploadsAndCommitsCleanly(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bulk-upload/template", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "planted_bulk_upload_template.xlsx")

	up := s.uploadFile(t, "template.xlsx", w.Body.Bytes())
	assert.Equal(t, 6, up.Summary.TotalItems)
	assert.Equal(t, 1, up.TotalDays)
	assert.Empty(t, up.ParseErrors)

	code, resp := s.do(t, http.MethodPost, "/api/v1/admin/bulk-upload/staged/"+up.UploadID+"/approve", model.BulkRequest{Mode: model.ModeBulk})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var result model.CommitResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Empty(t, result.Errors)
	assert.Equal(t, 6, result.CommittedCount)
	// Both-band verse and lesson rows create one record per band.
	assert.Len(t, s.store.Records(), 8)
}
