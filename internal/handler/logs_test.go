package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/logvault/logvault/internal/middleware"
	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/repository"
	"github.com/logvault/logvault/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repository.MemoryLogStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryLogStore()
	querySvc := service.NewQueryService(store)
	h := NewLogsHandler(querySvc)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/v1/logs", h.List)
	router.GET("/v1/files/:file_id/records", h.FileRecords)
	router.GET("/v1/files/:file_id/records/:line_no", h.Record)
	return router, store
}

func seed(t *testing.T, store *repository.MemoryLogStore) {
	t.Helper()
	ctx := context.Background()
	for i, ts := range []float64{100, 200, 300} {
		rec := &model.LogRecord{
			FileID:      "f1",
			LineNo:      int64(i + 1),
			TS:          ts,
			UserID:      "alice",
			StatusCode:  200,
			RespHeaders: model.HeaderMap{},
			ReqHeaders:  model.HeaderMap{},
		}
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestListFiltersByWindow(t *testing.T) {
	router, store := newTestRouter(t)
	seed(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/logs?from=150&to=300", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var records []*model.LogRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TS != 200 || records[1].TS != 300 {
		t.Fatalf("wrong window contents: %+v", records)
	}
}

func TestListRejectsBadTimestamp(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/logs?from=yesterday-ish", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestFileRecordsRange(t *testing.T) {
	router, store := newTestRouter(t)
	seed(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/files/f1/records?from_line=2&to_line=3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var records []*model.LogRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 2 || records[0].LineNo != 2 {
		t.Fatalf("wrong range contents: %+v", records)
	}
}

func TestListLimitClampsToMaximum(t *testing.T) {
	// A limit above the 10000 cap clamps down to the cap instead of
	// falling back to the small default.
	router, store := newTestRouter(t)
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		rec := &model.LogRecord{
			FileID:      "f1",
			LineNo:      int64(i + 1),
			TS:          float64(i),
			StatusCode:  200,
			RespHeaders: model.HeaderMap{},
			ReqHeaders:  model.HeaderMap{},
		}
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/logs?from=0&to=1000&limit=20000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var records []*model.LogRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 150 {
		t.Fatalf("expected 150 records, got %d", len(records))
	}
}

func TestRecordNotFound(t *testing.T) {
	router, store := newTestRouter(t)
	seed(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/files/f1/records/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
