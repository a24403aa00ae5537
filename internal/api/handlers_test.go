package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-price-tracker/internal/app"
	"github.com/maltedev/amazon-price-tracker/internal/database"
	"github.com/maltedev/amazon-price-tracker/internal/models"
	"github.com/maltedev/amazon-price-tracker/internal/storage"
	"github.com/maltedev/amazon-price-tracker/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	err     error
	started chan struct{}
	release chan struct{}
	got     app.Params
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, params app.Params) (*app.Result, error) {
	f.calls++
	f.got = params
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	best := models.ProductRecord{ASIN: "A3", Price: 4.2}
	return &app.Result{
		RunID: uuid.MustParse("6f1c5a2e-3a52-4b8e-9a2d-2b7f0d7e1c11"),
		Path:  "reports/" + params.Title + ".json",
		Report: &models.Report{
			Title:    params.Title,
			BestItem: &best,
			Filters:  params.Filter,
			Products: []models.ProductRecord{best},
		},
	}, nil
}

type fakeReports map[string]string

func (f fakeReports) Read(name string) ([]byte, error) {
	if strings.Contains(name, "..") {
		return nil, storage.ErrInvalidName
	}
	data, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	return []byte(data), nil
}

type fakeHistory struct {
	snapshots []database.Snapshot
	err       error
	gotTitle  string
}

func (f *fakeHistory) LatestPrices(ctx context.Context, title string) ([]database.Snapshot, error) {
	f.gotTitle = title
	return f.snapshots, f.err
}

func newTestServer(runner Runner, reports ReportReader) http.Handler {
	return NewRouter(NewHandlers(runner, reports, slog.Default()), RouterOptions{Metrics: tracker.NewMetrics().Registry})
}

func newHistoryServer(history HistoryReader) http.Handler {
	h := NewHandlers(&fakeRunner{}, fakeReports{}, slog.Default()).WithHistory(history)
	return NewRouter(h, RouterOptions{})
}

const runBody = `{"title":"tea","search_term":"green tea","filters":{"min":10,"max":50}}`

func TestCreateRun(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(runner, fakeReports{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(runBody))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, app.Params{Title: "tea", SearchTerm: "green tea", Filter: models.SearchFilter{Min: 10, Max: 50}}, runner.got)

	var resp struct {
		RunID  string        `json:"run_id"`
		Path   string        `json:"path"`
		Report models.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "6f1c5a2e-3a52-4b8e-9a2d-2b7f0d7e1c11", resp.RunID)
	assert.Equal(t, "reports/tea.json", resp.Path)
	assert.Equal(t, "A3", resp.Report.BestItem.ASIN)
}

func TestCreateRunErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		runErr     error
		wantStatus int
	}{
		{"Malformed body", `{"title":`, nil, http.StatusBadRequest},
		{"Missing title", `{"search_term":"tea","filters":{"min":1,"max":2}}`, nil, http.StatusBadRequest},
		{"Inverted filter", `{"title":"t","search_term":"tea","filters":{"min":5,"max":2}}`, nil, http.StatusBadRequest},
		{"No links", runBody, tracker.ErrNoProductLinks, http.StatusUnprocessableEntity},
		{"All dropped", runBody, app.ErrNoProducts, http.StatusUnprocessableEntity},
		{"Driver failure", runBody, errors.New("no chromium"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRunner{err: tt.runErr}, fakeReports{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCreateRunRejectsUnsafeTitleBeforeRunning(t *testing.T) {
	for _, title := range []string{"a/b", "..", `a\b`} {
		t.Run(title, func(t *testing.T) {
			runner := &fakeRunner{}
			srv := newTestServer(runner, fakeReports{})

			body := fmt.Sprintf(`{"title":%q,"search_term":"tea","filters":{"min":10,"max":50}}`, title)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid run parameters")
			assert.Zero(t, runner.calls)
		})
	}
}

func TestCreateRunRejectsConcurrentRun(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	srv := newTestServer(runner, fakeReports{})

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(runBody)))
		done <- rec.Code
	}()

	<-runner.started

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(runBody)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(runner.release)
	assert.Equal(t, http.StatusCreated, <-done)
}

func TestGetReport(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, fakeReports{"tea": `{"title":"tea"}`})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"Existing report", "/api/v1/reports/tea", http.StatusOK, `{"title":"tea"}`},
		{"Missing report", "/api/v1/reports/coffee", http.StatusNotFound, "report not found"},
		{"Invalid title", "/api/v1/reports/..", http.StatusBadRequest, "invalid report title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, fakeReports{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker_links_discovered_total")
}

func TestGetHistory(t *testing.T) {
	captured := time.Date(2024, time.March, 7, 9, 5, 3, 0, time.UTC)
	snapshots := []database.Snapshot{
		{Title: "tea", ASIN: "A1", Price: 12.5, Currency: "£", CapturedAt: captured},
		{Title: "tea", ASIN: "A3", Price: 4.2, Currency: "£", IsBest: true, CapturedAt: captured},
	}

	t.Run("returns latest prices", func(t *testing.T) {
		history := &fakeHistory{snapshots: snapshots}
		rec := httptest.NewRecorder()
		newHistoryServer(history).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/tea/history", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tea", history.gotTitle)

		var got []database.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "A3", got[1].ASIN)
		assert.True(t, got[1].IsBest)
	})

	tests := []struct {
		name       string
		history    HistoryReader
		path       string
		wantStatus int
	}{
		{"No snapshots", &fakeHistory{}, "/api/v1/reports/coffee/history", http.StatusNotFound},
		{"Query failure", &fakeHistory{err: errors.New("db down")}, "/api/v1/reports/tea/history", http.StatusInternalServerError},
		{"Invalid title", &fakeHistory{snapshots: snapshots}, "/api/v1/reports/../history", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHistoryServer(tt.history).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("disabled without a history store", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestServer(&fakeRunner{}, fakeReports{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/tea/history", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
