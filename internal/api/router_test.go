package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"batchtrack-backend/config"
	"batchtrack-backend/internal/can"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/eligibility"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/labeling"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/packaging"
	"batchtrack-backend/internal/processing"
	"batchtrack-backend/internal/report"
	"batchtrack-backend/internal/store"
	"batchtrack-backend/internal/testutil"
)

type testServer struct {
	router  *gin.Engine
	centers []model.CollectionCenter
}

func setupRouter(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	centers := testutil.SeedCenters(t, db, "NORTH", "SOUTH")
	st := store.NewGormStore(db)
	dir := store.NewCenterDirectory(db, time.Minute)
	authz, cal, log := testutil.Authorizer(), testutil.Calendar(), zap.NewNop()

	handler := NewHandler(Services{
		Drafts:      draft.NewService(st, authz, cal, dir, log),
		Cans:        can.NewRegistry(st, authz, dir, log),
		Processing:  processing.NewService(st, authz, cal, log),
		Packaging:   packaging.NewService(st, authz, cal, log),
		Labeling:    labeling.NewService(st, authz, cal, log),
		Eligibility: eligibility.NewResolver(st),
		Reports:     report.NewAggregator(st, log),
		Centers:     dir,
	}, log)
	router := NewRouter(handler, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000})
	return testServer{router: router, centers: centers}
}

func (s testServer) do(t *testing.T, actor identity.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !actor.IsZero() {
		req.Header.Set("X-Actor-ID", actor.ID)
		req.Header.Set("X-Actor-Role", actor.Role)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRequiresActor(t *testing.T) {
	s := setupRouter(t)

	w := s.do(t, identity.Actor{}, http.MethodGet, "/api/drafts", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing actor identity"}`, w.Body.String())
}

func TestListCenters(t *testing.T) {
	s := setupRouter(t)

	w := s.do(t, testutil.Collector, http.MethodGet, "/api/centers", nil)

	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]model.CollectionCenter](t, w)
	assert.Len(t, got, 2)
}

func TestDraftFlow(t *testing.T) {
	s := setupRouter(t)

	w := s.do(t, testutil.Collector, http.MethodPost, "/api/drafts", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decode[draft.Draft](t, w)
	assert.Equal(t, testutil.Today, d.CollectionDate)

	w = s.do(t, testutil.Collector, http.MethodPost, "/api/drafts", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{d.ID}, decode[errorResponse](t, w).Details)

	w = s.do(t, testutil.Collector, http.MethodPost, "/api/drafts/"+d.ID+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, testutil.Collector, http.MethodPost, "/api/lines/stream_a/cans", map[string]any{
		"draft_id": d.ID, "center_id": s.centers[0].ID, "code": "7", "brix": 11.5, "ph": 4.2, "quantity": 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[can.Can](t, w)
	assert.Equal(t, model.StreamA, created.ProductLine)

	w = s.do(t, testutil.Collector, http.MethodPut, "/api/drafts/"+d.ID+"/centers/"+s.centers[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, testutil.Collector, http.MethodPost, "/api/drafts/"+d.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.DraftStatusSubmitted, decode[draft.Draft](t, w).Status)

	w = s.do(t, testutil.Other, http.MethodGet, "/api/drafts/"+d.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, testutil.Collector, http.MethodGet, "/api/drafts/"+d.ID+"/cans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]can.Can](t, w), 1)

	w = s.do(t, testutil.Operator, http.MethodGet, "/api/eligibility/processing?line=stream_a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	eligible := decode[[]eligibility.Summary](t, w)
	require.Len(t, eligible, 1)
	assert.Equal(t, created.ID, eligible[0].ID)
}

func TestProcessingEndpoints(t *testing.T) {
	s := setupRouter(t)

	w := s.do(t, testutil.Operator, http.MethodPost, "/api/lines/stream_b/processing", map[string]any{"notes": "first"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[processing.Batch](t, w)
	assert.Equal(t, "01", b.BatchNumber)
	base := "/api/lines/stream_b/processing/" + b.ID

	w = s.do(t, testutil.Operator, http.MethodPut, base+"/cans", map[string]any{"can_ids": []string{"missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"missing"}, decode[errorResponse](t, w).Details)

	w = s.do(t, testutil.Operator, http.MethodPatch, base, map[string]any{"output_yield": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, testutil.Operator, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.ProcessingCompleted, decode[processing.Batch](t, w).Status)

	w = s.do(t, testutil.Operator, http.MethodPost, "/api/lines/stream_b/packaging", map[string]any{"processing_batch_id": b.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pkg := decode[packaging.Batch](t, w)
	assert.ElementsMatch(t, []string{"finished_quantity", "pouches_used", "cartons_used"}, pkg.MissingFields)

	w = s.do(t, testutil.Operator, http.MethodPost, "/api/lines/stream_b/labeling", map[string]any{"packaging_batch_id": pkg.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, testutil.Other, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, testutil.Operator, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, testutil.Operator, http.MethodGet, "/api/lines/stream_b/packaging/"+pkg.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadInput(t *testing.T) {
	s := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"unknown line", http.MethodPost, "/api/lines/stream_c/processing", map[string]any{}, http.StatusBadRequest},
		{"unknown stage", http.MethodGet, "/api/eligibility/shipping", nil, http.StatusBadRequest},
		{"missing packaging source", http.MethodPost, "/api/lines/stream_a/packaging", map[string]any{}, http.StatusBadRequest},
		{"malformed report date", http.MethodGet, "/api/reports/daily?date=14-10-2026", nil, http.StatusBadRequest},
		{"unknown draft", http.MethodGet, "/api/drafts/nope", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, testutil.Admin, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestDailyReport(t *testing.T) {
	s := setupRouter(t)

	w := s.do(t, testutil.Admin, http.MethodGet, "/api/reports/daily?date="+testutil.Today, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decode[report.Report](t, w)
	assert.Equal(t, testutil.Today, rep.Date)
	assert.Len(t, rep.Lines, 2)
	assert.Zero(t, rep.Combined.Collection.DraftCount)
}
