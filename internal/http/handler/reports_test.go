package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edirooss/slowdog/internal/http/dto"
	"github.com/edirooss/slowdog/internal/http/handler"
	"github.com/edirooss/slowdog/internal/sink"
	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newReportsRouter(store handler.ReportStore) *gin.Engine {
	h := handler.NewReportsHandler(zap.NewNop(), store)
	r := gin.New()
	r.GET("/api/watchdog/reports", h.List)
	r.GET("/api/watchdog/reports/:id", h.Get)
	r.GET("/api/ping", handler.Ping)
	return r
}

func storedReport(path string) *watchdog.Report {
	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return watchdog.NewReport(watchdog.Report{
		ID:         uuid.New(),
		CapturedAt: started.Add(30 * time.Second),
		Started:    started,
		Request:    watchdog.Request{Method: "GET", Scheme: "http", Host: "example.com", Path: path, Route: path},
	}, "report for "+path)
}

func TestReportsHandler_List(t *testing.T) {
	t.Parallel()

	store := sink.NewMemorySink()
	for _, p := range []string{"/a", "/b", "/c"} {
		require.NoError(t, store.Deliver(context.Background(), storedReport(p)))
	}
	r := newReportsRouter(store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var got []dto.ReportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "GET http://example.com/c", got[0].Request)
	require.Equal(t, "/b", got[1].Route)
	require.Equal(t, 30*time.Second, got[0].Elapsed)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports?limit=x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsHandler_ListEmpty(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newReportsRouter(sink.NewMemorySink()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestReportsHandler_Get(t *testing.T) {
	t.Parallel()

	store := sink.NewMemorySink()
	rep := storedReport("/x")
	store.Append(rep)
	r := newReportsRouter(store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports/"+rep.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "report for /x", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPing(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newReportsRouter(sink.NewMemorySink()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

type failingStore struct{ err error }

func (f failingStore) List(context.Context, int) ([]*watchdog.Report, error) { return nil, f.err }

func (f failingStore) Lookup(context.Context, uuid.UUID) (*watchdog.Report, bool, error) {
	return nil, false, f.err
}

func (f failingStore) Count(context.Context) (int, error) { return 0, f.err }

func TestReportsHandler_storeErrors(t *testing.T) {
	t.Parallel()

	r := newReportsRouter(failingStore{err: errors.New("redis down")})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

// pushedReports records what a RedisSink pushes and reads it back.
type pushedReports struct{ payloads [][]byte }

func (p *pushedReports) Push(_ context.Context, b []byte) error {
	p.payloads = append([][]byte{b}, p.payloads...)
	return nil
}

func (p *pushedReports) Recent(_ context.Context, n int64) ([][]byte, error) {
	if n <= 0 || n > int64(len(p.payloads)) {
		n = int64(len(p.payloads))
	}
	return p.payloads[:n], nil
}

func (p *pushedReports) Len(context.Context) (int64, error) { return int64(len(p.payloads)), nil }

func TestReportsHandler_redisBacked(t *testing.T) {
	t.Parallel()

	list := &pushedReports{}
	redisSink := sink.NewRedisSink(list)
	for _, p := range []string{"/a", "/b"} {
		require.NoError(t, redisSink.Deliver(context.Background(), storedReport(p)))
	}
	r := newReportsRouter(sink.NewRedisReports(zap.NewNop(), list))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var got []dto.ReportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "GET http://example.com/b", got[0].Request)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchdog/reports/"+got[1].ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "report for /a", rec.Body.String())
}
