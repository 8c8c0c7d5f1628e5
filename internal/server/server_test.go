package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moon/internal/engine"
	"github.com/roach88/moon/internal/metrics"
	"github.com/roach88/moon/internal/testutil"
)

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *errorBody      `json:"error"`
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *testutil.MemStore) {
	t.Helper()
	mem := testutil.NewMemStore()
	e := engine.New(mem, engine.WithCipher(testutil.FixedBox(t, t.Name())))
	return New("", e, opts...), mem
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, `"ok"`, string(resp.Data))
}

func TestMatch_CurryOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "POST", "/match", `{"left":"add","right":"2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var partial string
	require.NoError(t, json.Unmarshal(resp.Data, &partial))
	assert.Equal(t, `add<:>["2"]`, partial)
	assert.Contains(t, rec.Body.String(), `add<:>`, "no HTML escaping on the wire")

	body, _ := json.Marshal(map[string]string{"left": partial, "right": "3"})
	rec, resp = do(t, s, "POST", "/match", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"5"`, string(resp.Data))
}

func TestMatch_StructuredRight(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "POST", "/match", `{"left":"len","right":["a","b"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"2"`, string(resp.Data))
}

func TestMatch_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown call", `{"left":"ghosts","right":"1"}`, http.StatusNotFound, "UNKNOWN_CALL"},
		{"malformed", `{"left":"add<:>[","right":"1"}`, http.StatusBadRequest, "MALFORMED_ENCODING"},
		{"invalid argument", `{"left":"len","right":"abc"}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad json", `{"left":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing left", `{"right":"1"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing right", `{"left":"add"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown field", `{"left":"add","right":"1","extra":true}`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := do(t, s, "POST", "/match", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestMatch_StoreFailureIs500(t *testing.T) {
	s, mem := newTestServer(t)
	mem.FailWith(errors.New("disk gone"))

	rec, resp := do(t, s, "POST", "/match", `{"left":"users","right":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", resp.Error.Code)
}

func TestExec(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "POST", "/exec", `{"expr":["add","40","2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"42"`, string(resp.Data))

	rec, resp = do(t, s, "POST", "/exec", `{"expr":"add"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INCOMPLETE_CALL", resp.Error.Code)
}

func TestCollections_InsertWatchDeleteRemove(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "PUT", "/collections/users/1", `"alice"`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"users"`, string(resp.Data))

	_, _ = do(t, s, "PUT", "/collections/users/%3F", `"guest"`)

	rec, resp = do(t, s, "GET", "/watch/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"1":"alice","?":"guest"}`, string(resp.Data))

	_, resp = do(t, s, "POST", "/match", `{"left":"users","right":"nobody"}`)
	assert.JSONEq(t, `"guest"`, string(resp.Data))

	rec, resp = do(t, s, "DELETE", "/collections/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"1"`, string(resp.Data))

	rec, resp = do(t, s, "DELETE", "/collections/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"users"`, string(resp.Data))

	rec, _ = do(t, s, "POST", "/match", `{"left":"users","right":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInsert_BadBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "PUT", "/collections/users/1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestWatch_Fn(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := do(t, s, "GET", "/watch/fn", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var names map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &names))
	assert.Equal(t, "add", names["add"])
	assert.Equal(t, "decrypt", names["decrypt"])
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, "GET", "/healthz", "")
	id, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-Id", "caller-chosen")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-chosen", rec.Header().Get("X-Request-Id"))
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, WithRateLimit(0.001, 2))

	for i := 0; i < 2; i++ {
		rec, _ := do(t, s, "GET", "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := do(t, s, "GET", "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)

	// A different client has its own bucket.
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	mem := testutil.NewMemStore()
	s := New("", engine.New(mem, engine.WithRecorder(m)), WithMetrics(m.Handler()))

	_, _ = do(t, s, "POST", "/match", `{"left":"add","right":"1"}`)

	rec, _ := do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `moon_match_total{outcome="partial"} 1`)
}

func TestMetricsRoute_AbsentWithoutHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, "GET", "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, "GET", "/match", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	mem := testutil.NewMemStore()
	s := New("127.0.0.1:0", engine.New(mem))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, s.Run(ctx))
}

func TestWatch_ETag(t *testing.T) {
	s, _ := newTestServer(t)
	_, _ = do(t, s, "PUT", "/collections/notes/1", `"a"`)

	rec, _ := do(t, s, "GET", "/watch/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest("GET", "/watch/notes", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Zero(t, rec.Body.Len())

	_, _ = do(t, s, "PUT", "/collections/notes/2", `"b"`)
	req = httptest.NewRequest("GET", "/watch/notes", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}
