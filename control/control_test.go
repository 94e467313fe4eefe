package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/callebjorkell/nfc-bridge/bridge"
	"github.com/callebjorkell/nfc-bridge/nfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeSurface struct {
	status     bridge.Status
	foreground bool
	err        error
	events     []nfc.DiscoveryEvent
}

func (f *fakeSurface) Status() (bridge.Status, error) { return f.status, f.err }

func (f *fakeSurface) EnterForeground() error {
	if f.err == nil {
		f.foreground = true
	}
	return f.err
}

func (f *fakeSurface) ExitForeground() error {
	if f.err == nil {
		f.foreground = false
	}
	return f.err
}

func (f *fakeSurface) Discover(ev nfc.DiscoveryEvent) error {
	if f.err == nil {
		f.events = append(f.events, ev)
	}
	return f.err
}

func serve(s Surface, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewRouter(s).ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(&fakeSurface{}, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestStatus(t *testing.T) {
	s := &fakeSurface{status: bridge.Status{Surface: "door", Bound: true, Available: true, Buffered: true}}
	rec := serve(s, "GET", "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got bridge.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, s.status, got)
}

func TestForeground(t *testing.T) {
	s := &fakeSurface{}
	rec := serve(s, "PUT", "/surface/foreground", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, s.foreground)

	rec = serve(s, "DELETE", "/surface/foreground", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.foreground)

	rec = serve(s, "POST", "/surface/foreground", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInjectEvent(t *testing.T) {
	s := &fakeSurface{}
	rec := serve(s, "POST", "/surface/events", `{"action":"ndef","tagId":"04aabb","data":"0QEFVGhlbGxv"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, s.events, 1)
	assert.Equal(t, nfc.NDEFDiscovered, s.events[0].Action)
	assert.Equal(t, "04aabb", s.events[0].TagID)
	assert.Equal(t, []byte{0xD1, 0x01, 0x05, 'T', 'h', 'e', 'l', 'l', 'o'}, s.events[0].Data)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		method string
		path   string
		body   string
		code   int
	}{
		{"bad json", nil, "POST", "/surface/events", `{`, http.StatusBadRequest},
		{"bad action", nil, "POST", "/surface/events", `{"action":"beam"}`, http.StatusBadRequest},
		{"not bound", bridge.ErrNotBound, "PUT", "/surface/foreground", "", http.StatusConflict},
		{"not receiving", bridge.ErrNotReceiving, "POST", "/surface/events", `{"action":"tag"}`, http.StatusConflict},
		{"stopped", bridge.ErrStopped, "GET", "/status", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(&fakeSurface{err: tt.err}, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code)

			var e errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestRateLimit(t *testing.T) {
	router := newRouter(&fakeSurface{}, rate.NewLimiter(0, 2))
	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitCountsUnmatchedRoutes(t *testing.T) {
	router := newRouter(&fakeSurface{}, rate.NewLimiter(0, 2))
	requests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/nothing-here", http.StatusNotFound},
		{"POST", "/health", http.StatusMethodNotAllowed},
		{"GET", "/health", http.StatusTooManyRequests},
	}
	for _, req := range requests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(req.method, req.path, nil))
		assert.Equal(t, req.want, rec.Code, "%v %v", req.method, req.path)
	}
}
