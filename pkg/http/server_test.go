package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/missing", func(c echo.Context) error { return NotFoundError("ticker not tracked") })
	e.GET("/opaque", func(c echo.Context) error { return errors.New("db password leaked") })
	e.POST("/echo", func(c echo.Context) error {
		var req struct {
			Name string `json:"name" validate:"required"`
		}
		if verr := ReadAndValidateRequest(c, &req); verr != nil {
			return AppErrorResponse(c, verr)
		}
		return SuccessResponse(c, map[string]string{"name": req.Name})
	})
}

func serve(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, stringsReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestServerErrorShapes(t *testing.T) {
	s := NewServer(routes{}, WithMetrics(false), WithCORS(false))

	cases := []struct {
		method, path, body string
		status             int
		errMsg             string
	}{
		{http.MethodGet, "/boom", "", http.StatusInternalServerError, "internal server error"},
		{http.MethodGet, "/missing", "", http.StatusNotFound, "ticker not tracked"},
		{http.MethodGet, "/opaque", "", http.StatusInternalServerError, "internal server error"},
		{http.MethodGet, "/nowhere", "", http.StatusNotFound, "Not Found"},
		{http.MethodPost, "/echo", `{}`, http.StatusBadRequest, "name is required"},
	}
	for _, tc := range cases {
		rec, out := serve(t, s, tc.method, tc.path, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s %s: status %d, want %d", tc.method, tc.path, rec.Code, tc.status)
		}
		if out["error"] != tc.errMsg {
			t.Fatalf("%s %s: error %v, want %q", tc.method, tc.path, out["error"], tc.errMsg)
		}
	}

	rec, out := serve(t, s, http.MethodPost, "/echo", `{"name":"x"}`)
	if rec.Code != http.StatusOK || out["name"] != "x" {
		t.Fatalf("unexpected success response %d %v", rec.Code, out)
	}
}

func TestServerMetricsRoute(t *testing.T) {
	s := NewServer(routes{})
	_, _ = serve(t, s, http.MethodGet, "/missing", "")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !containsString(rec.Body.String(), "stockwatch_http_requests_total") {
		t.Fatalf("http metrics not exported")
	}
}

func TestServerCORSFollowsAllowedOrigins(t *testing.T) {
	s := NewServer(routes{}, WithMetrics(false), WithCORSOrigins([]string{"https://watch.example.com/"}))

	get := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/missing", nil)
		req.Header.Set(echo.HeaderOrigin, origin)
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		return rec
	}

	rec := get("https://watch.example.com")
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://watch.example.com" {
		t.Fatalf("allowed origin header = %q", got)
	}
	if rec.Header().Get(echo.HeaderVary) != echo.HeaderOrigin {
		t.Fatalf("vary header missing")
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("request must still reach the route: %d", rec.Code)
	}

	if got := get("https://evil.example.com").Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
	req.Header.Set(echo.HeaderOrigin, "https://watch.example.com")
	pre := httptest.NewRecorder()
	s.Echo().ServeHTTP(pre, req)
	if pre.Code != http.StatusNoContent || !containsString(pre.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost) {
		t.Fatalf("preflight: %d %v", pre.Code, pre.Header())
	}
}

func TestServerCORSWildcard(t *testing.T) {
	s := NewServer(routes{}, WithMetrics(false), WithCORSOrigins([]string{"*"}))
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Fatalf("wildcard origin header = %q", got)
	}
}

func TestHandlersRegistersEach(t *testing.T) {
	s := NewServer(Handlers{routes{}, nil}, WithMetrics(false), WithCORS(false))
	if rec, _ := serve(t, s, http.MethodGet, "/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	if rec, out := serve(t, s, http.MethodPost, "/echo", `{"name":"y"}`); rec.Code != http.StatusOK || out["name"] != "y" {
		t.Fatalf("echo route not registered: %d %v", rec.Code, out)
	}
}
