package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinsight/review-console/internal/domain/operator"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (operator.Identity, error) {
	if token == "good" {
		return operator.Identity{ID: 3, Name: "Ops"}, nil
	}
	return operator.Identity{}, errors.New("bad token")
}

func echoOperator() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := OperatorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(id.Name))
	})
}

func TestJWTAuth(t *testing.T) {
	h := JWTAuth(stubVerifier{})(echoOperator())

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token good", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/scans", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.header)
		if tc.status == http.StatusOK {
			assert.Equal(t, "Ops", rec.Body.String())
		} else {
			assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Hour)
	assert.Equal(t, 0, rl.Sweep(2*time.Hour))
	assert.Equal(t, 2, rl.Sweep(time.Minute))
}

func TestRateLimitMiddleware_KeysByOperator(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(ctx context.Context) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	alice := WithOperator(context.Background(), operator.Identity{ID: 1})
	bob := WithOperator(context.Background(), operator.Identity{ID: 2})

	assert.Equal(t, http.StatusOK, do(alice))
	assert.Equal(t, http.StatusTooManyRequests, do(alice))
	assert.Equal(t, http.StatusOK, do(bob))
}

func TestMetrics_CountsByRoute(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/scans/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scans/7", nil))
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed("verified")
	m.Generation("success")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	assert.Contains(t, out, `http_requests_total{method="GET",route="/scans/{id}",status="404"} 1`)
	assert.Contains(t, out, "review_sessions_active 1")
	assert.Contains(t, out, `review_sessions_closed_total{reason="verified"} 1`)
	assert.Contains(t, out, `review_generations_total{outcome="success"} 1`)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	log := zerolog.New(&buf)
	h := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/admin/reviews", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/admin/reviews"`)
	assert.Contains(t, out, `"bytes":2`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"database": CheckFunc(func(context.Context) error { return nil }),
		"storage":  CheckFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket missing")
}

type addItemReq struct {
	Title string `json:"title" validate:"required,max=255"`
	Type  string `json:"type" validate:"required,category"`
	Link  string `json:"link" validate:"omitempty,weblink"`
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Struct(addItemReq{Title: "BHA", Type: "products"}))

	err := v.Struct(addItemReq{Type: "pill", Link: "ftp://x"})
	var ve *RequestValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "field is required", fields["title"])
	assert.Equal(t, "must be Product or Remedy", fields["type"])
	assert.Equal(t, "must be an http(s) URL", fields["link"])
}

func TestPathHelpers(t *testing.T) {
	id, err := ParseAnalysisID("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	_, err = ParseAnalysisID("-1")
	assert.Error(t, err)
	_, err = ParseIndex("x")
	assert.Error(t, err)

	assert.NoError(t, ValidateImageName("scan_1.jpg"))
	assert.Error(t, ValidateImageName("../secret"))
	assert.Equal(t, "ab", SanitizeString(" a\x00b\x07 "))
}
