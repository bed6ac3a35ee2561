package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appai "github.com/skinsight/review-console/internal/application/ai"
	appauth "github.com/skinsight/review-console/internal/application/auth"
	appreview "github.com/skinsight/review-console/internal/application/review"
	appscans "github.com/skinsight/review-console/internal/application/scans"
	domai "github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
	"github.com/skinsight/review-console/internal/domain/operator"
	"github.com/skinsight/review-console/internal/infra/db/memory"
	"github.com/skinsight/review-console/internal/infra/storage"
	"github.com/skinsight/review-console/internal/logger"
	"github.com/skinsight/review-console/internal/middleware"
)

type staticGenerator struct{ calls atomic.Int32 }

func (g *staticGenerator) Generate(_ context.Context, issue string, _ domai.Choice) (domai.GeneratedDraft, error) {
	g.calls.Add(1)
	return domai.GeneratedDraft{
		RoutineSummary: "Routine for " + issue,
		Products:       []analysis.RecommendationItem{{Title: "BHA cleanser"}},
		Remedies:       []analysis.RecommendationItem{{Title: "Aloe"}},
	}, nil
}

// commitRepo fails VerifyBatch with verifyErr while it is set.
type commitRepo struct {
	*memory.AnalysisRepository
	mu        sync.Mutex
	verifyErr error
}

func (r *commitRepo) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifyErr = err
}

func (r *commitRepo) VerifyBatch(ctx context.Context, id analysis.AnalysisID, items []analysis.RecommendationItem, mv string) error {
	r.mu.Lock()
	err := r.verifyErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.AnalysisRepository.VerifyBatch(ctx, id, items, mv)
}

type testServer struct {
	h     http.Handler
	repo  *commitRepo
	gen   *staticGenerator
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Now()
	clock := fixedClock{now}
	log := logger.Nop()

	mem := memory.NewAnalysisRepository()
	repo := &commitRepo{AnalysisRepository: mem}
	repo.Put(analysis.Record{ID: 1, UserID: 1, DetectedIssue: "Acne", ImagePath: "uploads/scan_1.jpg", AnalysisDate: now})
	repo.Put(analysis.Record{ID: 2, UserID: 1, DetectedIssue: "Rosacea", ImagePath: "scan_2.jpg", AnalysisDate: now})
	repo.PutUser(1, "Oily")

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := &appauth.Service{
		Repo:   memory.NewOperatorRepository(operator.Operator{ID: 9, Name: "Ops", Email: "ops@skinsight.io", PasswordHash: string(hash)}),
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
		Clock:  clock,
	}
	images := storage.NewDir(t.TempDir())
	scans := &appscans.Service{Repo: repo, Images: images, Clock: clock, Log: log}
	static := &staticGenerator{}
	gen := appai.NewService(static, time.Minute)
	review := appreview.NewService(appreview.Options{
		Records:      scans,
		Repo:         repo,
		Generator:    gen,
		Clock:        clock,
		Log:          log,
		ModelVersion: "test-model",
	})
	scans.Reviews = review

	h := NewRouter(Deps{
		Scans:     scans,
		Review:    review,
		Generator: gen,
		Auth:      auth,
		Images:    images,
		Metrics:   middleware.NewMetrics(),
		Limiter:   middleware.NewRateLimiter(1000, 1000),
		Log:       log,
	})
	res, err := auth.Login(context.Background(), "ops@skinsight.io", "s3cret")
	require.NoError(t, err)
	return &testServer{h: h, repo: repo, gen: static, token: res.Token}
}

type response struct {
	Code   int
	Header http.Header
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	out := response{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return out
}

func decodeView(t *testing.T, r response) appreview.View {
	t.Helper()
	var v appreview.View
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.token = ""

	r := s.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "ops@skinsight.io", "password": "s3cret"})
	require.Equal(t, http.StatusOK, r.Code)
	var res appauth.LoginResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, "Ops", res.Operator.Name)
	assert.NotEmpty(t, res.Token)

	r = s.do(t, http.MethodPost, "/api/admin/login", map[string]string{"email": "ops@skinsight.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "invalid_credentials", r.Error.Code)

	r = s.do(t, http.MethodGet, "/api/admin/scans", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
}

func TestScans(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, http.MethodGet, "/api/admin/scans?status=pending", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var list []appscans.RecordView
	require.NoError(t, json.Unmarshal(r.Data, &list))
	assert.Len(t, list, 2)

	r = s.do(t, http.MethodGet, "/api/admin/scans?status=weird", nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = s.do(t, http.MethodGet, "/api/admin/scans/1", nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, string(r.Data), `"image_url":"/uploads/scan_1.jpg"`)

	r = s.do(t, http.MethodGet, "/api/admin/scans/404", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "not_found", r.Error.Code)

	r = s.do(t, http.MethodGet, "/api/admin/scans/abc", nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = s.do(t, http.MethodGet, "/api/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, string(r.Data), `"pending_reviews":2`)

	r = s.do(t, http.MethodDelete, "/api/admin/scans/2", nil)
	assert.Equal(t, http.StatusNoContent, r.Code)
	r = s.do(t, http.MethodDelete, "/api/admin/scans/2", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestGenerateRoutine(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, http.MethodPost, "/api/admin/generate-routine", map[string]string{"issue": "Acne", "choice": "Remedy"})
	require.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, string(r.Data), "Routine for Acne")

	r = s.do(t, http.MethodPost, "/api/admin/generate-routine", map[string]string{"issue": "Acne", "choice": "Remedy"})
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, int32(1), s.gen.calls.Load(), "second call served from cache")

	r = s.do(t, http.MethodPost, "/api/admin/generate-routine", map[string]any{"issue": "Acne", "choice": "Remedy", "refresh": true})
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, int32(2), s.gen.calls.Load())

	r = s.do(t, http.MethodPost, "/api/admin/generate-routine", map[string]string{"choice": "Remedy"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "invalid_request", r.Error.Code)

	r = s.do(t, http.MethodPost, "/api/admin/generate-routine", map[string]string{"issue": "Acne", "choice": "Pill"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
}

func TestReviewFlow(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, http.MethodPost, "/api/admin/reviews", map[string]int{"analysis_id": 1})
	require.Equal(t, http.StatusCreated, r.Code)
	sid := decodeView(t, r).SessionID
	require.NotEmpty(t, sid)
	base := "/api/admin/reviews/" + sid

	r = s.do(t, http.MethodGet, base+"?wait=2s", nil)
	require.Equal(t, http.StatusOK, r.Code)
	v := decodeView(t, r)
	require.Equal(t, "draft_editable", string(v.State))
	assert.Equal(t, "Routine for Acne", v.Draft.Summary)
	assert.Equal(t, "Ops", v.OpenedBy.Name)

	r = s.do(t, http.MethodPost, base+"/items/products", map[string]string{"title": "SPF 50", "link": "https://example.org/spf"})
	require.Equal(t, http.StatusCreated, r.Code)
	assert.Len(t, decodeView(t, r).Draft.Products, 2)

	r = s.do(t, http.MethodPost, base+"/items/remedies", map[string]string{"title": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, r.Code)
	assert.Equal(t, "validation_failed", r.Error.Code)

	r = s.do(t, http.MethodPatch, base+"/items/product/0", map[string]string{"description": "2% BHA"})
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "2% BHA", decodeView(t, r).Draft.Products[0].Description)

	r = s.do(t, http.MethodDelete, base+"/items/remedy/0", nil)
	require.Equal(t, http.StatusOK, r.Code)
	assert.Empty(t, decodeView(t, r).Draft.Remedies)

	r = s.do(t, http.MethodDelete, base+"/items/remedy/0", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, r.Code)

	r = s.do(t, http.MethodPut, base+"/summary", map[string]string{"routine_summary": "AM: cleanse"})
	require.Equal(t, http.StatusOK, r.Code)

	r = s.do(t, http.MethodPost, base+"/verify", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var res appreview.VerifyResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, "verified", string(res.View.State))
	require.Len(t, res.Batch, 3)
	assert.Equal(t, "AM: cleanse", res.Batch[0].Description)

	r = s.do(t, http.MethodPost, base+"/verify", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "session_not_found", r.Error.Code)

	r = s.do(t, http.MethodGet, "/api/admin/scans/1/recommendations", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var recs []analysis.StoredRecommendation
	require.NoError(t, json.Unmarshal(r.Data, &recs))
	assert.Len(t, recs, 3)

	// reopening a reviewed record is read-only
	r = s.do(t, http.MethodPost, "/api/admin/reviews", map[string]int{"analysis_id": 1})
	require.Equal(t, http.StatusOK, r.Code)
	v = decodeView(t, r)
	assert.Equal(t, "verified", string(v.State))
	assert.Equal(t, "AM: cleanse", v.Draft.Summary)
}

func TestReview_OpenUnknownAndAbandon(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, http.MethodPost, "/api/admin/reviews", map[string]int{"analysis_id": 77})
	assert.Equal(t, http.StatusNotFound, r.Code)

	r = s.do(t, http.MethodPost, "/api/admin/reviews", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = s.do(t, http.MethodPost, "/api/admin/reviews", map[string]int{"analysis_id": 2})
	require.Equal(t, http.StatusCreated, r.Code)
	sid := decodeView(t, r).SessionID

	r = s.do(t, http.MethodDelete, "/api/admin/reviews/"+sid, nil)
	assert.Equal(t, http.StatusNoContent, r.Code)
	r = s.do(t, http.MethodGet, "/api/admin/reviews/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)

	rec, err := s.repo.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, rec.IsReviewed)
}

func TestLegacyVerify(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, http.MethodPut, "/api/admin/verify-scan/2", map[string]string{"recommendation": "Use SPF daily", "type": "Product"})
	require.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "true", r.Header.Get("Deprecation"))
	assert.Contains(t, string(r.Data), "Expert Advice for Rosacea")

	r = s.do(t, http.MethodPut, "/api/admin/verify-scan/2", map[string]string{"recommendation": "again"})
	assert.Equal(t, http.StatusConflict, r.Code)
	assert.Equal(t, "already_reviewed", r.Error.Code)
}

func TestImagePlaceholder(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/uploads/missing.jpg", nil)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func openDraft(t *testing.T, s *testServer, id int) string {
	t.Helper()
	r := s.do(t, http.MethodPost, "/api/admin/reviews", map[string]int{"analysis_id": id})
	require.Equal(t, http.StatusCreated, r.Code)
	sid := decodeView(t, r).SessionID
	r = s.do(t, http.MethodGet, "/api/admin/reviews/"+sid+"?wait=2s", nil)
	require.Equal(t, http.StatusOK, r.Code)
	require.Equal(t, "draft_editable", string(decodeView(t, r).State))
	return sid
}

func TestReview_SubmissionFailureKeepsDraft(t *testing.T) {
	s := newTestServer(t)
	sid := openDraft(t, s, 1)
	base := "/api/admin/reviews/" + sid

	s.repo.failWith(errors.New("connection reset"))
	r := s.do(t, http.MethodPost, base+"/verify", nil)
	assert.Equal(t, http.StatusBadGateway, r.Code)
	assert.Equal(t, "submission_failed", r.Error.Code)

	r = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, r.Code)
	v := decodeView(t, r)
	assert.Equal(t, "submit_failed", string(v.State))
	assert.Equal(t, "Routine for Acne", v.Draft.Summary)
	assert.Len(t, v.Draft.Products, 1)
	assert.NotEmpty(t, v.SubmissionError)

	s.repo.failWith(nil)
	r = s.do(t, http.MethodPost, base+"/verify", nil)
	assert.Equal(t, http.StatusOK, r.Code)
}

func TestReview_CommitLostToOtherWriterIsConflict(t *testing.T) {
	s := newTestServer(t)
	sid := openDraft(t, s, 1)

	s.repo.failWith(analysis.ErrAlreadyReviewed)
	r := s.do(t, http.MethodPost, "/api/admin/reviews/"+sid+"/verify", nil)
	assert.Equal(t, http.StatusConflict, r.Code)
	assert.Equal(t, "already_reviewed", r.Error.Code)
}

func TestDeleteScan_DiscardsOpenReview(t *testing.T) {
	s := newTestServer(t)
	sid := openDraft(t, s, 2)

	r := s.do(t, http.MethodDelete, "/api/admin/scans/2", nil)
	require.Equal(t, http.StatusNoContent, r.Code)

	r = s.do(t, http.MethodGet, "/api/admin/reviews/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "session_not_found", r.Error.Code)
}
