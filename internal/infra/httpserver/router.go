package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appai "github.com/skinsight/review-console/internal/application/ai"
	appauth "github.com/skinsight/review-console/internal/application/auth"
	appreview "github.com/skinsight/review-console/internal/application/review"
	appscans "github.com/skinsight/review-console/internal/application/scans"
	domai "github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
	"github.com/skinsight/review-console/internal/domain/operator"
	domreview "github.com/skinsight/review-console/internal/domain/review"
	"github.com/skinsight/review-console/internal/middleware"
)

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Scans     *appscans.Service
	Review    *appreview.Service
	Generator *appai.Service
	Auth      *appauth.Service
	Images    analysis.ImageStore

	Metrics        *middleware.Metrics
	Limiter        *middleware.RateLimiter
	Health         map[string]middleware.HealthChecker
	AllowedOrigins []string
	Log            zerolog.Logger
}

type Router struct {
	Deps
	validate *middleware.Validator
}

func NewRouter(d Deps) http.Handler {
	r := &Router{Deps: d, validate: middleware.NewValidator()}
	mux := chi.NewRouter()

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware(d.Log))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Deprecation"},
		MaxAge:         300,
	}))

	health := middleware.HealthHandler(d.Health)
	mux.Get("/health", health)
	mux.Get("/readyz", health)
	mux.Get("/healthz", middleware.LivenessHandler)
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}
	mux.Get("/uploads/{filename}", r.handleImage)

	mux.Route("/api/admin", func(rt chi.Router) {
		// login is limited per IP, everything else per operator
		rt.With(r.limit).Post("/login", r.wrap(r.handleLogin))

		rt.Group(func(rt chi.Router) {
			rt.Use(middleware.JWTAuth(d.Auth), r.limit)

			rt.Get("/dashboard", r.wrap(r.handleDashboard))
			rt.Get("/scans", r.wrap(r.handleListScans))
			rt.Get("/scans/{id}", r.wrap(r.handleGetScan))
			rt.Get("/scans/{id}/recommendations", r.wrap(r.handleRecommendations))
			rt.Delete("/scans/{id}", r.wrap(r.handleDeleteScan))
			rt.Post("/generate-routine", r.wrap(r.handleGenerate))

			rt.Post("/reviews", r.wrap(r.handleOpenReview))
			rt.Route("/reviews/{sid}", func(rt chi.Router) {
				rt.Get("/", r.wrap(r.handleGetReview))
				rt.Delete("/", r.wrap(r.handleAbandon))
				rt.Put("/summary", r.wrap(r.handleSetSummary))
				rt.Post("/items/{category}", r.wrap(r.handleAddItem))
				rt.Patch("/items/{category}/{index}", r.wrap(r.handleEditItem))
				rt.Delete("/items/{category}/{index}", r.wrap(r.handleRemoveItem))
				rt.Post("/verify", r.wrap(r.handleVerify))
			})

			rt.Put("/verify-scan/{id}", r.wrap(r.handleLegacyVerify))
		})
	})

	return mux
}

func (r *Router) limit(next http.Handler) http.Handler {
	if r.Limiter == nil {
		return next
	}
	return middleware.RateLimitMiddleware(r.Limiter)(next)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks malformed input (body, path or query).
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func badRequestf(format string, args ...any) error {
	return badRequest{fmt.Errorf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.writeErr(w, req, err)
		}
	}
}

func (r *Router) writeErr(w http.ResponseWriter, req *http.Request, err error) {
	var (
		reqErr  *middleware.RequestValidationError
		valErr  *domreview.ValidationError
		subErr  *domreview.SubmissionError
		genErr  *domreview.GenerationError
		badReq  badRequest
		status  int
		code    string
		message = err.Error()
		fields  any
	)
	switch {
	case errors.As(err, &reqErr):
		status, code, fields = http.StatusBadRequest, "invalid_request", reqErr.Fields
	case errors.As(err, &badReq):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, appai.ErrIssueRequired):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.As(err, &valErr):
		status, code = http.StatusUnprocessableEntity, "validation_failed"
		fields = []middleware.FieldError{{Field: valErr.Field, Message: valErr.Reason}}
	case errors.Is(err, operator.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, domreview.ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, analysis.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	// before subErr: a commit lost to another writer is a conflict
	case errors.Is(err, analysis.ErrAlreadyReviewed):
		status, code = http.StatusConflict, "already_reviewed"
	case errors.Is(err, domreview.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, appai.ErrNotConfigured):
		status, code = http.StatusServiceUnavailable, "ai_unavailable"
	case errors.Is(err, domai.ErrQuotaExceeded):
		status, code = http.StatusTooManyRequests, "ai_quota_exceeded"
	case errors.As(err, &subErr):
		status, code = http.StatusBadGateway, "submission_failed"
	case errors.As(err, &genErr), errors.Is(err, domai.ErrEmptyResponse):
		status, code = http.StatusBadGateway, "generation_failed"
	default:
		status, code, message = http.StatusInternalServerError, "internal", "internal server error"
	}
	if status >= 500 {
		r.Log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
	}
	middleware.WriteJSON(w, status, middleware.ErrorBody{Error: middleware.ErrorDetail{
		Code: code, Message: message, Fields: fields,
	}})
}

type envelope struct {
	Data any `json:"data"`
}

func writeData(w http.ResponseWriter, status int, v any) error {
	middleware.WriteJSON(w, status, envelope{Data: v})
	return nil
}

// decode reads a JSON body (max 1 MiB) into dst and validates its tags.
func (r *Router) decode(w http.ResponseWriter, req *http.Request, dst any) error {
	req.Body = http.MaxBytesReader(w, req.Body, 1<<20)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return badRequestf("invalid JSON body: %v", err)
	}
	return r.validate.Struct(dst)
}

func currentOperator(req *http.Request) operator.Identity {
	id, _ := middleware.OperatorFromContext(req.Context())
	return id
}

func pathID(req *http.Request) (analysis.AnalysisID, error) {
	id, err := middleware.ParseAnalysisID(chi.URLParam(req, "id"))
	if err != nil {
		return 0, badRequest{err}
	}
	return id, nil
}

func pathCategory(req *http.Request) (analysis.Category, error) {
	cat, ok := analysis.ParseCategory(chi.URLParam(req, "category"))
	if !ok {
		return "", badRequestf("unknown category %q", chi.URLParam(req, "category"))
	}
	return cat, nil
}
