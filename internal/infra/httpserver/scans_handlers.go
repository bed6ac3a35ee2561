package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domai "github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
	"github.com/skinsight/review-console/internal/infra/storage"
	"github.com/skinsight/review-console/internal/middleware"
)

// POST /api/admin/login
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password" validate:"required"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	email := body.Email
	if email == "" {
		email = body.Username
	}
	if strings.TrimSpace(email) == "" {
		return &middleware.RequestValidationError{Fields: []middleware.FieldError{{Field: "email", Message: "field is required"}}}
	}
	res, err := r.Auth.Login(req.Context(), email, body.Password)
	if err != nil {
		return err
	}
	r.Log.Info().Int64("operator_id", res.Operator.ID).Msg("operator logged in")
	return writeData(w, http.StatusOK, res)
}

// GET /api/admin/dashboard
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	d, err := r.Scans.Dashboard(req.Context())
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, d)
}

// GET /api/admin/scans?status=pending|reviewed
func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) error {
	var filter analysis.ReviewFilter
	switch s := strings.ToLower(req.URL.Query().Get("status")); s {
	case "", "all":
		filter = analysis.FilterAll
	case "pending":
		filter = analysis.FilterPending
	case "reviewed":
		filter = analysis.FilterReviewed
	default:
		return badRequestf("unknown status filter %q", s)
	}
	list, err := r.Scans.List(req.Context(), filter)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, list)
}

// GET /api/admin/scans/{id}
func (r *Router) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	v, err := r.Scans.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, v)
}

// GET /api/admin/scans/{id}/recommendations
func (r *Router) handleRecommendations(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	recs, err := r.Scans.Recommendations(req.Context(), id)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, recs)
}

// DELETE /api/admin/scans/{id}
func (r *Router) handleDeleteScan(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	if err := r.Scans.Delete(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /api/admin/generate-routine
// Body: {"issue": "Acne", "choice": "Remedy", "refresh": false}
// refresh skips the cached draft and asks the provider again.
func (r *Router) handleGenerate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Issue   string `json:"issue" validate:"required,max=200"`
		Choice  string `json:"choice" validate:"omitempty,category"`
		Refresh bool   `json:"refresh"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	choice := domai.ChoiceAll
	if cat, ok := analysis.ParseCategory(body.Choice); ok {
		choice = domai.Choice(cat)
	}
	issue := middleware.SanitizeString(body.Issue)
	if body.Refresh {
		r.Generator.Forget(issue, choice)
	}
	d, err := r.Generator.Generate(req.Context(), issue, choice)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, d)
}

// GET /uploads/{filename}; a missing image falls back to the placeholder.
func (r *Router) handleImage(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "filename")
	if err := middleware.ValidateImageName(name); err == nil && r.Images != nil {
		rc, ct, err := r.Images.Open(req.Context(), name)
		if err == nil {
			defer rc.Close()
			w.Header().Set("Content-Type", ct)
			w.Header().Set("Cache-Control", "private, max-age=300")
			_, _ = io.Copy(w, rc)
			return
		}
		if !errors.Is(err, analysis.ErrImageNotFound) {
			r.Log.Warn().Err(err).Str("filename", name).Msg("image store read failed")
		}
	}
	body, ct := storage.Placeholder()
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
