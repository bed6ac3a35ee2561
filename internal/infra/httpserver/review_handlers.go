package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appreview "github.com/skinsight/review-console/internal/application/review"
	"github.com/skinsight/review-console/internal/domain/analysis"
	domreview "github.com/skinsight/review-console/internal/domain/review"
	"github.com/skinsight/review-console/internal/middleware"
)

const maxWait = 30 * time.Second

// POST /api/admin/reviews
// Body: {"analysis_id": 42}
func (r *Router) handleOpenReview(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		AnalysisID int64 `json:"analysis_id" validate:"required,gt=0"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	v, err := r.Review.Open(req.Context(), analysis.AnalysisID(body.AnalysisID), currentOperator(req))
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if v.SessionID == "" {
		status = http.StatusOK
	}
	return writeData(w, status, v)
}

// GET /api/admin/reviews/{sid}?wait=10s long-polls until the draft is ready.
func (r *Router) handleGetReview(w http.ResponseWriter, req *http.Request) error {
	sid := chi.URLParam(req, "sid")
	raw := req.URL.Query().Get("wait")
	if raw == "" {
		v, err := r.Review.Get(sid)
		if err != nil {
			return err
		}
		return writeData(w, http.StatusOK, v)
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return badRequestf("invalid wait %q", raw)
	}
	if wait > maxWait {
		wait = maxWait
	}
	ctx, cancel := context.WithTimeout(req.Context(), wait)
	defer cancel()
	v, err := r.Review.AwaitDraft(ctx, sid)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, v)
}

// DELETE /api/admin/reviews/{sid}
func (r *Router) handleAbandon(w http.ResponseWriter, req *http.Request) error {
	if err := r.Review.Abandon(chi.URLParam(req, "sid")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// PUT /api/admin/reviews/{sid}/summary
// Body: {"routine_summary": "..."}
func (r *Router) handleSetSummary(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Summary *string `json:"routine_summary" validate:"required"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	v, err := r.Review.SetSummary(chi.URLParam(req, "sid"), *body.Summary)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, v)
}

// POST /api/admin/reviews/{sid}/items/{category}
func (r *Router) handleAddItem(w http.ResponseWriter, req *http.Request) error {
	cat, err := pathCategory(req)
	if err != nil {
		return err
	}
	var body struct {
		Title       string `json:"title" validate:"max=255"`
		Description string `json:"description"`
		Link        string `json:"link" validate:"omitempty,max=255,weblink"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	v, err := r.Review.AddItem(chi.URLParam(req, "sid"), cat, body.Title, body.Description, body.Link)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusCreated, v)
}

// PATCH /api/admin/reviews/{sid}/items/{category}/{index}
func (r *Router) handleEditItem(w http.ResponseWriter, req *http.Request) error {
	cat, err := pathCategory(req)
	if err != nil {
		return err
	}
	idx, err := middleware.ParseIndex(chi.URLParam(req, "index"))
	if err != nil {
		return badRequest{err}
	}
	var body struct {
		Title       *string `json:"title" validate:"omitempty,max=255"`
		Description *string `json:"description"`
		Link        *string `json:"link" validate:"omitempty,max=255,weblink"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	v, err := r.Review.EditItem(chi.URLParam(req, "sid"), cat, idx, domreview.ItemFields{
		Title:       body.Title,
		Description: body.Description,
		Link:        body.Link,
	})
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, v)
}

// DELETE /api/admin/reviews/{sid}/items/{category}/{index}
func (r *Router) handleRemoveItem(w http.ResponseWriter, req *http.Request) error {
	cat, err := pathCategory(req)
	if err != nil {
		return err
	}
	idx, err := middleware.ParseIndex(chi.URLParam(req, "index"))
	if err != nil {
		return badRequest{err}
	}
	v, err := r.Review.RemoveItem(chi.URLParam(req, "sid"), cat, idx)
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, v)
}

// POST /api/admin/reviews/{sid}/verify
func (r *Router) handleVerify(w http.ResponseWriter, req *http.Request) error {
	res, err := r.Review.Verify(req.Context(), chi.URLParam(req, "sid"), currentOperator(req))
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, res)
}

// PUT /api/admin/verify-scan/{id}
// Deprecated: open a review and POST .../verify instead.
func (r *Router) handleLegacyVerify(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	var body struct {
		Recommendation string `json:"recommendation"`
		Type           string `json:"type" validate:"omitempty,category"`
		Link           string `json:"link" validate:"omitempty,max=255,weblink"`
	}
	if req.ContentLength != 0 {
		if err := r.decode(w, req, &body); err != nil {
			return err
		}
	}
	typ, _ := analysis.ParseCategory(body.Type)
	w.Header().Set("Deprecation", "true")
	batch, err := r.Review.VerifySingle(req.Context(), id, appreview.LegacyRecommendation{
		Recommendation: body.Recommendation,
		Type:           typ,
		Link:           body.Link,
	}, currentOperator(req))
	if err != nil {
		return err
	}
	return writeData(w, http.StatusOK, map[string]any{"analysis_id": id, "recommendations": batch})
}
