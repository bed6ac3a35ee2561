package scans

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skinsight/review-console/internal/application"
	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

// Service implements the read side of analysis records plus the admin delete.
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Repo    domain.Repository
	Images  domain.ImageStore
	Reviews OpenReviews // optional
	Clock   application.Clock
	Log     zerolog.Logger
}

// OpenReviews lets Delete close the review session of a record it removes.
type OpenReviews interface {
	DiscardRecord(id domain.AnalysisID) error
}

// RecordView is a record plus its resolved image location.
type RecordView struct {
	*domain.Record
	ImageURL string `json:"image_url"`
}

// Dashboard aggregates shown on the admin landing page.
type Dashboard struct {
	Stats  domain.Stats `json:"stats"`
	Charts struct {
		SkinTypes  []domain.Bucket `json:"skinTypes"`
		SkinIssues []domain.Bucket `json:"skinIssues"`
	} `json:"charts"`
}

func (s *Service) view(r *domain.Record) RecordView {
	v := RecordView{Record: r}
	if s.Images != nil {
		v.ImageURL = s.Images.URL(domain.ImageFilename(r.ImagePath))
	}
	return v
}

// List records, newest first.
func (s *Service) List(ctx context.Context, filter domain.ReviewFilter) ([]RecordView, error) {
	recs, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	out := make([]RecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.view(r))
	}
	return out, nil
}

// Get ambil 1 record by id. Unknown ids return domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id domain.AnalysisID) (RecordView, error) {
	r, err := s.Lookup(ctx, id)
	if err != nil {
		return RecordView{}, err
	}
	return s.view(r), nil
}

// Lookup is the raw record read used by the review workflow.
func (s *Service) Lookup(ctx context.Context, id domain.AnalysisID) (*domain.Record, error) {
	r, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("analysis %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// Recommendations returns the committed history of a record.
func (s *Service) Recommendations(ctx context.Context, id domain.AnalysisID) ([]*domain.StoredRecommendation, error) {
	if _, err := s.Lookup(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.Recommendations(ctx, id)
}

// Delete removes a record and its recommendations. An open review session of
// the record is discarded first; a session that is submitting blocks the delete.
func (s *Service) Delete(ctx context.Context, id domain.AnalysisID) error {
	if s.Reviews != nil {
		if err := s.Reviews.DiscardRecord(id); err != nil {
			return fmt.Errorf("delete analysis %d: %w", id, err)
		}
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Log.Info().Int64("analysis_id", int64(id)).Msg("analysis record deleted")
	return nil
}

// Dashboard rekap statistik untuk halaman utama
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	stats, err := s.Repo.Stats(ctx, s.Clock.Now())
	if err != nil {
		return d, fmt.Errorf("dashboard stats: %w", err)
	}
	d.Stats = stats

	if d.Charts.SkinTypes, err = s.Repo.SkinTypeBreakdown(ctx); err != nil {
		return d, fmt.Errorf("skin type breakdown: %w", err)
	}
	if d.Charts.SkinIssues, err = s.Repo.IssueBreakdown(ctx); err != nil {
		return d, fmt.Errorf("issue breakdown: %w", err)
	}
	for i := range d.Charts.SkinTypes {
		if d.Charts.SkinTypes[i].Name == "" {
			d.Charts.SkinTypes[i].Name = "Other"
		}
	}
	return d, nil
}
