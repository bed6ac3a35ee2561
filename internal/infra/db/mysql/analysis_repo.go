package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const recordColumns = `
analysis_id, user_id,
COALESCE(scan_type, '') AS scan_type,
COALESCE(detected_issue, '') AS detected_issue,
COALESCE(confidence_score, 0) AS confidence_score,
image_path, analysis_date,
COALESCE(is_reviewed, FALSE) AS is_reviewed`

// List records, newest first
func (r *AnalysisRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]*domain.Record, error) {
	q := `SELECT` + recordColumns + ` FROM skin_analysis`
	switch filter {
	case domain.FilterPending:
		q += ` WHERE is_reviewed = FALSE`
	case domain.FilterReviewed:
		q += ` WHERE is_reviewed = TRUE`
	}
	q += ` ORDER BY analysis_date DESC, analysis_id DESC`

	out := []*domain.Record{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list skin_analysis: %w", err)
	}
	return out, nil
}

// Get by ID
func (r *AnalysisRepository) Get(ctx context.Context, id domain.AnalysisID) (*domain.Record, error) {
	q := `SELECT` + recordColumns + ` FROM skin_analysis WHERE analysis_id = ? LIMIT 1`
	var rec domain.Record
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// Delete removes the record together with its recommendations.
func (r *AnalysisRepository) Delete(ctx context.Context, id domain.AnalysisID) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE analysis_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM skin_analysis WHERE analysis_id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// VerifyBatch inserts every item and marks the record reviewed, all or nothing.
// The record row is locked first so two concurrent commits cannot both pass
// the is_reviewed check.
func (r *AnalysisRepository) VerifyBatch(ctx context.Context, id domain.AnalysisID, items []domain.RecommendationItem, modelVersion string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var reviewed bool
		err := tx.GetContext(ctx, &reviewed,
			`SELECT COALESCE(is_reviewed, FALSE) FROM skin_analysis WHERE analysis_id = ? FOR UPDATE`, id)
		if err != nil {
			return notFound(err)
		}
		if reviewed {
			return domain.ErrAlreadyReviewed
		}

		const ins = `
INSERT INTO recommendations
(analysis_id, type, model_version, title, description, link, admin_status)
VALUES (?,?,?,?,?,?,?)`
		mv := stringOrDash(modelVersion)
		for i, it := range items {
			if _, err := tx.ExecContext(ctx, ins,
				id, string(it.Type), mv, it.Title, it.Description, it.Link, string(domain.AdminStatusVerified),
			); err != nil {
				return fmt.Errorf("insert recommendation %d: %w", i, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE skin_analysis SET is_reviewed = TRUE WHERE analysis_id = ?`, id); err != nil {
			return fmt.Errorf("mark reviewed: %w", err)
		}
		return nil
	})
}

// Recommendations returns committed history in insertion order.
func (r *AnalysisRepository) Recommendations(ctx context.Context, id domain.AnalysisID) ([]*domain.StoredRecommendation, error) {
	const q = `
SELECT rec_id, analysis_id, type, model_version, title,
       COALESCE(description, '') AS description,
       COALESCE(link, '') AS link,
       COALESCE(admin_status, 'Pending') AS admin_status,
       created_at
FROM recommendations
WHERE analysis_id = ?
ORDER BY rec_id ASC`
	out := []*domain.StoredRecommendation{}
	if err := r.db.SelectContext(ctx, &out, q, id); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats counts for the dashboard cards; "today" is [day 00:00, +24h) in day's location.
func (r *AnalysisRepository) Stats(ctx context.Context, day time.Time) (domain.Stats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	const q = `
SELECT
  (SELECT COUNT(*) FROM users) AS total_users,
  (SELECT COUNT(*) FROM skin_analysis) AS total_scans,
  (SELECT COUNT(*) FROM skin_analysis WHERE is_reviewed = FALSE) AS pending_reviews,
  (SELECT COUNT(*) FROM skin_analysis WHERE analysis_date >= ? AND analysis_date < ?) AS todays_scans`
	var st domain.Stats
	row := r.db.QueryRowxContext(ctx, q, start, start.Add(24*time.Hour))
	if err := row.Scan(&st.TotalUsers, &st.TotalScans, &st.PendingReviews, &st.TodaysScans); err != nil {
		return domain.Stats{}, err
	}
	return st, nil
}

func (r *AnalysisRepository) IssueBreakdown(ctx context.Context) ([]domain.Bucket, error) {
	const q = `
SELECT COALESCE(detected_issue, '') AS name, COUNT(*) AS count
FROM skin_analysis
GROUP BY detected_issue
ORDER BY name`
	out := []domain.Bucket{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnalysisRepository) SkinTypeBreakdown(ctx context.Context) ([]domain.Bucket, error) {
	const q = `
SELECT COALESCE(skin_type, '') AS name, COUNT(*) AS count
FROM users
GROUP BY skin_type
ORDER BY name`
	out := []domain.Bucket{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}
