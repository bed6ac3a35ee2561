package analysis

import (
	"context"
	"io"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	List(ctx context.Context, filter ReviewFilter) ([]*Record, error)
	Get(ctx context.Context, id AnalysisID) (*Record, error)
	Delete(ctx context.Context, id AnalysisID) error

	// VerifyBatch stores every item and flips is_reviewed in one transaction.
	// It returns ErrAlreadyReviewed when the record was verified in the meantime.
	VerifyBatch(ctx context.Context, id AnalysisID, items []RecommendationItem, modelVersion string) error
	Recommendations(ctx context.Context, id AnalysisID) ([]*StoredRecommendation, error)

	// dashboard
	Stats(ctx context.Context, day time.Time) (Stats, error)
	IssueBreakdown(ctx context.Context) ([]Bucket, error)
	SkinTypeBreakdown(ctx context.Context) ([]Bucket, error)
}

// ImageStore port for scan images, addressed by file name
type ImageStore interface {
	Open(ctx context.Context, filename string) (io.ReadCloser, string, error)
	URL(filename string) string
}
