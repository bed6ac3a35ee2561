package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

// AnalysisRepository keeps records in process memory. It backs the "memory"
// database driver used for local runs and tests.
type AnalysisRepository struct {
	mu        sync.RWMutex
	records   map[domain.AnalysisID]*domain.Record
	recs      map[domain.AnalysisID][]*domain.StoredRecommendation
	skinTypes map[int64]string
	nextRecID int64
	now       func() time.Time
}

func NewAnalysisRepository() *AnalysisRepository {
	return &AnalysisRepository{
		records:   make(map[domain.AnalysisID]*domain.Record),
		recs:      make(map[domain.AnalysisID][]*domain.StoredRecommendation),
		skinTypes: make(map[int64]string),
		now:       time.Now,
	}
}

// Put inserts or replaces a record (the ingestion side, outside the workflow).
func (r *AnalysisRepository) Put(rec domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := rec
	r.records[rec.ID] = &cp
}

// PutUser registers a user's skin type for the dashboard breakdown.
func (r *AnalysisRepository) PutUser(userID int64, skinType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skinTypes[userID] = skinType
}

func (r *AnalysisRepository) List(_ context.Context, filter domain.ReviewFilter) ([]*domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Record, 0, len(r.records))
	for _, rec := range r.records {
		if filter == domain.FilterPending && rec.IsReviewed {
			continue
		}
		if filter == domain.FilterReviewed && !rec.IsReviewed {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnalysisDate.Equal(out[j].AnalysisDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].AnalysisDate.After(out[j].AnalysisDate)
	})
	return out, nil
}

func (r *AnalysisRepository) Get(_ context.Context, id domain.AnalysisID) (*domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *AnalysisRepository) Delete(_ context.Context, id domain.AnalysisID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	delete(r.recs, id)
	return nil
}

// VerifyBatch is all-or-nothing under the write lock.
func (r *AnalysisRepository) VerifyBatch(_ context.Context, id domain.AnalysisID, items []domain.RecommendationItem, modelVersion string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.IsReviewed {
		return domain.ErrAlreadyReviewed
	}
	now := r.now()
	if strings.TrimSpace(modelVersion) == "" {
		modelVersion = "-"
	}
	rows := make([]*domain.StoredRecommendation, 0, len(items))
	for _, it := range items {
		r.nextRecID++
		rows = append(rows, &domain.StoredRecommendation{
			ID:           r.nextRecID,
			AnalysisID:   id,
			Type:         it.Type,
			ModelVersion: modelVersion,
			Title:        it.Title,
			Description:  it.Description,
			Link:         it.Link,
			AdminStatus:  domain.AdminStatusVerified,
			CreatedAt:    now,
		})
	}
	r.recs[id] = append(r.recs[id], rows...)
	rec.IsReviewed = true
	return nil
}

func (r *AnalysisRepository) Recommendations(_ context.Context, id domain.AnalysisID) ([]*domain.StoredRecommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.StoredRecommendation, 0, len(r.recs[id]))
	for _, s := range r.recs[id] {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AnalysisRepository) Stats(_ context.Context, day time.Time) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := domain.Stats{TotalUsers: len(r.skinTypes), TotalScans: len(r.records)}
	y, m, d := day.Date()
	for _, rec := range r.records {
		if !rec.IsReviewed {
			st.PendingReviews++
		}
		ry, rm, rd := rec.AnalysisDate.In(day.Location()).Date()
		if ry == y && rm == m && rd == d {
			st.TodaysScans++
		}
	}
	return st, nil
}

func (r *AnalysisRepository) IssueBreakdown(_ context.Context) ([]domain.Bucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[string]int{}
	for _, rec := range r.records {
		counts[rec.DetectedIssue]++
	}
	return buckets(counts), nil
}

func (r *AnalysisRepository) SkinTypeBreakdown(_ context.Context) ([]domain.Bucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[string]int{}
	for _, st := range r.skinTypes {
		counts[st]++
	}
	return buckets(counts), nil
}

func buckets(counts map[string]int) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(counts))
	for name, n := range counts {
		out = append(out, domain.Bucket{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
