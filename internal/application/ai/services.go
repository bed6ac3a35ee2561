package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/skinsight/review-console/internal/domain/ai"
)

// ErrIssueRequired is returned when no detected issue was given.
var ErrIssueRequired = errors.New("skin issue description is missing")

// Service fronts the draft generator with a per (issue, choice) cache so that
// the same detected issue does not hit the provider for every review.
// Cached drafts are copied on the way in and out; no two callers share slices.
type Service struct {
	client ai.DraftGenerator
	cache  *gocache.Cache
}

// NewService wraps client. ttl <= 0 disables caching.
func NewService(client ai.DraftGenerator, ttl time.Duration) *Service {
	s := &Service{client: client}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

func cacheKey(issue string, choice ai.Choice) string {
	return strings.ToLower(strings.TrimSpace(issue)) + "|" + string(choice)
}

// Generate implements ai.DraftGenerator.
func (s *Service) Generate(ctx context.Context, issue string, choice ai.Choice) (ai.GeneratedDraft, error) {
	if strings.TrimSpace(issue) == "" {
		return ai.GeneratedDraft{}, ErrIssueRequired
	}
	key := cacheKey(issue, choice)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(ai.GeneratedDraft).Clone(), nil
		}
	}

	draft, err := s.client.Generate(ctx, issue, choice)
	if err != nil {
		return ai.GeneratedDraft{}, err
	}
	if s.cache != nil {
		s.cache.SetDefault(key, draft.Clone())
	}
	return draft, nil
}

// Unavailable is wired when no AI provider is configured; every review then
// starts with an empty draft for manual entry.
type Unavailable struct{}

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("ai provider not configured")

func (Unavailable) Generate(context.Context, string, ai.Choice) (ai.GeneratedDraft, error) {
	return ai.GeneratedDraft{}, ErrNotConfigured
}

// Forget drops the cached draft for (issue, choice) so the next Generate asks
// the provider again.
func (s *Service) Forget(issue string, choice ai.Choice) {
	if s.cache != nil {
		s.cache.Delete(cacheKey(issue, choice))
	}
}
