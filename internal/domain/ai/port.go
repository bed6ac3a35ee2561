package ai

import (
	"context"

	"github.com/skinsight/review-console/internal/domain/analysis"
)

// Choice narrows what the generator focuses on.
type Choice string

const (
	ChoiceAll     Choice = ""
	ChoiceProduct Choice = "Product"
	ChoiceRemedy  Choice = "Remedy"
)

// GeneratedDraft is the structured output of the recommendation generator.
type GeneratedDraft struct {
	RoutineSummary string                        `json:"routine_summary"`
	Products       []analysis.RecommendationItem `json:"products"`
	Remedies       []analysis.RecommendationItem `json:"remedies"`
}

// Clone deep-copies the item slices.
func (g GeneratedDraft) Clone() GeneratedDraft {
	out := GeneratedDraft{RoutineSummary: g.RoutineSummary}
	if g.Products != nil {
		out.Products = append([]analysis.RecommendationItem(nil), g.Products...)
	}
	if g.Remedies != nil {
		out.Remedies = append([]analysis.RecommendationItem(nil), g.Remedies...)
	}
	return out
}

// DraftGenerator produces recommendation drafts for a detected issue.
type DraftGenerator interface {
	Generate(ctx context.Context, issue string, choice Choice) (GeneratedDraft, error)
}
