package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a professional dermatologist assistant. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- routine_summary is a short step-by-step daily routine, professional, under 100 words.
- products lists clinical skincare products or active ingredients; remedies lists natural home remedies, DIY treatments or lifestyle habits.
- Every item needs a non-empty title. link is optional and must be an https URL or empty.
- Keep at most 5 items per list.

Schema (example with empty values):
{
  "routine_summary": "<string>",
  "products": [
    {"title": "<string>", "description": "<string>", "link": "<string>"}
  ],
  "remedies": [
    {"title": "<string>", "description": "<string>", "link": "<string>"}
  ]
}`
}

// GetUserPrompt builds the user message for a detected issue.
func GetUserPrompt(issue string, choice ai.Choice) string {
	p := fmt.Sprintf("Provide a skincare routine and recommendations for: %s. ", strings.TrimSpace(issue))
	switch choice {
	case ai.ChoiceRemedy:
		p += "Focus strictly on natural home remedies, DIY treatments, and lifestyle habits; leave products empty."
	case ai.ChoiceProduct:
		p += "Focus strictly on clinical skincare products and active ingredients; leave remedies empty."
	default:
		p += "Fill both products and remedies."
	}
	return p
}

type wireItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

type wireDraft struct {
	RoutineSummary string     `json:"routine_summary"`
	Products       []wireItem `json:"products"`
	Remedies       []wireItem `json:"remedies"`
}

// ParseDraft decodes a model answer into a GeneratedDraft. Code fences are
// tolerated, items without a title are dropped.
func ParseDraft(raw string) (ai.GeneratedDraft, error) {
	body := stripFences(raw)
	if body == "" {
		return ai.GeneratedDraft{}, ai.ErrEmptyResponse
	}
	var w wireDraft
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return ai.GeneratedDraft{}, fmt.Errorf("decode draft: %w", err)
	}
	return ai.GeneratedDraft{
		RoutineSummary: strings.TrimSpace(w.RoutineSummary),
		Products:       items(w.Products, analysis.CategoryProduct),
		Remedies:       items(w.Remedies, analysis.CategoryRemedy),
	}, nil
}

func items(in []wireItem, cat analysis.Category) []analysis.RecommendationItem {
	out := make([]analysis.RecommendationItem, 0, len(in))
	for _, it := range in {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		out = append(out, analysis.RecommendationItem{
			Title:       title,
			Description: strings.TrimSpace(it.Description),
			Type:        cat,
			Link:        strings.TrimSpace(it.Link),
		})
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
