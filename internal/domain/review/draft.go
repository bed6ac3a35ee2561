package review

import (
	"strconv"
	"strings"

	"github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
)

// SummaryTitle is the fixed title of the synthetic routine-summary item.
const SummaryTitle = "Daily Routine Summary"

// Draft is the working set of one review session. It is a value: every edit
// returns a new Draft and leaves the receiver untouched.
type Draft struct {
	Summary  string                        `json:"routine_summary"`
	Products []analysis.RecommendationItem `json:"products"`
	Remedies []analysis.RecommendationItem `json:"remedies"`
}

// ItemFields carries a partial edit; nil fields are left unchanged.
type ItemFields struct {
	Title       *string
	Description *string
	Link        *string
}

// Seeded builds a draft from generator output. Items are re-tagged with the
// category of the sequence they arrived in.
func Seeded(g ai.GeneratedDraft) Draft {
	d := Draft{Summary: g.RoutineSummary}
	d.Products = retag(g.Products, analysis.CategoryProduct)
	d.Remedies = retag(g.Remedies, analysis.CategoryRemedy)
	return d
}

func retag(in []analysis.RecommendationItem, cat analysis.Category) []analysis.RecommendationItem {
	out := make([]analysis.RecommendationItem, 0, len(in))
	for _, it := range in {
		it.Type = cat
		out = append(out, it)
	}
	return out
}

// Clone deep-copies the sequences.
func (d Draft) Clone() Draft {
	return Draft{
		Summary:  d.Summary,
		Products: append([]analysis.RecommendationItem{}, d.Products...),
		Remedies: append([]analysis.RecommendationItem{}, d.Remedies...),
	}
}

// Items returns the sequence for cat.
func (d Draft) Items(cat analysis.Category) []analysis.RecommendationItem {
	if cat == analysis.CategoryProduct {
		return d.Products
	}
	return d.Remedies
}

// Len is the number of items in the category sequence.
func (d Draft) Len(cat analysis.Category) int { return len(d.Items(cat)) }

// Empty reports whether nothing has been entered yet.
func (d Draft) Empty() bool {
	return d.Summary == "" && len(d.Products) == 0 && len(d.Remedies) == 0
}

func (d Draft) with(cat analysis.Category, items []analysis.RecommendationItem) Draft {
	out := d.Clone()
	if cat == analysis.CategoryProduct {
		out.Products = items
	} else {
		out.Remedies = items
	}
	return out
}

// SetSummary replaces the routine summary.
func (d Draft) SetSummary(text string) Draft {
	out := d.Clone()
	out.Summary = text
	return out
}

// AddItem appends a new item at the end of the category sequence.
func (d Draft) AddItem(cat analysis.Category, title, description string) (Draft, error) {
	if !cat.Valid() {
		return d, invalid("category", "must be Product or Remedy")
	}
	if strings.TrimSpace(title) == "" {
		return d, invalid("title", "must not be empty")
	}
	items := append(d.Clone().Items(cat), analysis.RecommendationItem{
		Title:       title,
		Description: description,
		Type:        cat,
	})
	return d.with(cat, items), nil
}

// RemoveItem drops the item at index; the rest keep their relative order.
func (d Draft) RemoveItem(cat analysis.Category, index int) (Draft, error) {
	if err := d.checkIndex(cat, index); err != nil {
		return d, err
	}
	src := d.Items(cat)
	items := make([]analysis.RecommendationItem, 0, len(src)-1)
	items = append(items, src[:index]...)
	items = append(items, src[index+1:]...)
	return d.with(cat, items), nil
}

// EditItem replaces fields of the item at index without moving it.
func (d Draft) EditItem(cat analysis.Category, index int, f ItemFields) (Draft, error) {
	if err := d.checkIndex(cat, index); err != nil {
		return d, err
	}
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		return d, invalid("title", "must not be empty")
	}
	items := append([]analysis.RecommendationItem{}, d.Items(cat)...)
	it := items[index]
	if f.Title != nil {
		it.Title = *f.Title
	}
	if f.Description != nil {
		it.Description = *f.Description
	}
	if f.Link != nil {
		it.Link = *f.Link
	}
	items[index] = it
	return d.with(cat, items), nil
}

func (d Draft) checkIndex(cat analysis.Category, index int) error {
	if !cat.Valid() {
		return invalid("category", "must be Product or Remedy")
	}
	if n := d.Len(cat); index < 0 || index >= n {
		return invalid("index", "out of range [0,"+strconv.Itoa(n)+")")
	}
	return nil
}

// Validate checks the draft is in a committable shape.
func (d Draft) Validate() error {
	for _, cat := range []analysis.Category{analysis.CategoryProduct, analysis.CategoryRemedy} {
		for i, it := range d.Items(cat) {
			if strings.TrimSpace(it.Title) == "" {
				return invalid(strings.ToLower(string(cat))+"["+strconv.Itoa(i)+"].title", "must not be empty")
			}
			if it.Type != cat {
				return invalid(strings.ToLower(string(cat))+"["+strconv.Itoa(i)+"].type", "must be "+string(cat))
			}
		}
	}
	return nil
}

// Batch flattens the draft into the committed order: the summary as a
// synthetic Remedy (always present, even when empty), then products, then
// remedies, each in draft order.
func (d Draft) Batch() []analysis.RecommendationItem {
	out := make([]analysis.RecommendationItem, 0, 1+len(d.Products)+len(d.Remedies))
	out = append(out, analysis.RecommendationItem{
		Title:       SummaryTitle,
		Description: d.Summary,
		Type:        analysis.CategoryRemedy,
	})
	for _, p := range d.Products {
		p.Type = analysis.CategoryProduct
		out = append(out, p)
	}
	for _, r := range d.Remedies {
		r.Type = analysis.CategoryRemedy
		out = append(out, r)
	}
	return out
}

// FromStored rebuilds a read-only draft view from committed history.
func FromStored(recs []*analysis.StoredRecommendation) Draft {
	d := Draft{Products: []analysis.RecommendationItem{}, Remedies: []analysis.RecommendationItem{}}
	summarySeen := false
	for _, r := range recs {
		if !summarySeen && r.Type == analysis.CategoryRemedy && r.Title == SummaryTitle {
			d.Summary = r.Description
			summarySeen = true
			continue
		}
		if r.Type == analysis.CategoryProduct {
			d.Products = append(d.Products, r.Item())
		} else {
			d.Remedies = append(d.Remedies, r.Item())
		}
	}
	return d
}
