package redact

import (
	"maps"
	"slices"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// Plan maps page numbers to the rectangles to redact on that page, in the
// order the matches were found. Pages without matches are absent.
type Plan map[int][]pdf.Rect

// NewPlan groups matched runs by page. Overlapping rectangles are kept as
// they are; redacting the same area twice has no further effect.
func NewPlan(matches []pdf.TextRun) Plan {
	plan := Plan{}
	for _, m := range matches {
		plan[m.Page] = append(plan[m.Page], m.Rect)
	}
	return plan
}

// Empty reports a plan without any rectangle
func (p Plan) Empty() bool {
	for _, rects := range p {
		if len(rects) > 0 {
			return false
		}
	}
	return true
}

// Pages returns the planned page numbers in ascending order
func (p Plan) Pages() []int {
	return slices.Sorted(maps.Keys(p))
}

// Rects returns the rectangles planned for page
func (p Plan) Rects(page int) []pdf.Rect {
	return p[page]
}

// Count returns the number of rectangles over all pages
func (p Plan) Count() int {
	n := 0
	for _, rects := range p {
		n += len(rects)
	}
	return n
}
