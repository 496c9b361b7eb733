package redact

import (
	"iter"
	"slices"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// Filter keeps the runs whose text equals target byte for byte. There is no
// trimming, case folding or Unicode normalization, and a target split over
// several runs is not matched. An empty target matches nothing.
func Filter(runs iter.Seq[pdf.TextRun], target string) iter.Seq[pdf.TextRun] {
	return func(yield func(pdf.TextRun) bool) {
		if target == "" {
			return
		}
		for run := range runs {
			if run.Text != target {
				continue
			}
			if !yield(run) {
				return
			}
		}
	}
}

// Matches collects the runs whose text equals target
func Matches(runs iter.Seq[pdf.TextRun], target string) []pdf.TextRun {
	return slices.Collect(Filter(runs, target))
}
