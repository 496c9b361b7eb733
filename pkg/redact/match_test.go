package redact

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

func runs(texts ...string) []pdf.TextRun {
	out := make([]pdf.TextRun, len(texts))
	for i, s := range texts {
		out[i] = pdf.TextRun{Text: s, Page: 1, Rect: pdf.NewRect(float64(i), 0, float64(i)+1, 1)}
	}
	return out
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		runs   []string
		target string
		want   int
	}{
		{"exact", []string{"Foo", "Bar", "Foo"}, "Foo", 2},
		{"trailing space differs", []string{"Foo ", "Foo"}, "Foo", 1},
		{"case differs", []string{"foo", "FOO"}, "Foo", 0},
		{"substring is not a match", []string{"Foobar"}, "Foo", 0},
		{"split over runs", []string{"Fo", "o"}, "Foo", 0},
		{"empty target", []string{"", "Foo"}, "", 0},
		{"unicode", []string{"비밀", "비밀 "}, "비밀", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(slices.Values(runs(tt.runs...)), tt.target)
			assert.Len(t, got, tt.want)
			for _, m := range got {
				assert.Equal(t, tt.target, m.Text)
			}
		})
	}
}

func TestMatchesKeepOrder(t *testing.T) {
	got := Matches(slices.Values(runs("A", "B", "A", "A")), "A")
	var lefts []float64
	for _, m := range got {
		lefts = append(lefts, m.Rect.Left)
	}
	assert.Equal(t, []float64{0, 2, 3}, lefts)
}

func TestFilterStops(t *testing.T) {
	n := 0
	for range Filter(slices.Values(runs("A", "A", "A")), "A") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
