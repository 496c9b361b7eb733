package redact

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfredact-golang/internal/memdoc"
	"github.com/pyhub-apps/pdfredact-golang/pkg/content"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

var (
	confidentialRect = pdf.NewRect(100, 697.5, 160, 707.5)
	secretRect       = pdf.NewRect(100, 697.5, 130, 707.5)
)

func testPage(t *testing.T, r *memdoc.Resources, data string) pdf.Page {
	t.Helper()
	page, err := memdoc.New(r, data).Page(1)
	require.NoError(t, err)
	return page
}

// textsOf extracts the runs of rewritten content
func textsOf(t *testing.T, r *memdoc.Resources, data []byte) []pdf.TextRun {
	t.Helper()
	runs, err := content.ExtractRuns(testPage(t, r, string(data)))
	require.NoError(t, err)
	return runs
}

func TestApplyEmptyRects(t *testing.T) {
	data := "BT /F1 10 Tf (CONFIDENTIAL) Tj ET"
	res, err := NewApplier().Apply(testPage(t, memdoc.DefaultResources(), data), []byte(data), nil)
	require.NoError(t, err)
	assert.Equal(t, data, string(res.Content))
	assert.Zero(t, res.Stats.Total())
}

func TestApplyReplacesText(t *testing.T) {
	r := memdoc.DefaultResources()
	page := testPage(t, r, "BT /F1 10 Tf 1 0 0 1 100 700 Tm (CONFIDENTIAL) Tj ET")

	res, err := NewApplier().ApplyPage(page, []pdf.Rect{confidentialRect})
	require.NoError(t, err)

	want := "q\n" +
		"BT /F1 10 Tf 1 0 0 1 100 700 Tm [-6000] TJ ET\n" +
		"Q\n" +
		"q 1 1 1 rg 100 697.5 60 10 re f Q\n"
	assert.Equal(t, want, string(res.Content))
	assert.Equal(t, 1, res.Stats.TextRemoved)
	assert.Empty(t, textsOf(t, r, res.Content))
}

func TestApplyKeepsFollowingText(t *testing.T) {
	r := memdoc.DefaultResources()
	page := testPage(t, r, "BT /F1 10 Tf 100 700 Td (CONFIDENTIAL) Tj (after) Tj 50 Tz (CONFIDENTIAL) Tj ET")

	res, err := NewApplier().ApplyPage(page, []pdf.Rect{confidentialRect})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "[-6000] TJ (after) Tj")

	runs := textsOf(t, r, res.Content)
	require.Len(t, runs, 2)
	assert.Equal(t, "after", runs[0].Text)
	assert.InDelta(t, 160, runs[0].Rect.Left, 1e-6)
	// Scaled text outside the rectangle is untouched
	assert.Equal(t, "CONFIDENTIAL", runs[1].Text)
	assert.InDelta(t, 185, runs[1].Rect.Left, 1e-6)
}

func TestApplyNextLineOperators(t *testing.T) {
	tests := []struct {
		name string
		show string
		want string
	}{
		{"quote", "(SECRET) '", "T* [-3000] TJ"},
		{"double quote", "0 0 (SECRET) \"", "0 Tw 0 Tc T* [-3000] TJ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := memdoc.DefaultResources()
			page := testPage(t, r, "BT /F1 10 Tf 12 TL 100 712 Td "+tt.show+" ET")

			res, err := NewApplier().ApplyPage(page, []pdf.Rect{secretRect})
			require.NoError(t, err)
			assert.Contains(t, string(res.Content), "Td "+tt.want+" ET")
			assert.Empty(t, textsOf(t, r, res.Content))
		})
	}
}

func TestApplyDropsUnmatchedRestore(t *testing.T) {
	r := memdoc.DefaultResources()
	page := testPage(t, r, "Q BT /F1 10 Tf 100 700 Td (SECRET) Tj ET")

	var warnings []error
	res, err := NewApplier(WithApplierWarnings(func(err error) { warnings = append(warnings, err) })).
		ApplyPage(page, []pdf.Rect{secretRect})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(res.Content), "q\n BT /F1 10 Tf"))
	assert.Len(t, warnings, 1)
}

func TestApplyClosesOpenState(t *testing.T) {
	r := memdoc.DefaultResources()
	page := testPage(t, r, "q q BT /F1 10 Tf 100 700 Td (SECRET) Tj")

	res, err := NewApplier().ApplyPage(page, []pdf.Rect{secretRect})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "[-3000] TJ\nET\nQ\nQ\nQ\nq 1 1 1 rg")
}

func TestApplyPaths(t *testing.T) {
	rect := pdf.NewRect(100, 690, 130, 710)

	tests := []struct {
		name     string
		data     string
		contains []string
		absent   []string
		stats    Stats
	}{
		{
			name:     "path outside passes through",
			data:     "10 10 m 20 20 l S",
			contains: []string{"q\n10 10 m 20 20 l S\nQ\n"},
		},
		{
			name:     "path inside removed",
			data:     "10 10 m 20 20 l S 1 0 0 rg 110 700 5 5 re f",
			contains: []string{"10 10 m 20 20 l S 1 0 0 rg \n"},
			absent:   []string{"110 700 5 5 re"},
			stats:    Stats{PathsRemoved: 1},
		},
		{
			name:     "clip kept when paint removed",
			data:     "110 700 5 5 re W f",
			contains: []string{"110 700 5 5 re\nW n"},
			absent:   []string{" f\n"},
			stats:    Stats{PathsRemoved: 1},
		},
		{
			name:     "unpainted clip passes through",
			data:     "110 700 5 5 re W n",
			contains: []string{"q\n110 700 5 5 re W n\nQ\n"},
		},
		{
			name: "overlapping path clipped",
			data: "0 0 200 800 re f",
			contains: []string{
				"q\n-10 -10 m 622 -10 l 622 810 l -10 810 l h\n" +
					"100 690 m 130 690 l 130 710 l 100 710 l h\nW* n\n" +
					"0 0 200 800 re\nf\nQ",
			},
			stats: Stats{PathsClipped: 1},
		},
		{
			name: "clip of overlapping path stays outside the wrapper",
			data: "0 0 200 800 re W f",
			contains: []string{
				"0 0 200 800 re\nW n\nq\n",
				"W* n\n0 0 200 800 re\nf\nQ",
			},
			stats: Stats{PathsClipped: 1},
		},
		{
			name:     "clip in user space",
			data:     "q 2 0 0 2 0 0 cm 0 0 100 400 re f Q",
			contains: []string{"50 345 m 65 345 l 65 355 l 50 355 l h\nW* n\n0 0 100 400 re\nf\nQ Q"},
			stats:    Stats{PathsClipped: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := testPage(t, memdoc.DefaultResources(), tt.data)
			res, err := NewApplier().ApplyPage(page, []pdf.Rect{rect})
			require.NoError(t, err)

			out := string(res.Content)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
			assert.Equal(t, tt.stats, res.Stats)
		})
	}
}

func TestApplyImages(t *testing.T) {
	r := memdoc.DefaultResources()
	r.XObjects["Im1"] = &pdf.XObject{Name: "Im1", Subtype: pdf.XObjectImage}
	rect := pdf.NewRect(100, 690, 130, 710)

	res, err := NewApplier().ApplyPage(testPage(t, r, "q 20 0 0 10 105 695 cm /Im1 Do Q"), []pdf.Rect{rect})
	require.NoError(t, err)
	assert.NotContains(t, string(res.Content), "/Im1 Do")
	assert.Equal(t, Stats{ImagesRemoved: 1}, res.Stats)

	res, err = NewApplier().ApplyPage(testPage(t, r, "q 100 0 0 100 50 650 cm /Im1 Do Q"), []pdf.Rect{rect})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "W* n\n/Im1 Do\nQ")
	assert.Equal(t, Stats{ImagesClipped: 1}, res.Stats)

	res, err = NewApplier().ApplyPage(testPage(t, r, "q 10 0 0 10 0 0 cm BI /W 1 /H 1 ID \x00 EI Q"), []pdf.Rect{rect})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "BI /W 1 /H 1 ID \x00 EI")
	assert.Zero(t, res.Stats.Total())
}

func formDoc(formContent, page string) (*memdoc.Document, *memdoc.Resources) {
	r := memdoc.DefaultResources()
	r.XObjects["Fm1"] = &pdf.XObject{
		Name:    "Fm1",
		Subtype: pdf.XObjectForm,
		BBox:    pdf.NewRect(0, 0, 100, 100),
		Matrix:  pdf.Translate(50, 50),
		Content: []byte(formContent),
	}
	return memdoc.New(r, page), r
}

func TestApplyRewritesForms(t *testing.T) {
	doc, r := formDoc("BT /F1 10 Tf (SECRET) Tj (KEEP) Tj ET", "/Fm1 Do")
	page, err := doc.Page(1)
	require.NoError(t, err)
	rect := pdf.NewRect(50, 47.5, 80, 57.5)

	res, err := NewApplier(WithFormStore(doc)).ApplyPage(page, []pdf.Rect{rect})
	require.NoError(t, err)

	assert.Contains(t, string(res.Content), "/Fm1R1 Do")
	assert.Equal(t, Stats{TextRemoved: 1, FormsRewritten: 1}, res.Stats)

	body := string(doc.Forms["Fm1R1"])
	assert.Contains(t, body, "[-3000] TJ (KEEP) Tj")
	// The original form is shared and stays as it was
	assert.Equal(t, "BT /F1 10 Tf (SECRET) Tj (KEEP) Tj ET", string(r.XObjects["Fm1"].Content))

	runs := textsOf(t, r, res.Content)
	require.Len(t, runs, 1)
	assert.Equal(t, "KEEP", runs[0].Text)
}

func TestApplyForms(t *testing.T) {
	doc, _ := formDoc("BT /F1 10 Tf (SECRET) Tj ET", "/Fm1 Do")
	page, err := doc.Page(1)
	require.NoError(t, err)

	// Without a store the form is clipped
	res, err := NewApplier().ApplyPage(page, []pdf.Rect{pdf.NewRect(50, 47.5, 80, 57.5)})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "W* n\n/Fm1 Do\nQ")
	assert.Equal(t, Stats{FormsClipped: 1}, res.Stats)
	assert.Empty(t, doc.Forms)

	// A form inside a rectangle goes away
	res, err = NewApplier(WithFormStore(doc)).ApplyPage(page, []pdf.Rect{pdf.NewRect(0, 0, 200, 200)})
	require.NoError(t, err)
	assert.NotContains(t, string(res.Content), "Do")
	assert.Equal(t, Stats{FormsRemoved: 1}, res.Stats)

	// Forms away from the rectangles are copied
	res, err = NewApplier(WithFormStore(doc)).ApplyPage(page, []pdf.Rect{confidentialRect})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "q\n/Fm1 Do\nQ\n")
	assert.Zero(t, res.Stats.Total())
}

func TestApplyShading(t *testing.T) {
	res, err := NewApplier().ApplyPage(testPage(t, memdoc.DefaultResources(), "/Sh0 sh"), []pdf.Rect{secretRect})
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "W* n\n/Sh0 sh\nQ")
	assert.Equal(t, Stats{ShadingClipped: 1}, res.Stats)
}

func TestApplyMasks(t *testing.T) {
	page := testPage(t, memdoc.DefaultResources(), "")
	rects := []pdf.Rect{secretRect, pdf.NewRect(10, 20, 0, 0)}

	res, err := NewApplier(WithFillColor(pdf.Black)).ApplyPage(page, rects)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(res.Content),
		"q 0 0 0 rg 100 697.5 30 10 re f Q\nq 0 0 0 rg 0 0 10 20 re f Q\n"))

	red, err := pdf.ParseColor("FF0000")
	require.NoError(t, err)
	res, err = NewApplier(WithFillColor(red)).ApplyPage(page, rects[:1])
	require.NoError(t, err)
	assert.Contains(t, string(res.Content), "q 1 0 0 rg 100 697.5 30 10 re f Q\n")
}

func TestApplyTwice(t *testing.T) {
	r := memdoc.DefaultResources()
	data := "BT /F1 10 Tf 1 0 0 1 100 700 Tm (CONFIDENTIAL) Tj ET"
	rects := []pdf.Rect{confidentialRect}

	first, err := NewApplier().Apply(testPage(t, r, data), []byte(data), rects)
	require.NoError(t, err)
	second, err := NewApplier().Apply(testPage(t, r, string(first.Content)), first.Content, rects)
	require.NoError(t, err)

	assert.Empty(t, Matches(slices.Values(textsOf(t, r, second.Content)), "CONFIDENTIAL"))
	// The first mask lies inside the rectangle and is replaced by the second
	assert.Equal(t, 1, strings.Count(string(second.Content), "re f Q\n"))
	assert.Equal(t, 1, second.Stats.PathsRemoved)
}

func TestStats(t *testing.T) {
	s := Stats{TextRemoved: 1}
	s.Add(Stats{TextRemoved: 2, PathsClipped: 1, ShadingClipped: 1})
	assert.Equal(t, Stats{TextRemoved: 3, PathsClipped: 1, ShadingClipped: 1}, s)
	assert.Equal(t, 5, s.Total())
}
