package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfredact-golang/internal/memdoc"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

func assertRect(t *testing.T, want, got pdf.Rect) {
	t.Helper()
	assert.InDelta(t, want.Left, got.Left, 1e-3, "left")
	assert.InDelta(t, want.Bottom, got.Bottom, 1e-3, "bottom")
	assert.InDelta(t, want.Right, got.Right, 1e-3, "right")
	assert.InDelta(t, want.Top, got.Top, 1e-3, "top")
}

func extract(t *testing.T, r *memdoc.Resources, content string, opts ...Option) ([]pdf.TextRun, []error) {
	t.Helper()
	var warnings []error
	opts = append([]Option{WithWarningHandler(func(err error) { warnings = append(warnings, err) })}, opts...)

	page, err := memdoc.New(r, content).Page(1)
	require.NoError(t, err)
	runs, err := ExtractRuns(page, opts...)
	require.NoError(t, err)
	return runs, warnings
}

func TestExtractRunsSingleShow(t *testing.T) {
	runs, warnings := extract(t, memdoc.DefaultResources(),
		"BT /F1 10 Tf 1 0 0 1 100 700 Tm (CONFIDENTIAL) Tj ET")
	assert.Empty(t, warnings)
	require.Len(t, runs, 1)

	assert.Equal(t, "CONFIDENTIAL", runs[0].Text)
	assert.Equal(t, 1, runs[0].Page)
	assertRect(t, pdf.NewRect(100, 697.5, 160, 707.5), runs[0].Rect)
}

func TestExtractRunsOrder(t *testing.T) {
	runs, _ := extract(t, memdoc.DefaultResources(),
		"BT /F1 10 Tf 100 700 Td (Foo) Tj (Foo ) Tj 0 -20 Td (Bar) Tj ET")
	require.Len(t, runs, 3)

	assert.Equal(t, "Foo", runs[0].Text)
	assert.Equal(t, "Foo ", runs[1].Text)
	assert.Equal(t, "Bar", runs[2].Text)

	// The second show starts where the first ended
	assertRect(t, pdf.NewRect(115, 697.5, 135, 707.5), runs[1].Rect)
	// Td moves relative to the start of the line, not the end of the text
	assertRect(t, pdf.NewRect(100, 677.5, 115, 687.5), runs[2].Rect)
}

func TestExtractRunsTJIsOneRun(t *testing.T) {
	runs, _ := extract(t, memdoc.DefaultResources(),
		"BT /F1 10 Tf 100 700 Td [(CONF) -1000 (IDENTIAL)] TJ ET")
	require.Len(t, runs, 1)

	assert.Equal(t, "CONFIDENTIAL", runs[0].Text)
	// 60 for the glyphs plus 10 for the adjustment
	assertRect(t, pdf.NewRect(100, 697.5, 170, 707.5), runs[0].Rect)
}

func TestExtractRunsRotated(t *testing.T) {
	runs, _ := extract(t, memdoc.DefaultResources(),
		"q 0.70711 0.70711 -0.70711 0.70711 0 0 cm BT /F1 10 Tf 100 0 Td (AB) Tj ET Q")
	require.Len(t, runs, 1)

	want := pdf.Rotate(45).TransformRect(pdf.NewRect(100, -2.5, 110, 7.5))
	assertRect(t, want, runs[0].Rect)
}

func TestExtractRunsTextState(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    pdf.Rect
	}{
		{
			name:    "next line with leading",
			content: "BT /F1 10 Tf 0 100 Td 12 TL (A) ' ET",
			want:    pdf.NewRect(0, 85.5, 5, 95.5),
		},
		{
			name:    "TD sets leading",
			content: "BT /F1 10 Tf 0 100 TD 0 -10 TD T* (A) Tj ET",
			want:    pdf.NewRect(0, 77.5, 5, 87.5),
		},
		{
			name:    "spaced quote",
			content: "BT /F1 10 Tf 10 TL 0 100 Td 2 1 (A A) \" ET",
			want:    pdf.NewRect(0, 87.5, 20, 97.5),
		},
		{
			name:    "horizontal scaling",
			content: "BT /F1 10 Tf 50 Tz (AB) Tj ET",
			want:    pdf.NewRect(0, -2.5, 5, 7.5),
		},
		{
			name:    "rise",
			content: "BT /F1 10 Tf 5 Ts (A) Tj ET",
			want:    pdf.NewRect(0, 2.5, 5, 12.5),
		},
		{
			name:    "char spacing",
			content: "BT /F1 10 Tf 1 Tc (AB) Tj ET",
			want:    pdf.NewRect(0, -2.5, 12, 7.5),
		},
		{
			name:    "text state survives ET",
			content: "BT /F1 20 Tf ET BT (A) Tj ET",
			want:    pdf.NewRect(0, -5, 10, 15),
		},
		{
			name:    "Q restores font size",
			content: "BT /F1 10 Tf q /F1 20 Tf Q (A) Tj ET",
			want:    pdf.NewRect(0, -2.5, 5, 7.5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, _ := extract(t, memdoc.DefaultResources(), tt.content)
			require.Len(t, runs, 1)
			assertRect(t, tt.want, runs[0].Rect)
		})
	}
}

func TestExtractRunsUnknownOperator(t *testing.T) {
	runs, warnings := extract(t, memdoc.DefaultResources(),
		"BT /F1 10 Tf 100 700 Td 1 2 zz (A) Tj ET")
	assert.Empty(t, warnings)
	require.Len(t, runs, 1)
	assertRect(t, pdf.NewRect(100, 697.5, 105, 707.5), runs[0].Rect)
}

func TestExtractRunsEmptyPage(t *testing.T) {
	runs, warnings := extract(t, memdoc.DefaultResources(), "")
	assert.Empty(t, runs)
	assert.Empty(t, warnings)

	runs, _ = extract(t, memdoc.DefaultResources(), "BT /F1 10 Tf () Tj ET")
	assert.Empty(t, runs)
}

func TestExtractRunsFallbackFont(t *testing.T) {
	runs, warnings := extract(t, memdoc.DefaultResources(), "BT /F9 10 Tf (AB) Tj ET")
	require.Len(t, runs, 1)
	require.NotEmpty(t, warnings)

	assert.Equal(t, "AB", runs[0].Text)
	assertRect(t, pdf.NewRect(0, -2.5, 10, 7.5), runs[0].Rect)

	// No Tf at all: fallback metrics at size 0 have no geometry
	runs, warnings = extract(t, memdoc.DefaultResources(), "BT (AB) Tj ET")
	assert.Empty(t, runs)
	assert.Len(t, warnings, 2)
}

func TestExtractRunsMalformedOperands(t *testing.T) {
	runs, warnings := extract(t, memdoc.DefaultResources(),
		"BT /F1 10 Tf 100 Td 1 0 0 1 10 10 Tm (A) Tj /X Tj ET")
	require.Len(t, runs, 1)
	assert.Len(t, warnings, 2)
	assertRect(t, pdf.NewRect(10, 7.5, 15, 17.5), runs[0].Rect)
}

func TestExtractRunsSingularMatrix(t *testing.T) {
	runs, warnings := extract(t, memdoc.DefaultResources(),
		"BT /F1 0 Tf (A) Tj /F1 10 Tf (B) Tj ET")
	require.Len(t, runs, 1)
	assert.Equal(t, "B", runs[0].Text)
	require.Len(t, warnings, 1)

	var gerr *pdf.GeometryError
	assert.True(t, errors.As(warnings[0], &gerr))
}

func formResources(content string) *memdoc.Resources {
	r := memdoc.DefaultResources()
	r.XObjects["Fm1"] = &pdf.XObject{
		Name:    "Fm1",
		Subtype: pdf.XObjectForm,
		BBox:    pdf.NewRect(0, 0, 100, 100),
		Matrix:  pdf.Translate(50, 50),
		Content: []byte(content),
	}
	return r
}

func TestExtractRunsForms(t *testing.T) {
	r := formResources("BT /F1 10 Tf (X) Tj ET")
	page := "q 1 0 0 1 100 0 cm /Fm1 Do Q BT /F1 10 Tf (Y) Tj ET"

	runs, _ := extract(t, r, page)
	require.Len(t, runs, 2)
	assert.Equal(t, "X", runs[0].Text)
	assertRect(t, pdf.NewRect(150, 47.5, 155, 57.5), runs[0].Rect)
	assert.Equal(t, "Y", runs[1].Text)

	runs, _ = extract(t, r, page, WithForms(false))
	require.Len(t, runs, 1)
	assert.Equal(t, "Y", runs[0].Text)
}

func TestExtractRunsFormDepth(t *testing.T) {
	r := formResources("BT /F1 10 Tf (X) Tj ET /Fm1 Do")

	runs, warnings := extract(t, r, "/Fm1 Do", WithMaxFormDepth(3))
	assert.Len(t, runs, 3)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Error(), "nested deeper than 3")
}

func TestRunsStopsEarly(t *testing.T) {
	r := memdoc.DefaultResources()
	content := []byte("BT /F1 10 Tf (A) Tj (B) Tj (C) Tj ET")

	var got []string
	for run := range NewExtractor().Runs(1, content, r, pdf.IdentityMatrix()) {
		got = append(got, run.Text)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestRunsStopsInsideForm(t *testing.T) {
	r := formResources("BT /F1 10 Tf (X) Tj (Z) Tj ET")

	var got []string
	for run := range NewExtractor().Runs(1, []byte("/Fm1 Do BT /F1 10 Tf (Y) Tj ET"), r, pdf.IdentityMatrix()) {
		got = append(got, run.Text)
		break
	}
	assert.Equal(t, []string{"X"}, got)
}
