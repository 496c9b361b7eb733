package redact

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfredact-golang/internal/memdoc"
	"github.com/pyhub-apps/pdfredact-golang/internal/pdftest"
	"github.com/pyhub-apps/pdfredact-golang/pkg/content"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func threePages() *memdoc.Document {
	return memdoc.New(memdoc.DefaultResources(),
		"BT /F1 10 Tf 100 700 Td (SECRET) Tj 0 -20 Td (SECRET) Tj ET",
		"BT /F1 10 Tf 100 700 Td (nothing here) Tj ET",
		"BT /F1 10 Tf 300 100 Td (SECRET) Tj ET",
	)
}

func TestScan(t *testing.T) {
	for _, workers := range []int{1, 4} {
		matches, err := Scan(context.Background(), threePages(), "SECRET",
			WithPageWorkers(workers), WithLogger(quietLogger()))
		require.NoError(t, err)

		require.Len(t, matches, 3)
		assert.Equal(t, []int{1, 1, 3}, []int{matches[0].Page, matches[1].Page, matches[2].Page})
		assert.InDelta(t, 130, matches[0].Rect.Right, 1e-9)
		assert.InDelta(t, 677.5, matches[1].Rect.Bottom, 1e-9)
	}
}

func TestScanEmptyTarget(t *testing.T) {
	matches, err := Scan(context.Background(), threePages(), "")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, threePages(), "SECRET")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanLogsRecoveredErrors(t *testing.T) {
	var logs bytes.Buffer
	doc := memdoc.New(memdoc.DefaultResources(), "BT /F9 10 Tf (SECRET) Tj ET")

	matches, err := Scan(context.Background(), doc, "SECRET",
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Contains(t, logs.String(), "recovered page error")
	assert.Contains(t, logs.String(), "page=1")
}

func TestRedact(t *testing.T) {
	doc := threePages()
	out, err := Redact(context.Background(), doc, "SECRET", WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.True(t, out.Redacted())
	assert.Equal(t, 3, out.Pages)
	assert.Len(t, out.Matches, 3)
	assert.Equal(t, []int{1, 3}, out.Plan.Pages())
	assert.Equal(t, 3, out.Stats.TextRemoved)

	// Pages without a match are never written
	assert.Equal(t, []int{1, 3}, doc.Written)
	assert.Equal(t, "BT /F1 10 Tf 100 700 Td (nothing here) Tj ET", string(doc.Content(2)))

	again, err := Scan(context.Background(), doc, "SECRET")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRedactNoMatch(t *testing.T) {
	doc := threePages()
	out, err := Redact(context.Background(), doc, "Secret")
	require.NoError(t, err)
	assert.False(t, out.Redacted())
	assert.Empty(t, doc.Written)
}

type readOnly struct {
	pdf.Document
}

func TestRedactReadOnly(t *testing.T) {
	_, err := Redact(context.Background(), readOnly{threePages()}, "SECRET")
	assert.ErrorIs(t, err, ErrReadOnly)

	// Scanning needs no writer
	matches, err := Scan(context.Background(), readOnly{threePages()}, "SECRET")
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestRedactOptions(t *testing.T) {
	doc := memdoc.New(memdoc.DefaultResources(), "BT /F1 10 Tf 100 700 Td (SECRET) Tj ET")
	_, err := Redact(context.Background(), doc, "SECRET",
		WithApplierOptions(WithFillColor(pdf.Black)),
		WithExtractorOptions(content.WithForms(false)))
	require.NoError(t, err)
	assert.Contains(t, string(doc.Content(1)), "q 0 0 0 rg 100 697.5 30 10 re f Q")
}

func TestRedactForms(t *testing.T) {
	doc, _ := formDoc("BT /F1 10 Tf (SECRET) Tj (KEEP) Tj ET", "/Fm1 Do")

	out, err := Redact(context.Background(), doc, "SECRET")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stats.FormsRewritten)
	assert.Contains(t, string(doc.Content(1)), "/Fm1R1 Do")

	again, err := Scan(context.Background(), doc, "SECRET")
	require.NoError(t, err)
	assert.Empty(t, again)
	runs, err := Scan(context.Background(), doc, "KEEP")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRedactPDFDocument(t *testing.T) {
	b := pdftest.New()
	b.AddPage("BT /F1 10 Tf 1 0 0 1 100 700 Tm (CONFIDENTIAL) Tj ET")
	b.AddPage("BT /F1 10 Tf 100 700 Td (public) Tj ET")
	b.AddPage("q 1 0 0 1 0 0 cm /Fm1 Do Q").Form("Fm1", pdftest.Form{
		BBox:    [4]float64{0, 0, 300, 100},
		Matrix:  [6]float64{1, 0, 0, 1, 100, 400},
		Content: "BT /F1 10 Tf 10 10 Td (CONFIDENTIAL) Tj (kept) Tj ET",
	})

	doc, err := pdf.OpenBytes(b.Bytes(), nil)
	require.NoError(t, err)
	before := pageContent(t, doc, 2)

	out, err := Redact(context.Background(), doc, "CONFIDENTIAL", WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, out.Plan.Pages())
	assert.Equal(t, 2, out.Stats.TextRemoved)
	assert.Equal(t, 1, out.Stats.FormsRewritten)

	data, err := doc.Bytes()
	require.NoError(t, err)

	reopened, err := pdf.OpenBytes(data, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.PageCount())
	// Pages without a match keep their content byte for byte
	assert.Equal(t, before, pageContent(t, reopened, 2))

	left, err := Scan(context.Background(), reopened, "CONFIDENTIAL")
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := Scan(context.Background(), reopened, "kept")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, 3, kept[0].Page)

	public, err := Scan(context.Background(), reopened, "public")
	require.NoError(t, err)
	assert.Len(t, public, 1)
}

func pageContent(t *testing.T, doc pdf.Document, n int) []byte {
	t.Helper()
	page, err := doc.Page(n)
	require.NoError(t, err)
	data, err := page.Content()
	require.NoError(t, err)
	return data
}

func TestRedactCoreFontHighCodes(t *testing.T) {
	b := pdftest.New()
	b.AddPage(`BT /F2 10 Tf 100 700 Td (na) Tj (\344) Tj (X) Tj ET`)
	doc, err := pdf.OpenBytes(b.Bytes(), nil)
	require.NoError(t, err)

	matches, err := Scan(context.Background(), doc, "\u00e4")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	// Helvetica n and a are 556 units wide, a-diaeresis too
	assert.InDelta(t, 111.12, matches[0].Rect.Left, 1e-6)
	assert.InDelta(t, 116.68, matches[0].Rect.Right, 1e-6)

	out, err := Redact(context.Background(), doc, "\u00e4")
	require.NoError(t, err)
	require.True(t, out.Redacted())
	assert.Contains(t, string(pageContent(t, doc, 1)), "[-556] TJ (X) Tj")
}
