package pdfredact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfredact-golang/internal/pdftest"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

func writeTestPDF(t *testing.T) string {
	t.Helper()
	b := pdftest.New()
	b.AddPage("BT /F1 10 Tf 1 0 0 1 100 700 Tm (CONFIDENTIAL) Tj ET")
	b.AddPage("BT /F1 10 Tf 1 0 0 1 100 700 Tm (CONFIDENTIAL) Tj 0 -20 Td (CONFIDENTIAL) Tj ET")

	path := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func TestFind(t *testing.T) {
	path := writeTestPDF(t)

	runs, err := Find(context.Background(), path, "CONFIDENTIAL", WithPageWorkers(2))
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 1, runs[0].Page)
	assert.InDelta(t, 100, runs[0].Rect.Left, 1e-6)
	assert.InDelta(t, 697.5, runs[0].Rect.Bottom, 1e-6)
	assert.InDelta(t, 160, runs[0].Rect.Right, 1e-6)
	assert.InDelta(t, 707.5, runs[0].Rect.Top, 1e-6)
}

func TestRedactFile(t *testing.T) {
	in := writeTestPDF(t)
	out := filepath.Join(t.TempDir(), "out.pdf")

	outcome, err := RedactFile(context.Background(), in, out, "CONFIDENTIAL", WithFillColor(pdf.Black))
	require.NoError(t, err)
	assert.True(t, outcome.Redacted())
	assert.Equal(t, 3, outcome.Plan.Count())

	runs, err := Find(context.Background(), out, "CONFIDENTIAL")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedactFileWithoutMatch(t *testing.T) {
	in := writeTestPDF(t)
	out := filepath.Join(t.TempDir(), "out.pdf")

	outcome, err := RedactFile(context.Background(), in, out, "confidential")
	require.NoError(t, err)
	assert.False(t, outcome.Redacted())
	assert.NoFileExists(t, out)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
