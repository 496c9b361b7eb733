// Package pdfredact finds exact strings in PDF documents and removes them
// from the page content, painting an opaque rectangle where they were.
package pdfredact

import (
	"context"
	"os"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfredact-golang/pkg/redact"
)

// Re-export types from the pdf and redact packages for the public API
type (
	Document = pdf.Document
	Page     = pdf.Page
	TextRun  = pdf.TextRun
	Rect     = pdf.Rect
	Color    = pdf.Color
	Plan     = redact.Plan
	Outcome  = redact.Outcome
	Option   = redact.Option
)

// Re-export option functions
var (
	WithPageWorkers = redact.WithPageWorkers
	WithLogger      = redact.WithLogger
	WithFillColor   = func(c pdf.Color) redact.Option {
		return redact.WithApplierOptions(redact.WithFillColor(c))
	}
)

// Open opens a PDF file for scanning and redaction
func Open(filepath string) (*pdf.PDFDocument, error) {
	return pdf.OpenFile(filepath, nil)
}

// Find returns the runs of the PDF file at path whose text equals target
func Find(ctx context.Context, path, target string, opts ...Option) ([]TextRun, error) {
	doc, err := Open(path)
	if err != nil {
		return nil, err
	}
	return redact.Scan(ctx, doc, target, opts...)
}

// RedactFile removes target from the PDF file at in and writes the result
// to out. Nothing is written when target does not occur.
func RedactFile(ctx context.Context, in, out, target string, opts ...Option) (Outcome, error) {
	doc, err := Open(in)
	if err != nil {
		return Outcome{}, err
	}

	outcome, err := redact.Redact(ctx, doc, target, opts...)
	if err != nil || !outcome.Redacted() {
		return outcome, err
	}

	data, err := doc.Bytes()
	if err != nil {
		return outcome, err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return outcome, &pdf.DocumentError{Op: "write " + out, Err: err}
	}
	return outcome, nil
}
