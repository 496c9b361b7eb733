// Package verify re-reads redacted documents with readers independent of the
// redaction pipeline and reports text still shown inside redacted areas.
package verify

import (
	"bytes"
	"errors"
	"fmt"

	dpdf "github.com/dslipak/pdf"
	lpdf "github.com/ledongthuc/pdf"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfredact-golang/pkg/redact"
)

// Leak is a glyph whose origin lies inside a redaction rectangle
type Leak struct {
	Page int
	Text string
	X, Y float64
	Rect pdf.Rect
}

func (l Leak) String() string {
	return fmt.Sprintf("page %d (%.2f, %.2f) %q inside %s", l.Page, l.X, l.Y, l.Text, l.Rect)
}

// Report is the outcome of a verification
type Report struct {
	Reader string // library that read the document
	Pages  int    // pages checked
	Leaks  []Leak
}

// Clean reports whether no text was found inside a redaction rectangle
func (r Report) Clean() bool {
	return len(r.Leaks) == 0
}

// glyph is a shown string at its origin in default user space
type glyph struct {
	S    string
	X, Y float64
}

// reader extracts the glyphs of one page of a document
type reader interface {
	name() string
	numPage() int
	glyphs(page int) ([]glyph, error)
}

// Verify reads data with ledongthuc/pdf, falling back to dslipak/pdf, and
// checks the glyphs of every planned page against its rectangles
func Verify(data []byte, plan redact.Plan) (Report, error) {
	if plan.Empty() {
		return Report{}, nil
	}

	var errs []error
	for _, open := range []func([]byte) (reader, error){openLedongthuc, openDslipak} {
		r, err := open(data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report, err := check(r, plan)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return report, nil
	}
	return Report{}, fmt.Errorf("failed to verify document: %w", errors.Join(errs...))
}

func check(r reader, plan redact.Plan) (report Report, err error) {
	defer recovered(r.name(), &err)
	report.Reader = r.name()
	for _, page := range plan.Pages() {
		if page > r.numPage() {
			return Report{}, fmt.Errorf("%s: page %d out of range", r.name(), page)
		}
		glyphs, err := r.glyphs(page)
		if err != nil {
			return Report{}, err
		}
		report.Pages++
		for _, g := range glyphs {
			for _, rect := range plan.Rects(page) {
				if inside(rect, g.X, g.Y) {
					report.Leaks = append(report.Leaks, Leak{Page: page, Text: g.S, X: g.X, Y: g.Y, Rect: rect})
					break
				}
			}
		}
	}
	return report, nil
}

// inside tests the open interior; origins on the edge belong to neighbours
func inside(r pdf.Rect, x, y float64) bool {
	r = r.Normalize()
	return x > r.Left && x < r.Right && y > r.Bottom && y < r.Top
}

// recovered turns a panic of a reader into an error
func recovered(lib string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: panic while reading: %v", lib, r)
	}
}

type ledongthucReader struct {
	r *lpdf.Reader
}

func openLedongthuc(data []byte) (rd reader, err error) {
	defer recovered("ledongthuc", &err)
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with ledongthuc: %w", err)
	}
	return &ledongthucReader{r: r}, nil
}

func (l *ledongthucReader) name() string { return "ledongthuc" }
func (l *ledongthucReader) numPage() int { return l.r.NumPage() }

func (l *ledongthucReader) glyphs(number int) (out []glyph, err error) {
	defer recovered("ledongthuc", &err)
	page := l.r.Page(number)
	if page.V.IsNull() {
		return nil, fmt.Errorf("ledongthuc: page %d not found", number)
	}
	for _, t := range page.Content().Text {
		out = append(out, glyph{S: t.S, X: t.X, Y: t.Y})
	}
	return out, nil
}

type dslipakReader struct {
	r *dpdf.Reader
}

func openDslipak(data []byte) (rd reader, err error) {
	defer recovered("dslipak", &err)
	r, err := dpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with dslipak: %w", err)
	}
	return &dslipakReader{r: r}, nil
}

func (d *dslipakReader) name() string { return "dslipak" }
func (d *dslipakReader) numPage() int { return d.r.NumPage() }

func (d *dslipakReader) glyphs(number int) (out []glyph, err error) {
	defer recovered("dslipak", &err)
	page := d.r.Page(number)
	if page.V.IsNull() {
		return nil, fmt.Errorf("dslipak: page %d not found", number)
	}
	for _, t := range page.Content().Text {
		out = append(out, glyph{S: t.S, X: t.X, Y: t.Y})
	}
	return out, nil
}
