// Package memdoc is an in-memory pdf.Document for tests that exercise
// content streams without a PDF file behind them.
package memdoc

import (
	"fmt"
	"sync"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// TestFont returns a font whose glyphs are 500 units wide with ascent 750
// and descent -250
func TestFont(name string) *pdf.Font {
	widths := make([]float64, 126-32+1)
	for i := range widths {
		widths[i] = 500
	}
	f := pdf.NewSimpleFont(name, "TestFont", 32, widths)
	f.Encoding = pdf.NewSimpleEncoding("WinAnsiEncoding")
	f.Ascent = 750
	f.Descent = -250
	return f
}

// Resources resolves fonts and XObjects from maps
type Resources struct {
	Fonts    map[string]*pdf.Font
	XObjects map[string]*pdf.XObject
}

// DefaultResources registers TestFont as F1
func DefaultResources() *Resources {
	return &Resources{
		Fonts:    map[string]*pdf.Font{"F1": TestFont("F1")},
		XObjects: map[string]*pdf.XObject{},
	}
}

func (r *Resources) Font(name string) (*pdf.Font, error) {
	f, ok := r.Fonts[name]
	if !ok {
		return nil, fmt.Errorf("font %s not found", name)
	}
	return f, nil
}

func (r *Resources) XObject(name string) (*pdf.XObject, error) {
	x, ok := r.XObjects[name]
	if !ok {
		return nil, fmt.Errorf("xobject %s not found", name)
	}
	return x, nil
}

// Page is a page held in memory
type Page struct {
	number    int
	content   []byte
	resources *Resources
}

func (p *Page) Number() int { return p.number }

func (p *Page) MediaBox() pdf.Rect { return pdf.NewRect(0, 0, 612, 792) }

func (p *Page) Content() ([]byte, error) { return p.content, nil }

func (p *Page) Resources() pdf.Resources { return p.resources }

// Document is a document held in memory. It records the content written to
// it and the forms added.
type Document struct {
	mu    sync.Mutex
	pages []*Page

	// Written lists the pages passed to SetContent, in call order
	Written []int
	// Forms holds the content of added forms by name
	Forms map[string][]byte
}

// New creates a document with one page per content stream, all sharing r
func New(r *Resources, contents ...string) *Document {
	d := &Document{Forms: map[string][]byte{}}
	for i, c := range contents {
		d.pages = append(d.pages, &Page{number: i + 1, content: []byte(c), resources: r})
	}
	return d
}

func (d *Document) PageCount() int { return len(d.pages) }

func (d *Document) Page(number int) (pdf.Page, error) {
	if number < 1 || number > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", number, len(d.pages))
	}
	return d.pages[number-1], nil
}

// Content returns the current content of a page
func (d *Document) Content(number int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[number-1].content
}

func (d *Document) SetContent(number int, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if number < 1 || number > len(d.pages) {
		return fmt.Errorf("page %d out of range [1, %d]", number, len(d.pages))
	}
	d.pages[number-1].content = content
	d.Written = append(d.Written, number)
	return nil
}

func (d *Document) AddForm(number int, form *pdf.XObject, content []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := fmt.Sprintf("%sR%d", form.Name, len(d.Forms)+1)
	d.Forms[name] = content

	clone := *form
	clone.Name = name
	clone.Content = content
	d.pages[number-1].resources.XObjects[name] = &clone
	return name, nil
}
