// Package pdftest builds small PDF documents in memory for tests.
//
// Every page gets the same resources:
//
//	/F1  TestFont, a simple font whose glyphs are 500 units wide with ascent
//	     750 and descent -250
//	/F2  Helvetica, a standard 14 font without widths
//	/Im1 a 1x1 gray image
//
// plus the forms added with Page.Form.
package pdftest

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Letter is the default media box
var Letter = [4]float64{0, 0, 612, 792}

// Form is a form XObject available to a page
type Form struct {
	BBox    [4]float64
	Matrix  [6]float64
	Content string
}

// Page describes one page
type Page struct {
	Content  string
	MediaBox [4]float64
	Forms    map[string]Form
}

// Form registers a form XObject under name
func (p *Page) Form(name string, f Form) *Page {
	if p.Forms == nil {
		p.Forms = map[string]Form{}
	}
	p.Forms[name] = f
	return p
}

// Builder assembles a document page by page
type Builder struct {
	pages []*Page
}

// New creates an empty builder
func New() *Builder {
	return &Builder{}
}

// AddPage appends a letter sized page showing content
func (b *Builder) AddPage(content string) *Page {
	p := &Page{Content: content, MediaBox: Letter}
	b.pages = append(b.pages, p)
	return p
}

// Bytes serializes the document
func (b *Builder) Bytes() []byte {
	w := &writer{}

	// Fixed objects first, pages are numbered after them
	const (
		catalogObj = iota + 1
		pagesObj
		testFontObj
		descriptorObj
		helveticaObj
		imageObj
		firstPageObj
	)

	next := firstPageObj
	type pageObjs struct {
		page, content int
		forms         map[string]int
	}
	objs := make([]pageObjs, len(b.pages))
	for i, p := range b.pages {
		objs[i].page = next
		objs[i].content = next + 1
		next += 2
		objs[i].forms = map[string]int{}
		for _, name := range sortedKeys(p.Forms) {
			objs[i].forms[name] = next
			next++
		}
	}

	w.header()

	kids := make([]string, len(b.pages))
	for i := range b.pages {
		kids[i] = fmt.Sprintf("%d 0 R", objs[i].page)
	}
	w.object(catalogObj, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))
	w.object(pagesObj, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(b.pages)))

	widths := strings.TrimSpace(strings.Repeat("500 ", 126-32+1))
	w.object(testFontObj, fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /TestFont /FirstChar 32 /LastChar 126 /Widths [%s] /FontDescriptor %d 0 R /Encoding /WinAnsiEncoding >>",
		widths, descriptorObj))
	w.object(descriptorObj,
		"<< /Type /FontDescriptor /FontName /TestFont /Flags 32 /FontBBox [0 -250 500 750] /ItalicAngle 0 /Ascent 750 /Descent -250 /CapHeight 700 /StemV 80 >>")
	w.object(helveticaObj, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	w.stream(imageObj, "/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", "\x80")

	for i, p := range b.pages {
		o := objs[i]

		var xobjects strings.Builder
		xobjects.WriteString(fmt.Sprintf("/Im1 %d 0 R", imageObj))
		for _, name := range sortedKeys(p.Forms) {
			xobjects.WriteString(fmt.Sprintf(" /%s %d 0 R", name, o.forms[name]))
		}
		resources := fmt.Sprintf("<< /Font << /F1 %d 0 R /F2 %d 0 R >> /XObject << %s >> >>",
			testFontObj, helveticaObj, xobjects.String())

		w.object(o.page, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox %s /Resources %s /Contents %d 0 R >>",
			pagesObj, numbers(p.MediaBox[:]), resources, o.content))
		w.stream(o.content, "", p.Content)

		for _, name := range sortedKeys(p.Forms) {
			f := p.Forms[name]
			m := f.Matrix
			if m == ([6]float64{}) {
				m = [6]float64{1, 0, 0, 1, 0, 0}
			}
			attrs := fmt.Sprintf("/Type /XObject /Subtype /Form /BBox %s /Matrix %s /Resources %s",
				numbers(f.BBox[:]), numbers(m[:]), resources)
			w.stream(o.forms[name], attrs, f.Content)
		}
	}

	return w.finish(catalogObj, next)
}

type writer struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *writer) header() {
	w.offsets = map[int]int{}
	w.buf.WriteString("%PDF-1.4\n%\xE2\xE3\xCF\xD3\n")
}

func (w *writer) object(num int, body string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (w *writer) stream(num int, attrs, data string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n%s\nendstream\nendobj\n", num, attrs, len(data), data)
}

func (w *writer) finish(root, size int) []byte {
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", size)
	w.buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[num])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, root, xref)
	return w.buf.Bytes()
}

func numbers(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sortedKeys(m map[string]Form) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
