package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFDocument implements Document, Writer and FormStore using pdfcpu
type PDFDocument struct {
	ctx *model.Context

	// mu guards the page cache and lazily resolved resources
	mu    sync.Mutex
	pages map[int]*PDFCPUPage

	formSeq int
}

// Open reads a PDF from r. A nil configuration selects relaxed validation.
func Open(r io.ReadSeeker, conf *model.Configuration) (*PDFDocument, error) {
	if conf == nil {
		conf = NewConfiguration()
	}

	ctx, err := api.ReadContext(r, conf)
	if err != nil {
		return nil, &DocumentError{Op: "read PDF context", Err: err}
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, &DocumentError{Op: "validate PDF", Err: err}
	}

	if ctx.PageCount == 0 {
		if err := ctx.EnsurePageCount(); err != nil {
			return nil, &DocumentError{Op: "count pages", Err: err}
		}
	}

	return &PDFDocument{
		ctx:   ctx,
		pages: make(map[int]*PDFCPUPage),
	}, nil
}

// OpenBytes reads a PDF held in memory
func OpenBytes(data []byte, conf *model.Configuration) (*PDFDocument, error) {
	return Open(bytes.NewReader(data), conf)
}

// OpenFile opens a PDF file
func OpenFile(path string, conf *model.Configuration) (*PDFDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentError{Op: "open file", Err: err}
	}
	return OpenBytes(data, conf)
}

// NewConfiguration returns the pdfcpu configuration used for reading
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Context exposes the underlying pdfcpu context
func (d *PDFDocument) Context() *model.Context {
	return d.ctx
}

// PageCount returns the total number of pages
func (d *PDFDocument) PageCount() int {
	return d.ctx.PageCount
}

// Page returns a page by number (1-based). Pages are loaded once.
func (d *PDFDocument) Page(number int) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page(number)
}

func (d *PDFDocument) page(number int) (*PDFCPUPage, error) {
	if p, ok := d.pages[number]; ok {
		return p, nil
	}
	p, err := newPDFCPUPage(d, number)
	if err != nil {
		return nil, err
	}
	d.pages[number] = p
	return p, nil
}

// SetContent replaces all content streams of a page with one Flate encoded stream
func (d *PDFDocument) SetContent(number int, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(number)
	if err != nil {
		return err
	}

	ir, err := d.newStream(content, nil)
	if err != nil {
		return fmt.Errorf("failed to write content of page %d: %w", number, err)
	}

	p.dict["Contents"] = *ir
	p.content = content
	p.loaded = true
	return nil
}

// AddForm stores content as a new form XObject copying the attributes of
// form, and registers it in the resources of the page
func (d *PDFDocument) AddForm(number int, form *XObject, content []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.page(number)
	if err != nil {
		return "", err
	}

	src, ok := form.source.(types.Dict)
	if !ok {
		return "", fmt.Errorf("form %s was not loaded from this document", form.Name)
	}

	ir, err := d.newStream(content, src)
	if err != nil {
		return "", fmt.Errorf("failed to write form %s: %w", form.Name, err)
	}

	resources, err := d.ownResources(p)
	if err != nil {
		return "", err
	}

	xobjects := types.Dict{}
	if existing, err := d.ctx.DereferenceDict(resources["XObject"]); err == nil {
		for k, v := range existing {
			xobjects[k] = v
		}
	}

	var name string
	for {
		d.formSeq++
		name = fmt.Sprintf("%sR%d", form.Name, d.formSeq)
		if _, taken := xobjects[name]; !taken {
			break
		}
	}
	xobjects[name] = *ir
	resources["XObject"] = xobjects

	// Drop lazily resolved entries so the new form is found
	p.resources = newPDFCPUResources(d, resources, nil, 0)
	return name, nil
}

// ownResources gives the page a private, directly held resource dictionary
// so that additions do not leak into resources shared with other pages
func (d *PDFDocument) ownResources(p *PDFCPUPage) (types.Dict, error) {
	if p.ownResources {
		return p.dict["Resources"].(types.Dict), nil
	}
	inherited, err := d.ctx.DereferenceDict(p.resourcesObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resources of page %d: %w", p.number, err)
	}
	own := types.Dict{}
	for k, v := range inherited {
		own[k] = v
	}
	p.dict["Resources"] = own
	p.resourcesObj = own
	p.ownResources = true
	return own, nil
}

// newStream adds a Flate encoded stream object. Entries of attrs other than
// the stream bookkeeping keys are copied into the new stream dictionary.
func (d *PDFDocument) newStream(content []byte, attrs types.Dict) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	for k, v := range attrs {
		switch k {
		case "Length", "Filter", "DecodeParms", "DL":
			continue
		}
		sd.Dict[k] = v
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return d.ctx.IndRefForNewObject(*sd)
}

// Write serializes the document to w
func (d *PDFDocument) Write(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := api.WriteContext(d.ctx, w); err != nil {
		return &DocumentError{Op: "write PDF", Err: err}
	}
	return nil
}

// Bytes serializes the document into memory
func (d *PDFDocument) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
