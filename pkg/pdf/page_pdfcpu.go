package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFCPUPage implements the Page interface using pdfcpu
type PDFCPUPage struct {
	doc      *PDFDocument
	number   int
	dict     types.Dict
	mediaBox Rect
	rotation int

	resourcesObj types.Object
	ownResources bool
	resources    *pdfcpuResources

	content []byte
	loaded  bool
}

func newPDFCPUPage(doc *PDFDocument, number int) (*PDFCPUPage, error) {
	ctx := doc.ctx
	if number < 1 || number > ctx.PageCount {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", number, ctx.PageCount)
	}

	// Get page dictionary and inherited attributes
	dict, _, attrs, err := ctx.PageDict(number, false)
	if err != nil {
		return nil, &DocumentError{Op: fmt.Sprintf("get page dict %d", number), Err: err}
	}
	if dict == nil {
		return nil, &DocumentError{Op: fmt.Sprintf("get page dict %d", number), Err: fmt.Errorf("page not found")}
	}

	p := &PDFCPUPage{
		doc:      doc,
		number:   number,
		dict:     dict,
		mediaBox: NewRect(0, 0, 612, 792), // US Letter if the page tree has no MediaBox
	}

	if attrs != nil {
		if mb := attrs.MediaBox; mb != nil {
			p.mediaBox = NewRect(mb.LL.X, mb.LL.Y, mb.UR.X, mb.UR.Y)
		}
		p.rotation = attrs.Rotate
	}

	// Resources set on the page itself take precedence over inherited ones
	if res, ok := dict["Resources"]; ok && res != nil {
		p.resourcesObj = res
		_, p.ownResources = res.(types.Dict)
	} else if attrs != nil && attrs.Resources != nil {
		p.resourcesObj = attrs.Resources
	}

	p.resources = newPDFCPUResources(doc, p.resourcesObj, nil, 0)
	return p, nil
}

// Number returns the page number (1-based)
func (p *PDFCPUPage) Number() int {
	return p.number
}

// MediaBox returns the page boundaries
func (p *PDFCPUPage) MediaBox() Rect {
	return p.mediaBox
}

// Rotation returns the page rotation in degrees
func (p *PDFCPUPage) Rotation() int {
	return p.rotation
}

// Resources returns the page's resources
func (p *PDFCPUPage) Resources() Resources {
	return p.resources
}

// Content returns the decoded content streams of the page joined by newlines
func (p *PDFCPUPage) Content() ([]byte, error) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()

	if p.loaded {
		return p.content, nil
	}

	content, err := p.doc.contentStreams(p.dict["Contents"])
	if err != nil {
		return nil, fmt.Errorf("failed to extract content of page %d: %w", p.number, err)
	}
	p.content = content
	p.loaded = true
	return content, nil
}

// contentStreams decodes a Contents entry: a single stream or an array of streams
func (d *PDFDocument) contentStreams(contents types.Object) ([]byte, error) {
	if contents == nil {
		return nil, nil
	}

	obj, err := d.ctx.Dereference(deref(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to dereference content: %w", err)
	}

	var streams [][]byte
	switch v := obj.(type) {
	case types.StreamDict:
		data, err := decodeStream(&v)
		if err != nil {
			return nil, err
		}
		streams = append(streams, data)

	case types.Array:
		for i, item := range v {
			sd, _, err := d.ctx.DereferenceStreamDict(deref(item))
			if err != nil {
				return nil, fmt.Errorf("failed to dereference content stream %d: %w", i, err)
			}
			if sd == nil {
				continue
			}
			data, err := decodeStream(sd)
			if err != nil {
				return nil, err
			}
			streams = append(streams, data)
		}

	default:
		return nil, fmt.Errorf("unexpected Contents type %T", obj)
	}

	return combineContentStreams(streams), nil
}

// decodeStream decodes a stream dictionary
func decodeStream(sd *types.StreamDict) ([]byte, error) {
	if sd.Content == nil {
		if err := sd.Decode(); err != nil {
			return nil, fmt.Errorf("failed to decode stream: %w", err)
		}
	}
	return sd.Content, nil
}

// combineContentStreams joins multiple content streams. Operators may not
// span stream boundaries, so a newline separator keeps tokens apart.
func combineContentStreams(streams [][]byte) []byte {
	if len(streams) == 1 {
		return streams[0]
	}
	var combined []byte
	for i, stream := range streams {
		if i > 0 {
			combined = append(combined, '\n')
		}
		combined = append(combined, stream...)
	}
	return combined
}

// deref normalizes pointer references to the value form pdfcpu dereferences
func deref(o types.Object) types.Object {
	if ir, ok := o.(*types.IndirectRef); ok && ir != nil {
		return *ir
	}
	return o
}
