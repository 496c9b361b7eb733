package pdf

// Document is an opened PDF exposing its pages
type Document interface {
	// PageCount returns the total number of pages
	PageCount() int

	// Page returns a page by number (1-based)
	Page(number int) (Page, error)
}

// Page is a single page of a document
type Page interface {
	// Number returns the page number (1-based)
	Number() int

	// MediaBox returns the page boundaries in default user space
	MediaBox() Rect

	// Content returns the page's content streams decoded and concatenated
	Content() ([]byte, error)

	// Resources returns the page's resource dictionary
	Resources() Resources
}

// Resources resolves the named resources used by a content stream
type Resources interface {
	// Font returns the font registered under name
	Font(name string) (*Font, error)

	// XObject returns the external object registered under name
	XObject(name string) (*XObject, error)
}

// Writer replaces page content
type Writer interface {
	// SetContent replaces all content streams of a page with one stream
	SetContent(page int, content []byte) error
}

// FormStore registers rewritten copies of form XObjects
type FormStore interface {
	// AddForm stores content as a copy of form, available to page under the returned name
	AddForm(page int, form *XObject, content []byte) (string, error)
}

// XObject subtypes
const (
	XObjectImage = "Image"
	XObjectForm  = "Form"
)

// XObject is an external object referenced by the Do operator
type XObject struct {
	Name    string
	Subtype string

	// Form attributes, in form space
	BBox   Rect
	Matrix Matrix

	// Content is the decoded content stream of a form
	Content []byte

	// Resources of a form, falling back to the resources of the invoking stream
	Resources Resources

	// source is the adapter's handle used when cloning a form
	source any
}

// IsForm reports whether the XObject is a form
func (x *XObject) IsForm() bool {
	return x.Subtype == XObjectForm
}

// IsImage reports whether the XObject is an image
func (x *XObject) IsImage() bool {
	return x.Subtype == XObjectImage
}
