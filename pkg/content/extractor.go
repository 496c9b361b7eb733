package content

import (
	"fmt"
	"iter"
	"slices"

	"github.com/pyhub-apps/pdfredact-golang/pkg/parser"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// Option configures an Extractor
type Option func(*extractorConfig)

type extractorConfig struct {
	warn         func(error)
	maxFormDepth int
	forms        bool
}

// WithWarningHandler receives recovered parse, decode and geometry errors
func WithWarningHandler(fn func(error)) Option {
	return func(c *extractorConfig) {
		c.warn = fn
	}
}

// WithMaxFormDepth limits how deep nested form XObjects are followed
func WithMaxFormDepth(n int) Option {
	return func(c *extractorConfig) {
		c.maxFormDepth = n
	}
}

// WithForms controls whether text inside form XObjects is extracted
func WithForms(enabled bool) Option {
	return func(c *extractorConfig) {
		c.forms = enabled
	}
}

// Extractor recovers text runs with their geometry from content streams
type Extractor struct {
	cfg extractorConfig
}

// NewExtractor creates an extractor
func NewExtractor(opts ...Option) *Extractor {
	cfg := extractorConfig{
		warn:         func(error) {},
		maxFormDepth: DefaultMaxFormDepth,
		forms:        true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Extractor{cfg: cfg}
}

// Runs returns the text runs of a content stream in rendering order, one
// per text-showing operation. Interpretation happens while the sequence is
// consumed and stops when the consumer stops.
func (e *Extractor) Runs(page int, content []byte, resources pdf.Resources, ctm pdf.Matrix) iter.Seq[pdf.TextRun] {
	return func(yield func(pdf.TextRun) bool) {
		ops, errs := parser.ParseOperations(content)
		for _, err := range errs {
			e.cfg.warn(err)
		}

		in := NewInterpreter(resources, ctm)
		in.SetMaxFormDepth(e.cfg.maxFormDepth)
		in.Run(ops, &runCollector{cfg: &e.cfg, in: in, page: page, yield: yield})
	}
}

// PageRuns returns the text runs of a page
func (e *Extractor) PageRuns(page pdf.Page) (iter.Seq[pdf.TextRun], error) {
	content, err := page.Content()
	if err != nil {
		return nil, err
	}
	return e.Runs(page.Number(), content, page.Resources(), pdf.IdentityMatrix()), nil
}

// ExtractRuns collects the text runs of a page
func ExtractRuns(page pdf.Page, opts ...Option) ([]pdf.TextRun, error) {
	runs, err := NewExtractor(opts...).PageRuns(page)
	if err != nil {
		return nil, fmt.Errorf("failed to extract runs of page %d: %w", page.Number(), err)
	}
	return slices.Collect(runs), nil
}

// runCollector turns text-showing operations into TextRuns
type runCollector struct {
	cfg   *extractorConfig
	in    *Interpreter
	page  int
	yield func(pdf.TextRun) bool
}

func (c *runCollector) Operation(*parser.Operation) {}
func (c *runCollector) PaintPath(*Path) {}
func (c *runCollector) PaintImage(*parser.Operation, pdf.Rect) {}
func (c *runCollector) PaintShading(*parser.Operation) {}
func (c *runCollector) Warning(err error) { c.cfg.warn(err) }

func (c *runCollector) ShowText(op *parser.Operation, show *TextShow) {
	if show.GeometryErr != nil {
		c.cfg.warn(show.GeometryErr)
		return
	}
	if show.DecodeErr != nil {
		c.cfg.warn(show.DecodeErr)
	}
	if show.Text == "" {
		return
	}
	if !c.yield(pdf.TextRun{Text: show.Text, Page: c.page, Rect: show.Bounds}) {
		c.in.Stop()
	}
}

func (c *runCollector) PaintForm(op *parser.Operation, form *pdf.XObject) {
	if !c.cfg.forms {
		return
	}
	sub, err := c.in.Form(form)
	if err != nil {
		c.cfg.warn(err)
		return
	}

	ops, errs := parser.ParseOperations(form.Content)
	for _, err := range errs {
		c.cfg.warn(err)
	}

	sub.Run(ops, &runCollector{cfg: c.cfg, in: sub, page: c.page, yield: c.yield})
	if sub.Stopped() {
		c.in.Stop()
	}
}
