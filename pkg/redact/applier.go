package redact

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pyhub-apps/pdfredact-golang/pkg/content"
	"github.com/pyhub-apps/pdfredact-golang/pkg/parser"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// boxMargin pads the outer box of exclusion clips beyond everything painted
const boxMargin = 10

// Stats counts what the applier removed from a content stream
type Stats struct {
	TextRemoved    int
	PathsRemoved   int
	PathsClipped   int
	ImagesRemoved  int
	ImagesClipped  int
	FormsRemoved   int
	FormsRewritten int
	FormsClipped   int
	ShadingClipped int
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.TextRemoved += other.TextRemoved
	s.PathsRemoved += other.PathsRemoved
	s.PathsClipped += other.PathsClipped
	s.ImagesRemoved += other.ImagesRemoved
	s.ImagesClipped += other.ImagesClipped
	s.FormsRemoved += other.FormsRemoved
	s.FormsRewritten += other.FormsRewritten
	s.FormsClipped += other.FormsClipped
	s.ShadingClipped += other.ShadingClipped
}

// Total returns the number of removed or clipped objects
func (s Stats) Total() int {
	return s.TextRemoved + s.PathsRemoved + s.PathsClipped + s.ImagesRemoved + s.ImagesClipped +
		s.FormsRemoved + s.FormsRewritten + s.FormsClipped + s.ShadingClipped
}

// Result is the rewritten content of one page
type Result struct {
	Content []byte
	Stats   Stats
}

// ApplierOption configures an Applier
type ApplierOption func(*Applier)

// WithFillColor sets the color painted over redacted areas
func WithFillColor(c pdf.Color) ApplierOption {
	return func(a *Applier) {
		a.fill = c
	}
}

// WithFormStore enables rewriting of form XObjects that overlap a redaction
func WithFormStore(store pdf.FormStore) ApplierOption {
	return func(a *Applier) {
		a.forms = store
	}
}

// WithApplierWarnings receives recovered problems found while rewriting
func WithApplierWarnings(fn func(error)) ApplierOption {
	return func(a *Applier) {
		a.warn = fn
	}
}

// Applier removes the content under redaction rectangles from content
// streams and paints the rectangles over the result
type Applier struct {
	fill  pdf.Color
	forms pdf.FormStore
	warn  func(error)
}

// NewApplier creates an applier painting white rectangles
func NewApplier(opts ...ApplierOption) *Applier {
	a := &Applier{
		fill: pdf.White,
		warn: func(error) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplyPage rewrites the content of a page
func (a *Applier) ApplyPage(page pdf.Page, rects []pdf.Rect) (Result, error) {
	data, err := page.Content()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read content of page %d: %w", page.Number(), err)
	}
	return a.Apply(page, data, rects)
}

// Apply rewrites data, the content of page, so that nothing painted inside
// rects remains, and paints the rectangles in the fill color. Data is
// returned unchanged when rects is empty.
func (a *Applier) Apply(page pdf.Page, data []byte, rects []pdf.Rect) (Result, error) {
	if len(rects) == 0 {
		return Result{Content: data}, nil
	}

	box := page.MediaBox()
	for _, r := range rects {
		box = box.Union(r)
	}

	in := content.NewInterpreter(page.Resources(), pdf.IdentityMatrix())
	rw := &rewriter{
		a:     a,
		page:  page.Number(),
		rects: rects,
		box:   box,
	}
	if err := rw.rewrite(in, data); err != nil {
		return Result{}, err
	}

	var out bytes.Buffer
	out.Grow(rw.out.Len() + 64*len(rects))
	out.WriteString("q\n")
	out.Write(rw.out.Bytes())
	out.WriteString("\n")
	out.WriteString(rw.closing)
	out.WriteString("Q\n")
	a.writeMasks(&out, rects)

	return Result{Content: out.Bytes(), Stats: rw.stats}, nil
}

// writeMasks paints every rectangle in default user space
func (a *Applier) writeMasks(buf *bytes.Buffer, rects []pdf.Rect) {
	r, g, b := a.fill.Components()
	color := fmt.Sprintf("%s %s %s rg", parser.FormatNumber(r), parser.FormatNumber(g), parser.FormatNumber(b))
	for _, rect := range rects {
		rect = rect.Normalize()
		fmt.Fprintf(buf, "q %s %s %s %s %s re f Q\n", color,
			parser.FormatNumber(rect.Left), parser.FormatNumber(rect.Bottom),
			parser.FormatNumber(rect.Width()), parser.FormatNumber(rect.Height()))
	}
}

// rewriter copies a content stream operation by operation, leaving out or
// clipping what intersects the redaction rectangles
type rewriter struct {
	a     *Applier
	page  int
	rects []pdf.Rect
	box   pdf.Rect

	in  *content.Interpreter
	src []byte
	ops []parser.Operation
	out bytes.Buffer
	err error

	// closing ends text objects and saves left open by the stream
	closing string

	stats Stats
}

func (rw *rewriter) rewrite(in *content.Interpreter, data []byte) error {
	ops, errs := parser.ParseOperations(data)
	for _, err := range errs {
		rw.a.warn(err)
	}

	rw.in = in
	rw.src = data
	rw.ops = ops
	in.Run(ops, rw)
	if rw.err != nil {
		return rw.err
	}

	// Bytes after the last operation are whitespace or unparsable input
	tail := 0
	if len(ops) > 0 {
		tail = ops[len(ops)-1].End
	}
	rw.out.Write(data[tail:])

	var closing strings.Builder
	if in.TextObject().Active {
		closing.WriteString("ET\n")
	}
	closing.WriteString(strings.Repeat("Q\n", in.SaveDepth()))
	rw.closing = closing.String()
	return nil
}

// gap writes the bytes between the previous operation and op. An operation
// the interpreter skipped lies before that range and is never written.
func (rw *rewriter) gap(op *parser.Operation) {
	start := 0
	if op.Index > 0 {
		start = rw.ops[op.Index-1].End
	}
	rw.out.Write(rw.src[start:op.Start])
}

func (rw *rewriter) raw(op *parser.Operation) []byte {
	return rw.src[op.Start:op.End]
}

func (rw *rewriter) copy(op *parser.Operation) {
	rw.gap(op)
	rw.out.Write(rw.raw(op))
}

func (rw *rewriter) replace(op *parser.Operation, s string) {
	rw.gap(op)
	rw.out.WriteString(s)
}

// hits returns the rectangles overlapping b and whether one of them contains b
func (rw *rewriter) hits(b pdf.Rect) ([]pdf.Rect, bool) {
	var hit []pdf.Rect
	inside := false
	for _, r := range rw.rects {
		if !r.Overlaps(b) {
			continue
		}
		hit = append(hit, r)
		if r.ContainsRect(b) {
			inside = true
		}
	}
	return hit, inside
}

// exclusionClip builds "outer box + rect W* n" for every rectangle, in the
// user space of ctm
func (rw *rewriter) exclusionClip(rects []pdf.Rect, extra pdf.Rect, ctm pdf.Matrix) (string, error) {
	inv, err := ctm.Invert()
	if err != nil {
		return "", err
	}

	outer := rw.box.Union(extra)
	outer = pdf.Rect{
		Left:   outer.Left - boxMargin,
		Bottom: outer.Bottom - boxMargin,
		Right:  outer.Right + boxMargin,
		Top:    outer.Top + boxMargin,
	}

	var sb strings.Builder
	for _, r := range rects {
		writePolygon(&sb, inv, outer.Corners())
		writePolygon(&sb, inv, r.Normalize().Corners())
		sb.WriteString("W* n\n")
	}
	return sb.String(), nil
}

func writePolygon(sb *strings.Builder, m pdf.Matrix, corners [4]pdf.Point) {
	for i, c := range corners {
		p := m.TransformPoint(c)
		sb.WriteString(parser.FormatNumber(p.X))
		sb.WriteByte(' ')
		sb.WriteString(parser.FormatNumber(p.Y))
		if i == 0 {
			sb.WriteString(" m ")
		} else {
			sb.WriteString(" l ")
		}
	}
	sb.WriteString("h\n")
}

func (rw *rewriter) Operation(op *parser.Operation) {
	rw.copy(op)
}

func (rw *rewriter) Warning(err error) {
	rw.a.warn(err)
}

func (rw *rewriter) ShowText(op *parser.Operation, show *content.TextShow) {
	if show.GeometryErr != nil {
		// Nothing visible is painted through a singular matrix
		rw.copy(op)
		return
	}
	if hit, _ := rw.hits(show.Bounds); len(hit) == 0 {
		rw.copy(op)
		return
	}

	rw.stats.TextRemoved++

	var sb strings.Builder
	switch op.Kind {
	case parser.OpNextLineShowText:
		sb.WriteString("T* ")
	case parser.OpNextLineShowTextSpaced:
		n := len(op.Operands)
		sb.WriteString(parser.Format(op.Operands[n-3]))
		sb.WriteString(" Tw ")
		sb.WriteString(parser.Format(op.Operands[n-2]))
		sb.WriteString(" Tc T* ")
	}

	scale := show.FontSize * show.HScale
	switch {
	case scale != 0:
		sb.WriteString("[")
		sb.WriteString(parser.FormatNumber(-show.Advance * 1000 / scale))
		sb.WriteString("] TJ")
	case show.Advance != 0:
		rw.a.warn(fmt.Errorf("page %d: cannot preserve advance of removed %s at offset %d", rw.page, op.Operator, op.Start))
	}
	rw.replace(op, strings.TrimSpace(sb.String()))
}

func (rw *rewriter) PaintPath(path *content.Path) {
	if len(path.Ops) == 0 && path.Paint == nil {
		return
	}
	first := path.Paint
	if len(path.Ops) > 0 {
		first = path.Ops[0]
	}
	last := path.Paint
	if last == nil {
		last = path.Ops[len(path.Ops)-1]
	}
	passThrough := func() {
		rw.gap(first)
		rw.out.Write(rw.src[first.Start:last.End])
	}

	if !path.Painted() || len(path.Points) == 0 {
		passThrough()
		return
	}

	bounds := path.Bounds()
	hit, inside := rw.hits(bounds)
	if len(hit) == 0 {
		passThrough()
		return
	}

	construction := path.Ops
	var clip *parser.Operation
	if path.Clip != parser.OpUnknown {
		construction = nil
		for _, op := range path.Ops {
			if op.Kind.IsClip() {
				clip = op
				continue
			}
			construction = append(construction, op)
		}
	}

	if inside {
		rw.stats.PathsRemoved++
		rw.gap(first)
		if clip != nil {
			// The clip outlives the painting, only the paint goes
			rw.writeOps(construction)
			rw.out.Write(rw.raw(clip))
			rw.out.WriteString(" n")
		}
		return
	}

	excl, err := rw.exclusionClip(hit, bounds, path.CTM)
	if err != nil {
		rw.a.warn(err)
		passThrough()
		return
	}

	rw.stats.PathsClipped++
	rw.gap(first)
	if clip != nil {
		rw.writeOps(construction)
		rw.out.Write(rw.raw(clip))
		rw.out.WriteString(" n\n")
	}
	rw.out.WriteString("q\n")
	rw.out.WriteString(excl)
	rw.writeOps(construction)
	rw.out.Write(rw.raw(path.Paint))
	rw.out.WriteString("\nQ")
}

func (rw *rewriter) writeOps(ops []*parser.Operation) {
	for _, op := range ops {
		rw.out.Write(rw.raw(op))
		rw.out.WriteByte('\n')
	}
}

func (rw *rewriter) PaintImage(op *parser.Operation, bounds pdf.Rect) {
	hit, inside := rw.hits(bounds)
	switch {
	case len(hit) == 0:
		rw.copy(op)
	case inside:
		rw.stats.ImagesRemoved++
		rw.replace(op, "")
	default:
		if rw.clipOp(op, hit, bounds) {
			rw.stats.ImagesClipped++
		}
	}
}

// clipOp wraps a painting operation in exclusion clips. It reports false
// when the operation had to be passed through unclipped.
func (rw *rewriter) clipOp(op *parser.Operation, rects []pdf.Rect, bounds pdf.Rect) bool {
	excl, err := rw.exclusionClip(rects, bounds, rw.in.State().CTM)
	if err != nil {
		rw.a.warn(err)
		rw.copy(op)
		return false
	}
	rw.gap(op)
	rw.out.WriteString("q\n")
	rw.out.WriteString(excl)
	rw.out.Write(rw.raw(op))
	rw.out.WriteString("\nQ")
	return true
}

func (rw *rewriter) PaintForm(op *parser.Operation, form *pdf.XObject) {
	bounds := rw.in.FormBounds(form)
	hit, inside := rw.hits(bounds)
	switch {
	case len(hit) == 0:
		rw.copy(op)
		return
	case inside:
		rw.stats.FormsRemoved++
		rw.replace(op, "")
		return
	}

	// Nested forms are clipped, only forms painted by the page are cloned
	if rw.a.forms == nil || rw.in.FormDepth() > 0 {
		if rw.clipOp(op, hit, bounds) {
			rw.stats.FormsClipped++
		}
		return
	}

	sub, err := rw.in.Form(form)
	if err != nil {
		rw.a.warn(err)
		if rw.clipOp(op, hit, bounds) {
			rw.stats.FormsClipped++
		}
		return
	}

	inner := &rewriter{a: rw.a, page: rw.page, rects: rw.rects, box: rw.box}
	if err := inner.rewrite(sub, form.Content); err != nil {
		rw.err = err
		rw.in.Stop()
		return
	}

	var body bytes.Buffer
	body.WriteString("q\n")
	body.Write(inner.out.Bytes())
	body.WriteString("\n")
	body.WriteString(inner.closing)
	body.WriteString("Q\n")

	name, err := rw.a.forms.AddForm(rw.page, form, body.Bytes())
	if err != nil {
		rw.err = fmt.Errorf("failed to store rewritten form %s: %w", form.Name, err)
		rw.in.Stop()
		return
	}

	rw.stats.Add(inner.stats)
	rw.stats.FormsRewritten++
	rw.replace(op, parser.Format(parser.PDFName(name))+" Do")
}

func (rw *rewriter) PaintShading(op *parser.Operation) {
	// sh fills the whole clip region, so every rectangle is excluded
	if rw.clipOp(op, rw.rects, rw.box) {
		rw.stats.ShadingClipped++
	}
}
