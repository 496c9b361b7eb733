package content

import (
	"fmt"
	"strings"

	"github.com/pyhub-apps/pdfredact-golang/pkg/parser"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// DefaultMaxFormDepth bounds the nesting of form XObjects
const DefaultMaxFormDepth = 8

// Handler receives the operations of a content stream as the Interpreter
// walks them. State queried from the Interpreter during a callback is the
// state in effect for that operation.
type Handler interface {
	// Operation is called for every operation not covered by another
	// callback, after the interpreter applied it. Unknown and malformed
	// operations are delivered here unchanged.
	Operation(op *parser.Operation)

	// ShowText is called for Tj, TJ, ' and "
	ShowText(op *parser.Operation, show *TextShow)

	// PaintPath is called when a path is painted or ends with n. Paths left
	// without a painting operator arrive with a nil Paint.
	PaintPath(path *Path)

	// PaintImage is called for inline images and image XObjects
	PaintImage(op *parser.Operation, bounds pdf.Rect)

	// PaintForm is called for form XObjects
	PaintForm(op *parser.Operation, form *pdf.XObject)

	// PaintShading is called for sh, which paints the whole clipping region
	PaintShading(op *parser.Operation)

	// Warning reports a recovered problem
	Warning(err error)
}

// TextShow describes the text painted by one text-showing operation
type TextShow struct {
	Text     string
	Font     *pdf.Font
	FontSize float64
	HScale   float64 // Th as a fraction

	// Advance is the horizontal displacement applied to the text matrix
	Advance float64

	// Bounds covers the shown glyphs from descent to ascent in default user space
	Bounds pdf.Rect

	// DecodeErr reports bytes that could not be mapped to text
	DecodeErr error

	// GeometryErr is set when the text rendering matrix is singular
	GeometryErr error
}

// Path is a path under construction together with the operation that ends it
type Path struct {
	Ops    []*parser.Operation // construction and clipping operations
	Clip   parser.OpKind       // OpClip, OpClipEvenOdd or OpUnknown
	Paint  *parser.Operation
	Points []pdf.Point // construction points in default user space
	CTM    pdf.Matrix

	current pdf.Point // in user space
	start   pdf.Point
}

// Bounds returns the bounding box of the construction points. Curves are
// bounded by their control points.
func (p *Path) Bounds() pdf.Rect {
	return pdf.BoundingRect(p.Points...)
}

// Painted reports whether the path is stroked or filled
func (p *Path) Painted() bool {
	return p.Paint != nil && p.Paint.Kind != parser.OpEndPath
}

// Interpreter tracks graphics and text state through a content stream and
// dispatches each operation to a Handler according to its kind
type Interpreter struct {
	resources pdf.Resources
	stack     *StateStack
	text      TextObject
	path      *Path

	depth    int
	maxDepth int
	stopped  bool
}

// NewInterpreter creates an interpreter starting with ctm as the CTM
func NewInterpreter(resources pdf.Resources, ctm pdf.Matrix) *Interpreter {
	return &Interpreter{
		resources: resources,
		stack:     NewStateStack(NewGraphicsState(ctm)),
		maxDepth:  DefaultMaxFormDepth,
	}
}

// SetMaxFormDepth changes the nesting limit for Form
func (in *Interpreter) SetMaxFormDepth(n int) {
	in.maxDepth = n
}

// State returns the current graphics state
func (in *Interpreter) State() *GraphicsState {
	return in.stack.Current()
}

// TextObject returns the current text matrices
func (in *Interpreter) TextObject() *TextObject {
	return &in.text
}

// SaveDepth returns the number of q operators not yet restored
func (in *Interpreter) SaveDepth() int {
	return in.stack.Depth()
}

// FormDepth returns the nesting level of the interpreted stream, 0 for pages
func (in *Interpreter) FormDepth() int {
	return in.depth
}

// Stop ends Run after the current operation
func (in *Interpreter) Stop() {
	in.stopped = true
}

// Stopped reports whether Stop was called
func (in *Interpreter) Stopped() bool {
	return in.stopped
}

// Form returns an interpreter for the content of a form XObject painted in
// the current state
func (in *Interpreter) Form(form *pdf.XObject) (*Interpreter, error) {
	if in.depth+1 > in.maxDepth {
		return nil, fmt.Errorf("form %s nested deeper than %d", form.Name, in.maxDepth)
	}

	resources := form.Resources
	if resources == nil {
		resources = in.resources
	}

	gs := in.State().Clone()
	gs.CTM = form.Matrix.Multiply(gs.CTM)

	return &Interpreter{
		resources: resources,
		stack:     NewStateStack(gs),
		depth:     in.depth + 1,
		maxDepth:  in.maxDepth,
	}, nil
}

// FormBounds returns the bounding box of a form painted in the current state
func (in *Interpreter) FormBounds(form *pdf.XObject) pdf.Rect {
	return form.Matrix.Multiply(in.State().CTM).TransformRect(form.BBox)
}

// Run interprets ops in order
func (in *Interpreter) Run(ops []parser.Operation, h Handler) {
	for i := range ops {
		if in.stopped {
			return
		}
		in.step(&ops[i], h)
	}
	if !in.stopped {
		in.flushPath(h)
	}
}

func (in *Interpreter) step(op *parser.Operation, h Handler) {
	if in.path != nil && !op.Kind.IsPathConstruction() && !op.Kind.IsClip() && !op.Kind.IsPathPainting() {
		in.flushPath(h)
	}

	gs := in.stack.Current()

	switch op.Kind {
	case parser.OpSave: // Save graphics state
		in.stack.Save()

	case parser.OpRestore: // Restore graphics state
		if !in.stack.Restore() {
			h.Warning(&parser.ParseError{Offset: op.Start, Msg: "Q without matching q"})
			return
		}

	case parser.OpConcat: // Concatenate matrix
		v, err := op.Floats(6)
		if err != nil {
			in.malformed(op, err, h)
			return
		}
		gs.CTM = pdf.NewMatrix([6]float64(v)).Multiply(gs.CTM)

	case parser.OpBeginText:
		in.text.Begin()

	case parser.OpEndText:
		in.text.End()

	case parser.OpMoveText:
		v, err := op.Floats(2)
		if err != nil {
			in.malformed(op, err, h)
			return
		}
		in.text.MoveLine(v[0], v[1])

	case parser.OpMoveTextSetLeading:
		v, err := op.Floats(2)
		if err != nil {
			in.malformed(op, err, h)
			return
		}
		gs.Leading = -v[1]
		in.text.MoveLine(v[0], v[1])

	case parser.OpSetTextMatrix:
		v, err := op.Floats(6)
		if err != nil {
			in.malformed(op, err, h)
			return
		}
		in.text.SetMatrix(pdf.NewMatrix([6]float64(v)))

	case parser.OpNextLine:
		in.text.MoveLine(0, -gs.Leading)

	case parser.OpSetFont:
		if err := in.setFont(op, gs, h); err != nil {
			in.malformed(op, err, h)
			return
		}

	case parser.OpSetCharSpacing, parser.OpSetWordSpacing, parser.OpSetHorizScaling,
		parser.OpSetLeading, parser.OpSetRise, parser.OpSetRenderMode:
		v, err := op.Floats(1)
		if err != nil {
			in.malformed(op, err, h)
			return
		}
		in.setTextParam(op.Kind, v[0], gs)

	case parser.OpShowText, parser.OpShowTextArray, parser.OpNextLineShowText, parser.OpNextLineShowTextSpaced:
		in.showText(op, gs, h)
		return

	case parser.OpMoveTo, parser.OpLineTo, parser.OpCurveTo, parser.OpCurveToV,
		parser.OpCurveToY, parser.OpClosePath, parser.OpRectangle:
		in.construct(op, gs, h)
		return

	case parser.OpClip, parser.OpClipEvenOdd:
		if in.path == nil {
			in.path = &Path{CTM: gs.CTM}
		}
		in.path.Ops = append(in.path.Ops, op)
		in.path.Clip = op.Kind
		return

	case parser.OpStroke, parser.OpCloseStroke, parser.OpFill, parser.OpFillEvenOdd,
		parser.OpFillStroke, parser.OpFillStrokeEvenOdd, parser.OpCloseFillStroke,
		parser.OpCloseFillStrokeEvenOdd, parser.OpEndPath:
		path := in.path
		if path == nil {
			path = &Path{CTM: gs.CTM}
		}
		path.Paint = op
		in.path = nil
		h.PaintPath(path)
		return

	case parser.OpPaintXObject:
		in.paintXObject(op, gs, h)
		return

	case parser.OpInlineImage:
		h.PaintImage(op, gs.CTM.TransformRect(pdf.NewRect(0, 0, 1, 1)))
		return

	case parser.OpShading:
		h.PaintShading(op)
		return
	}

	h.Operation(op)
}

// malformed reports an operation whose operands cannot be used. The
// operation is passed on unchanged and the state is left as it was.
func (in *Interpreter) malformed(op *parser.Operation, err error, h Handler) {
	h.Warning(&parser.ParseError{Offset: op.Start, Msg: err.Error()})
	h.Operation(op)
}

func (in *Interpreter) flushPath(h Handler) {
	if in.path == nil {
		return
	}
	path := in.path
	in.path = nil
	h.PaintPath(path)
}

func (in *Interpreter) setFont(op *parser.Operation, gs *GraphicsState, h Handler) error {
	if len(op.Operands) < 2 {
		return fmt.Errorf("Tf: expected 2 operands, got %d", len(op.Operands))
	}
	name, ok := op.Operands[len(op.Operands)-2].(parser.PDFName)
	if !ok {
		return fmt.Errorf("Tf: font operand is not a name")
	}
	size, ok := parser.ToFloat(op.Operands[len(op.Operands)-1])
	if !ok {
		return fmt.Errorf("Tf: size operand is not a number")
	}

	var font *pdf.Font
	var err error
	if in.resources != nil {
		font, err = in.resources.Font(string(name))
	} else {
		err = fmt.Errorf("no resources for font %s", name)
	}
	if err != nil {
		h.Warning(fmt.Errorf("using fallback metrics: %w", err))
		font = pdf.FallbackFont(string(name))
	}

	gs.Font = font
	gs.FontName = string(name)
	gs.FontSize = size
	return nil
}

func (in *Interpreter) setTextParam(kind parser.OpKind, v float64, gs *GraphicsState) {
	switch kind {
	case parser.OpSetCharSpacing:
		gs.CharSpace = v
	case parser.OpSetWordSpacing:
		gs.WordSpace = v
	case parser.OpSetHorizScaling:
		gs.HScale = v
	case parser.OpSetLeading:
		gs.Leading = v
	case parser.OpSetRise:
		gs.TextRise = v
	case parser.OpSetRenderMode:
		gs.RenderMode = int(v)
	}
}

// textOperands validates the operands of a text-showing operation and returns
// the strings and adjustments to show
func textOperands(op *parser.Operation) ([]parser.PDFObject, error) {
	n := len(op.Operands)
	switch op.Kind {
	case parser.OpShowText, parser.OpNextLineShowText:
		if n < 1 {
			return nil, fmt.Errorf("%s: missing string operand", op.Operator)
		}
		s, ok := op.Operands[n-1].(parser.PDFString)
		if !ok {
			return nil, fmt.Errorf("%s: operand is %s, not a string", op.Operator, op.Operands[n-1].Type())
		}
		return []parser.PDFObject{s}, nil

	case parser.OpNextLineShowTextSpaced:
		if n < 3 {
			return nil, fmt.Errorf("%s: expected 3 operands, got %d", op.Operator, n)
		}
		s, ok := op.Operands[n-1].(parser.PDFString)
		if !ok {
			return nil, fmt.Errorf("%s: last operand is not a string", op.Operator)
		}
		if _, ok := parser.ToFloat(op.Operands[n-3]); !ok {
			return nil, fmt.Errorf("%s: word spacing is not a number", op.Operator)
		}
		if _, ok := parser.ToFloat(op.Operands[n-2]); !ok {
			return nil, fmt.Errorf("%s: character spacing is not a number", op.Operator)
		}
		return []parser.PDFObject{s}, nil

	case parser.OpShowTextArray:
		if n < 1 {
			return nil, fmt.Errorf("TJ: missing array operand")
		}
		arr, ok := op.Operands[n-1].(parser.PDFArray)
		if !ok {
			return nil, fmt.Errorf("TJ: operand is %s, not an array", op.Operands[n-1].Type())
		}
		items := make([]parser.PDFObject, 0, len(arr))
		for _, item := range arr {
			switch item.(type) {
			case parser.PDFString, parser.PDFInt, parser.PDFFloat:
				items = append(items, item)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("%s is not a text-showing operator", op.Operator)
}

func (in *Interpreter) showText(op *parser.Operation, gs *GraphicsState, h Handler) {
	items, err := textOperands(op)
	if err != nil {
		in.malformed(op, err, h)
		return
	}

	switch op.Kind {
	case parser.OpNextLineShowText:
		in.text.MoveLine(0, -gs.Leading)
	case parser.OpNextLineShowTextSpaced:
		n := len(op.Operands)
		gs.WordSpace, _ = parser.ToFloat(op.Operands[n-3])
		gs.CharSpace, _ = parser.ToFloat(op.Operands[n-2])
		in.text.MoveLine(0, -gs.Leading)
	}

	if gs.Font == nil {
		h.Warning(&parser.ParseError{Offset: op.Start, Msg: op.Operator + " without a font, using fallback metrics"})
		gs.Font = pdf.FallbackFont(gs.FontName)
	}

	show := in.measure(items, gs)
	h.ShowText(op, show)
	in.text.Advance(show.Advance)
}

// measure computes the advance and bounding box of shown strings. Each glyph
// moves by ((w0 - Tj/1000) * Tfs + Tc + Tw) * Th.
func (in *Interpreter) measure(items []parser.PDFObject, gs *GraphicsState) *TextShow {
	font := gs.Font
	th := gs.HScale / 100

	show := &TextShow{
		Font:     font,
		FontSize: gs.FontSize,
		HScale:   th,
	}

	var text strings.Builder
	var tx float64
	for _, item := range items {
		switch v := item.(type) {
		case parser.PDFString:
			for _, c := range font.Codes(v) {
				adv := font.Advance(c)*gs.FontSize + gs.CharSpace
				if font.IsWordSpace(c) {
					adv += gs.WordSpace
				}
				tx += adv * th
			}
			s, err := font.Decode(v)
			text.WriteString(s)
			if err != nil && show.DecodeErr == nil {
				show.DecodeErr = err
			}
		default:
			adj, _ := parser.ToFloat(v)
			tx -= adj / 1000 * gs.FontSize * th
		}
	}
	show.Text = text.String()
	show.Advance = tx

	m := in.text.TextMatrix.Multiply(gs.CTM)
	if m.IsSingular() || gs.FontSize == 0 || th == 0 {
		show.GeometryErr = &pdf.GeometryError{Op: "show text", Matrix: m, Err: pdf.ErrSingularMatrix}
		return show
	}

	ascent, descent := font.Extent()
	lo := descent*gs.FontSize + gs.TextRise
	hi := ascent*gs.FontSize + gs.TextRise
	show.Bounds = pdf.BoundingRect(
		m.TransformPoint(pdf.Point{X: 0, Y: lo}),
		m.TransformPoint(pdf.Point{X: tx, Y: lo}),
		m.TransformPoint(pdf.Point{X: 0, Y: hi}),
		m.TransformPoint(pdf.Point{X: tx, Y: hi}),
	)
	return show
}

// construct adds a path construction operation to the current path
func (in *Interpreter) construct(op *parser.Operation, gs *GraphicsState, h Handler) {
	if in.path == nil {
		in.path = &Path{CTM: gs.CTM}
	}
	p := in.path
	p.Ops = append(p.Ops, op)

	var need int
	switch op.Kind {
	case parser.OpMoveTo, parser.OpLineTo:
		need = 2
	case parser.OpCurveTo:
		need = 6
	case parser.OpCurveToV, parser.OpCurveToY, parser.OpRectangle:
		need = 4
	}

	var v []float64
	if need > 0 {
		var err error
		if v, err = op.Floats(need); err != nil {
			h.Warning(&parser.ParseError{Offset: op.Start, Msg: err.Error()})
			return
		}
	}

	add := func(x, y float64) {
		p.Points = append(p.Points, gs.CTM.TransformPoint(pdf.Point{X: x, Y: y}))
	}

	switch op.Kind {
	case parser.OpMoveTo:
		add(v[0], v[1])
		p.current = pdf.Point{X: v[0], Y: v[1]}
		p.start = p.current
	case parser.OpLineTo:
		add(v[0], v[1])
		p.current = pdf.Point{X: v[0], Y: v[1]}
	case parser.OpCurveTo:
		add(v[0], v[1])
		add(v[2], v[3])
		add(v[4], v[5])
		p.current = pdf.Point{X: v[4], Y: v[5]}
	case parser.OpCurveToV:
		add(p.current.X, p.current.Y)
		add(v[0], v[1])
		add(v[2], v[3])
		p.current = pdf.Point{X: v[2], Y: v[3]}
	case parser.OpCurveToY:
		add(v[0], v[1])
		add(v[2], v[3])
		p.current = pdf.Point{X: v[2], Y: v[3]}
	case parser.OpClosePath:
		p.current = p.start
	case parser.OpRectangle:
		x, y, w, hgt := v[0], v[1], v[2], v[3]
		add(x, y)
		add(x+w, y)
		add(x+w, y+hgt)
		add(x, y+hgt)
		p.current = pdf.Point{X: x, Y: y}
		p.start = p.current
	}
}

func (in *Interpreter) paintXObject(op *parser.Operation, gs *GraphicsState, h Handler) {
	if len(op.Operands) < 1 {
		in.malformed(op, fmt.Errorf("Do: missing name operand"), h)
		return
	}
	name, ok := op.Operands[len(op.Operands)-1].(parser.PDFName)
	if !ok {
		in.malformed(op, fmt.Errorf("Do: operand is not a name"), h)
		return
	}
	if in.resources == nil {
		in.malformed(op, fmt.Errorf("no resources for xobject %s", name), h)
		return
	}

	x, err := in.resources.XObject(string(name))
	if err != nil {
		in.malformed(op, err, h)
		return
	}

	switch {
	case x.IsImage():
		h.PaintImage(op, gs.CTM.TransformRect(pdf.NewRect(0, 0, 1, 1)))
	case x.IsForm():
		h.PaintForm(op, x)
	default:
		h.Operation(op)
	}
}
