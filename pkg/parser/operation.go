package parser

import (
	"fmt"
)

// OpKind enumerates the content stream operators the interpreter dispatches on
type OpKind int

const (
	OpUnknown OpKind = iota
	OpOther          // known operator without geometry, e.g. color or line width

	// Graphics state
	OpSave
	OpRestore
	OpConcat

	// Text objects and state
	OpBeginText
	OpEndText
	OpMoveText
	OpMoveTextSetLeading
	OpSetTextMatrix
	OpNextLine
	OpSetFont
	OpSetCharSpacing
	OpSetWordSpacing
	OpSetHorizScaling
	OpSetLeading
	OpSetRise
	OpSetRenderMode

	// Text showing
	OpShowText
	OpShowTextArray
	OpNextLineShowText
	OpNextLineShowTextSpaced

	// Path construction
	OpMoveTo
	OpLineTo
	OpCurveTo
	OpCurveToV
	OpCurveToY
	OpClosePath
	OpRectangle

	// Path painting
	OpStroke
	OpCloseStroke
	OpFill
	OpFillEvenOdd
	OpFillStroke
	OpFillStrokeEvenOdd
	OpCloseFillStroke
	OpCloseFillStrokeEvenOdd
	OpEndPath

	// Clipping
	OpClip
	OpClipEvenOdd

	// Images, XObjects and shadings
	OpPaintXObject
	OpInlineImage
	OpShading
)

var opKinds = map[string]OpKind{
	"q":  OpSave,
	"Q":  OpRestore,
	"cm": OpConcat,

	"BT": OpBeginText,
	"ET": OpEndText,
	"Td": OpMoveText,
	"TD": OpMoveTextSetLeading,
	"Tm": OpSetTextMatrix,
	"T*": OpNextLine,
	"Tf": OpSetFont,
	"Tc": OpSetCharSpacing,
	"Tw": OpSetWordSpacing,
	"Tz": OpSetHorizScaling,
	"TL": OpSetLeading,
	"Ts": OpSetRise,
	"Tr": OpSetRenderMode,

	"Tj": OpShowText,
	"TJ": OpShowTextArray,
	"'":  OpNextLineShowText,
	"\"": OpNextLineShowTextSpaced,

	"m":  OpMoveTo,
	"l":  OpLineTo,
	"c":  OpCurveTo,
	"v":  OpCurveToV,
	"y":  OpCurveToY,
	"h":  OpClosePath,
	"re": OpRectangle,

	"S":  OpStroke,
	"s":  OpCloseStroke,
	"f":  OpFill,
	"F":  OpFill,
	"f*": OpFillEvenOdd,
	"B":  OpFillStroke,
	"B*": OpFillStrokeEvenOdd,
	"b":  OpCloseFillStroke,
	"b*": OpCloseFillStrokeEvenOdd,
	"n":  OpEndPath,

	"W":  OpClip,
	"W*": OpClipEvenOdd,

	"Do": OpPaintXObject,
	"BI": OpInlineImage,
	"sh": OpShading,
}

// Operators that are understood but carry no geometry
var otherOps = []string{
	"w", "J", "j", "M", "d", "ri", "i", "gs",
	"CS", "cs", "SC", "SCN", "sc", "scn", "G", "g", "RG", "rg", "K", "k",
	"d0", "d1", "MP", "DP", "BMC", "BDC", "EMC", "BX", "EX",
}

func init() {
	for _, op := range otherOps {
		opKinds[op] = OpOther
	}
}

// KindOf returns the kind of an operator
func KindOf(operator string) OpKind {
	return opKinds[operator]
}

// IsTextShow reports the four text-showing operators
func (k OpKind) IsTextShow() bool {
	return k >= OpShowText && k <= OpNextLineShowTextSpaced
}

// IsPathConstruction reports m, l, c, v, y, h and re
func (k OpKind) IsPathConstruction() bool {
	return k >= OpMoveTo && k <= OpRectangle
}

// IsPathPainting reports the painting operators including n
func (k OpKind) IsPathPainting() bool {
	return k >= OpStroke && k <= OpEndPath
}

// IsClip reports W and W*
func (k OpKind) IsClip() bool {
	return k == OpClip || k == OpClipEvenOdd
}

// Operation is one operator with its operands and the byte span
// [Start, End) it occupies in the source stream
type Operation struct {
	Operator string
	Kind     OpKind
	Operands []PDFObject
	Start    int
	End      int
	Index    int // position in the parsed sequence

	// Data holds the payload of an inline image
	Data []byte
}

func (op Operation) String() string {
	return fmt.Sprintf("%s%v@%d", op.Operator, op.Operands, op.Start)
}

// Float returns operand i as a number
func (op Operation) Float(i int) (float64, bool) {
	if i < 0 || i >= len(op.Operands) {
		return 0, false
	}
	return ToFloat(op.Operands[i])
}

// Floats returns the first n operands as numbers
func (op Operation) Floats(n int) ([]float64, error) {
	if len(op.Operands) < n {
		return nil, fmt.Errorf("%s: expected %d operands, got %d", op.Operator, n, len(op.Operands))
	}
	out := make([]float64, n)
	// Operands closest to the operator are the ones that belong to it
	base := len(op.Operands) - n
	for i := range out {
		v, ok := ToFloat(op.Operands[base+i])
		if !ok {
			return nil, fmt.Errorf("%s: operand %d is %s, not a number", op.Operator, i, op.Operands[base+i].Type())
		}
		out[i] = v
	}
	return out, nil
}

// ParseOperations splits a content stream into operations. Malformed input
// yields ParseErrors while parsing resumes after the bad token; operands
// that no operator claims at the end of the stream are reported and dropped.
func ParseOperations(data []byte) ([]Operation, []error) {
	p := &opParser{lexer: NewLexer(data)}
	p.run()
	return p.ops, p.errs
}

type opParser struct {
	lexer *Lexer
	ops   []Operation
	errs  []error

	operands []PDFObject
	start    int
}

func (p *opParser) run() {
	p.start = -1
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			p.errs = append(p.errs, err)
			continue
		}
		if tok.Type == TokenEOF {
			break
		}
		if p.start < 0 {
			p.start = tok.Start
		}

		if tok.Type != TokenKeyword {
			obj, err := p.object(tok)
			if err != nil {
				p.errs = append(p.errs, err)
				continue
			}
			p.operands = append(p.operands, obj)
			continue
		}

		kw, ok := tok.Value.(PDFKeyword)
		if !ok {
			// true, false and null are operands
			p.operands = append(p.operands, tok.Value)
			continue
		}

		if kw == "BI" {
			p.inlineImage(tok)
			continue
		}

		p.ops = append(p.ops, Operation{
			Operator: string(kw),
			Kind:     KindOf(string(kw)),
			Operands: p.operands,
			Start:    p.start,
			End:      tok.End,
			Index:    len(p.ops),
		})
		p.operands = nil
		p.start = -1
	}

	if len(p.operands) > 0 {
		p.errs = append(p.errs, &ParseError{
			Offset: p.start,
			Msg:    fmt.Sprintf("%d operands without operator at end of stream", len(p.operands)),
		})
	}
}

// object reads a complete operand starting with tok
func (p *opParser) object(tok *Token) (PDFObject, error) {
	switch tok.Type {
	case TokenNumber, TokenString, TokenHexString, TokenName:
		return tok.Value, nil
	case TokenArrayStart:
		return p.array(tok.Start)
	case TokenDictStart:
		return p.dict(tok.Start)
	case TokenKeyword:
		if kw, ok := tok.Value.(PDFKeyword); ok {
			return nil, &ParseError{Offset: tok.Start, Msg: fmt.Sprintf("operator %s inside composite object", kw)}
		}
		return tok.Value, nil
	}
	return nil, &ParseError{Offset: tok.Start, Msg: fmt.Sprintf("unexpected %s", tok.Type)}
}

func (p *opParser) array(start int) (PDFArray, error) {
	arr := PDFArray{}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			p.errs = append(p.errs, err)
			continue
		}
		switch tok.Type {
		case TokenEOF:
			return nil, &ParseError{Offset: start, Msg: "unterminated array"}
		case TokenArrayEnd:
			return arr, nil
		}
		obj, err := p.object(tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *opParser) dict(start int) (PDFDict, error) {
	dict := PDFDict{}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenEOF:
			return nil, &ParseError{Offset: start, Msg: "unterminated dictionary"}
		case TokenDictEnd:
			return dict, nil
		case TokenName:
		default:
			return nil, &ParseError{Offset: tok.Start, Msg: "dictionary key is not a name"}
		}
		key := tok.Value.(PDFName)

		valTok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		val, err := p.object(valTok)
		if err != nil {
			return nil, err
		}
		dict[key] = val
	}
}

// inlineImage reads "BI key value ... ID data EI" as a single operation
func (p *opParser) inlineImage(bi *Token) {
	start := bi.Start
	if p.start >= 0 && len(p.operands) > 0 {
		p.errs = append(p.errs, &ParseError{Offset: p.start, Msg: "operands before BI"})
	}
	p.operands = nil
	p.start = -1

	params := PDFDict{}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			p.errs = append(p.errs, err)
			return
		}
		if tok.Type == TokenEOF {
			p.errs = append(p.errs, &ParseError{Offset: start, Msg: "inline image without ID"})
			return
		}
		if kw, ok := tok.Value.(PDFKeyword); ok && tok.Type == TokenKeyword && kw == "ID" {
			break
		}
		if tok.Type != TokenName {
			p.errs = append(p.errs, &ParseError{Offset: tok.Start, Msg: "inline image key is not a name"})
			continue
		}
		valTok, err := p.lexer.NextToken()
		if err != nil {
			p.errs = append(p.errs, err)
			continue
		}
		val, err := p.object(valTok)
		if err != nil {
			p.errs = append(p.errs, err)
			continue
		}
		params[tok.Value.(PDFName)] = val
	}

	data, err := p.lexer.ReadInlineImageData()
	if err != nil {
		p.errs = append(p.errs, err)
	}
	p.ops = append(p.ops, Operation{
		Operator: "BI",
		Kind:     OpInlineImage,
		Operands: []PDFObject{params},
		Start:    start,
		End:      p.lexer.Position(),
		Index:    len(p.ops),
		Data:     data,
	})
}
