package pdf

import (
	"fmt"
	"strings"
)

// Default vertical extent, in text space units, for fonts without a descriptor
const (
	DefaultAscent  = 0.75
	DefaultDescent = -0.25
)

// Code is one character code of a shown string
type Code struct {
	Value uint32
	Len   int
}

// Font holds the metrics and decoding tables needed to measure shown text.
// Widths are kept in glyph space, scaled to text space by the font matrix.
type Font struct {
	Name     string
	BaseFont string
	Subtype  string

	FirstChar    int
	Widths       []float64
	CIDWidths    map[uint32]float64
	DefaultWidth float64

	// FontMatrix maps glyph space to text space; 1/1000 for all but Type3
	FontMatrix Matrix

	// Ascent and Descent are in glyph space, zero when unknown
	Ascent  float64
	Descent float64

	ToUnicode *ToUnicodeCMap
	Encoding  *SimpleEncoding

	// CodeLen is 2 for composite fonts and 1 for simple fonts
	CodeLen int

	// coreWidths holds built-in metrics for standard 14 fonts without Widths
	coreWidths map[byte]float64
}

// NewSimpleFont creates a single-byte font with the given widths.
// It is also used for fonts that cannot be resolved.
func NewSimpleFont(name, baseFont string, firstChar int, widths []float64) *Font {
	return &Font{
		Name:       name,
		BaseFont:   baseFont,
		Subtype:    "Type1",
		FirstChar:  firstChar,
		Widths:     widths,
		FontMatrix: Scale(0.001, 0.001),
		Encoding:   NewSimpleEncoding("StandardEncoding"),
		CodeLen:    1,
	}
}

// FallbackFont is used for unknown font resources. Each glyph advances half an em.
func FallbackFont(name string) *Font {
	f := NewSimpleFont(name, "", 0, nil)
	f.DefaultWidth = 500
	return f
}

// IsComposite reports a Type0 font
func (f *Font) IsComposite() bool {
	return f.Subtype == "Type0"
}

// Codes splits shown bytes into character codes
func (f *Font) Codes(b []byte) []Code {
	n := f.CodeLen
	if n <= 0 {
		n = 1
	}
	codes := make([]Code, 0, len(b)/n+1)
	for i := 0; i < len(b); i += n {
		end := min(i+n, len(b))
		codes = append(codes, Code{Value: codeValue(b[i:end]), Len: end - i})
	}
	return codes
}

// IsWordSpace reports whether word spacing applies to the code,
// which is the case for the single-byte code 32 only
func (f *Font) IsWordSpace(c Code) bool {
	return c.Len == 1 && c.Value == 32
}

// GlyphWidth returns the horizontal displacement of a code in glyph space
func (f *Font) GlyphWidth(c Code) float64 {
	if f.IsComposite() {
		if w, ok := f.CIDWidths[c.Value]; ok {
			return w
		}
		return f.DefaultWidth
	}
	idx := int(c.Value) - f.FirstChar
	if idx >= 0 && idx < len(f.Widths) {
		return f.Widths[idx]
	}
	if f.coreWidths != nil && c.Value < 256 {
		if w, ok := f.coreWidths[byte(c.Value)]; ok {
			return w
		}
	}
	return f.DefaultWidth
}

// Advance returns the horizontal displacement of a code in text space
// for a font size of 1
func (f *Font) Advance(c Code) float64 {
	m := f.FontMatrix
	if m == (Matrix{}) {
		m = Scale(0.001, 0.001)
	}
	return f.GlyphWidth(c) * m.A
}

// Extent returns ascent and descent in text space for a font size of 1
func (f *Font) Extent() (ascent, descent float64) {
	if f.Ascent == 0 && f.Descent == 0 {
		return DefaultAscent, DefaultDescent
	}
	m := f.FontMatrix
	if m == (Matrix{}) {
		m = Scale(0.001, 0.001)
	}
	return f.Ascent * m.D, f.Descent * m.D
}

// Decode maps shown bytes to text. The text is always best effort; a
// DecodeError reports codes that could not be mapped.
func (f *Font) Decode(b []byte) (string, error) {
	if f.ToUnicode != nil {
		s, err := f.ToUnicode.Decode(b, f.CodeLen)
		if err == nil {
			return s, nil
		}
		if f.Encoding == nil || f.IsComposite() {
			return s, &DecodeError{Font: f.Name, Bytes: b, Err: err}
		}
		// Simple fonts fill the gaps from their encoding
		var sb strings.Builder
		for _, c := range b {
			if t, ok := f.ToUnicode.Lookup(uint32(c)); ok {
				sb.WriteString(t)
			} else if r := f.Encoding.Rune(c); r != 0 && r != '�' {
				sb.WriteRune(r)
			}
		}
		return sb.String(), nil
	}

	if f.IsComposite() {
		return "", &DecodeError{Font: f.Name, Bytes: b, Err: fmt.Errorf("no ToUnicode map for %s", f.BaseFont)}
	}

	enc := f.Encoding
	if enc == nil {
		enc = NewSimpleEncoding("StandardEncoding")
	}
	s, missing := enc.Decode(b)
	if missing > 0 {
		return s, &DecodeError{Font: f.Name, Bytes: b, Err: fmt.Errorf("%d unmapped codes", missing)}
	}
	return s, nil
}

func (f *Font) String() string {
	return fmt.Sprintf("%s(%s %s)", f.Name, f.Subtype, f.BaseFont)
}
