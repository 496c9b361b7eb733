package pdf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleEncodingDecode(t *testing.T) {
	tests := []struct {
		encoding string
		input    []byte
		expected string
	}{
		{"WinAnsiEncoding", []byte("Hello"), "Hello"},
		{"WinAnsiEncoding", []byte{0x93, 'x', 0x94}, "“x”"},
		{"WinAnsiEncoding", []byte{0x80}, "€"},
		{"MacRomanEncoding", []byte{0x8E}, "é"},
		{"StandardEncoding", []byte{0x27}, "’"},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			got, missing := NewSimpleEncoding(tt.encoding).Decode(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Zero(t, missing)
		})
	}
}

func TestSimpleEncodingDifferences(t *testing.T) {
	enc := NewSimpleEncoding("WinAnsiEncoding")
	enc.ApplyDifferences([]interface{}{65, "Adieresis", "B", 100, "uni00E9"})

	assert.Equal(t, 'Ä', enc.Rune(65))
	assert.Equal(t, 'B', enc.Rune(66))
	assert.Equal(t, 'é', enc.Rune(100))
}

func TestGlyphRune(t *testing.T) {
	tests := map[string]rune{
		"A":         'A',
		"space":     ' ',
		"quoteleft": '‘',
		"uni0041":   'A',
		"u1F600":    '\U0001F600',
		"a.sc":      'a',
	}
	for name, want := range tests {
		got, ok := GlyphRune(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := GlyphRune("notaglyphname")
	assert.False(t, ok)
}

func TestFontAdvance(t *testing.T) {
	f := NewSimpleFont("F1", "Test", 32, []float64{250, 500})

	assert.InDelta(t, 0.25, f.Advance(Code{Value: 32, Len: 1}), eps)
	assert.InDelta(t, 0.5, f.Advance(Code{Value: 33, Len: 1}), eps)

	// Outside the widths array falls back to the default width
	f.DefaultWidth = 600
	assert.InDelta(t, 0.6, f.Advance(Code{Value: 100, Len: 1}), eps)
}

func TestFontWordSpace(t *testing.T) {
	simple := NewSimpleFont("F1", "Test", 0, nil)
	codes := simple.Codes([]byte("a b"))
	require.Len(t, codes, 3)
	assert.True(t, simple.IsWordSpace(codes[1]))

	composite := &Font{Subtype: "Type0", CodeLen: 2, DefaultWidth: 1000}
	codes = composite.Codes([]byte{0x00, 0x20})
	require.Len(t, codes, 1)
	assert.False(t, composite.IsWordSpace(codes[0]), "two-byte code 32 is not a word space")
}

func TestFontExtent(t *testing.T) {
	f := NewSimpleFont("F1", "Test", 0, nil)
	ascent, descent := f.Extent()
	assert.Equal(t, DefaultAscent, ascent)
	assert.Equal(t, DefaultDescent, descent)

	f.Ascent, f.Descent = 900, -200
	ascent, descent = f.Extent()
	assert.InDelta(t, 0.9, ascent, eps)
	assert.InDelta(t, -0.2, descent, eps)
}

func TestFontDecode(t *testing.T) {
	cmap, err := ParseToUnicodeCMap([]byte("beginbfchar\n<0001> <0048>\n<0002> <0069>\nendbfchar"))
	require.NoError(t, err)

	composite := &Font{Name: "F2", Subtype: "Type0", CodeLen: 2, ToUnicode: cmap}
	s, err := composite.Decode([]byte{0x00, 0x01, 0x00, 0x02})
	require.NoError(t, err)
	assert.Equal(t, "Hi", s)

	composite.ToUnicode = nil
	_, err = composite.Decode([]byte{0x00, 0x01})
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))

	simple := NewSimpleFont("F1", "Test", 0, nil)
	simple.Encoding = NewSimpleEncoding("WinAnsiEncoding")
	s, err = simple.Decode([]byte("CONFIDENTIAL"))
	require.NoError(t, err)
	assert.Equal(t, "CONFIDENTIAL", s)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 255, G: 128}, c)
	assert.Equal(t, "FF8000", c.String())

	r, g, b := White.Components()
	assert.Equal(t, []float64{1, 1, 1}, []float64{r, g, b})

	_, err = ParseColor("red")
	assert.Error(t, err)
}
