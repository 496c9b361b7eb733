package pdf

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// SimpleEncoding maps single-byte codes of a simple font to runes
type SimpleEncoding struct {
	name  string
	table [256]rune
}

// NewSimpleEncoding returns the named base encoding. Unknown names and
// StandardEncoding fall back to Latin-1 with typographic quotes.
func NewSimpleEncoding(name string) *SimpleEncoding {
	enc := &SimpleEncoding{name: name}
	var cm *charmap.Charmap
	switch name {
	case "WinAnsiEncoding":
		cm = charmap.Windows1252
	case "MacRomanEncoding":
		cm = charmap.Macintosh
	default:
		cm = charmap.ISO8859_1
	}
	for i := range enc.table {
		enc.table[i] = cm.DecodeByte(byte(i))
	}
	if name != "WinAnsiEncoding" && name != "MacRomanEncoding" {
		enc.table['\''] = '’'
		enc.table['`'] = '‘'
	}
	return enc
}

// Name returns the base encoding name
func (e *SimpleEncoding) Name() string {
	return e.name
}

// ApplyDifferences overrides codes from a Differences array given as
// alternating start codes and glyph names
func (e *SimpleEncoding) ApplyDifferences(diffs []interface{}) {
	code := -1
	for _, item := range diffs {
		switch v := item.(type) {
		case int:
			code = v
		case string:
			if code < 0 || code > 255 {
				continue
			}
			if r, ok := GlyphRune(v); ok {
				e.table[code] = r
			} else {
				e.table[code] = 0
			}
			code++
		}
	}
}

// Rune returns the rune for code, or 0 when the code is unmapped
func (e *SimpleEncoding) Rune(code byte) rune {
	return e.table[code]
}

// Decode decodes a byte string, skipping unmapped codes
func (e *SimpleEncoding) Decode(b []byte) (string, int) {
	var sb strings.Builder
	missing := 0
	for _, c := range b {
		r := e.table[c]
		if r == 0 || r == '�' {
			missing++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String(), missing
}

// GlyphRune resolves an Adobe glyph name to a rune
func GlyphRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		return GlyphRune(name[:i])
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	return 0, false
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "quoteright": '’',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "minus": '−', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"quoteleft": '‘', "braceleft": '{', "bar": '|', "braceright": '}',
	"asciitilde": '~', "bullet": '•', "endash": '–', "emdash": '—',
	"quotedblleft": '“', "quotedblright": '”', "quotesinglbase": '‚',
	"quotedblbase": '„', "ellipsis": '…', "dagger": '†',
	"daggerdbl": '‡', "perthousand": '‰', "trademark": '™',
	"copyright": '©', "registered": '®', "degree": '°',
	"section": '§', "paragraph": '¶', "nbspace": ' ',
	"euro": '€', "sterling": '£', "yen": '¥', "cent": '¢',
	"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ',
	"Adieresis": 'Ä', "Odieresis": 'Ö', "Udieresis": 'Ü', "adieresis": 'ä',
	"odieresis": 'ö', "udieresis": 'ü', "germandbls": 'ß', "eacute": 'é',
	"egrave": 'è', "ecircumflex": 'ê', "aacute": 'á', "agrave": 'à',
	"acircumflex": 'â', "ccedilla": 'ç', "Eacute": 'É', "ntilde": 'ñ',
	"Ntilde": 'Ñ', "oacute": 'ó', "iacute": 'í', "uacute": 'ú',
}
