package pdf

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var (
	codespaceSectionRe = regexp.MustCompile(`(?s)begincodespacerange(.*?)endcodespacerange`)
	bfcharSectionRe    = regexp.MustCompile(`(?s)beginbfchar(.*?)endbfchar`)
	bfrangeSectionRe   = regexp.MustCompile(`(?s)beginbfrange(.*?)endbfrange`)
	hexPairRe          = regexp.MustCompile(`<([0-9A-Fa-f\s]*)>\s*<([0-9A-Fa-f\s]*)>`)
	bfrangeEntryRe     = regexp.MustCompile(`<([0-9A-Fa-f\s]+)>\s*<([0-9A-Fa-f\s]+)>\s*(<[0-9A-Fa-f\s]*>|\[[^\]]*\])`)
	hexTokenRe         = regexp.MustCompile(`<([0-9A-Fa-f\s]*)>`)
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// ToUnicodeCMap represents a PDF ToUnicode CMap that maps character codes to Unicode text
type ToUnicodeCMap struct {
	// Direct mappings from beginbfchar sections
	codeToUnicode map[uint32]string

	// Range mappings from beginbfrange sections
	ranges []cmapRange

	// Byte lengths of codes declared by the codespace ranges or seen in mappings
	codeLengths map[int]bool
}

// cmapRange represents a contiguous range mapping from beginbfrange
type cmapRange struct {
	start, end uint32
	// dst is incremented in its last code unit for each step of the range
	dst      []uint16
	dstArray []string
}

// NewToUnicodeCMap creates a new ToUnicode CMap parser
func NewToUnicodeCMap() *ToUnicodeCMap {
	return &ToUnicodeCMap{
		codeToUnicode: make(map[uint32]string),
		codeLengths:   make(map[int]bool),
	}
}

// ParseToUnicodeCMap parses a ToUnicode stream into a new CMap
func ParseToUnicodeCMap(data []byte) (*ToUnicodeCMap, error) {
	cmap := NewToUnicodeCMap()
	if err := cmap.Parse(data); err != nil {
		return nil, err
	}
	return cmap, nil
}

// Parse parses a ToUnicode CMap stream
func (cmap *ToUnicodeCMap) Parse(data []byte) error {
	content := string(data)

	for _, section := range codespaceSectionRe.FindAllStringSubmatch(content, -1) {
		for _, pair := range hexPairRe.FindAllStringSubmatch(section[1], -1) {
			lo, err := decodeHex(pair[1])
			if err != nil {
				return fmt.Errorf("failed to parse codespacerange: %w", err)
			}
			cmap.codeLengths[len(lo)] = true
		}
	}

	if err := cmap.parseBeginBFChar(content); err != nil {
		return fmt.Errorf("failed to parse beginbfchar: %w", err)
	}

	if err := cmap.parseBeginBFRange(content); err != nil {
		return fmt.Errorf("failed to parse beginbfrange: %w", err)
	}

	return nil
}

// parseBeginBFChar parses beginbfchar...endbfchar sections
func (cmap *ToUnicodeCMap) parseBeginBFChar(content string) error {
	for _, section := range bfcharSectionRe.FindAllStringSubmatch(content, -1) {
		for _, mapping := range hexPairRe.FindAllStringSubmatch(section[1], -1) {
			src, err := decodeHex(mapping[1])
			if err != nil || len(src) == 0 {
				continue
			}
			dst, err := decodeHex(mapping[2])
			if err != nil {
				continue
			}
			cmap.codeLengths[len(src)] = true
			cmap.codeToUnicode[codeValue(src)] = utf16ToString(dst)
		}
	}
	return nil
}

// parseBeginBFRange parses beginbfrange...endbfrange sections.
// Destinations are either a starting value or an array with one entry per code.
func (cmap *ToUnicodeCMap) parseBeginBFRange(content string) error {
	for _, section := range bfrangeSectionRe.FindAllStringSubmatch(content, -1) {
		for _, entry := range bfrangeEntryRe.FindAllStringSubmatch(section[1], -1) {
			lo, err := decodeHex(entry[1])
			if err != nil || len(lo) == 0 {
				continue
			}
			hi, err := decodeHex(entry[2])
			if err != nil || len(hi) == 0 {
				continue
			}
			r := cmapRange{start: codeValue(lo), end: codeValue(hi)}
			if r.end < r.start {
				continue
			}
			cmap.codeLengths[len(lo)] = true

			if strings.HasPrefix(entry[3], "[") {
				for _, item := range hexTokenRe.FindAllStringSubmatch(entry[3], -1) {
					dst, err := decodeHex(item[1])
					if err != nil {
						dst = nil
					}
					r.dstArray = append(r.dstArray, utf16ToString(dst))
				}
			} else {
				dst, err := decodeHex(strings.Trim(entry[3], "<>"))
				if err != nil || len(dst) == 0 {
					continue
				}
				r.dst = codeUnits(dst)
			}
			cmap.ranges = append(cmap.ranges, r)
		}
	}
	return nil
}

// Lookup maps a character code to its Unicode string
func (cmap *ToUnicodeCMap) Lookup(code uint32) (string, bool) {
	if s, ok := cmap.codeToUnicode[code]; ok {
		return s, true
	}

	for _, r := range cmap.ranges {
		if code < r.start || code > r.end {
			continue
		}
		offset := code - r.start
		if r.dstArray != nil {
			if int(offset) < len(r.dstArray) {
				return r.dstArray[offset], true
			}
			return "", false
		}
		units := make([]uint16, len(r.dst))
		copy(units, r.dst)
		units[len(units)-1] += uint16(offset)
		return unitsToString(units), true
	}

	return "", false
}

// CodeLength returns the byte length of codes, 2 when unknown
func (cmap *ToUnicodeCMap) CodeLength() int {
	if len(cmap.codeLengths) == 1 {
		for n := range cmap.codeLengths {
			return n
		}
	}
	if cmap.codeLengths[1] && !cmap.codeLengths[2] {
		return 1
	}
	return 2
}

// Decode decodes a byte string with the given code length. Unmapped codes
// are reported in the returned error while the rest of the text is kept.
func (cmap *ToUnicodeCMap) Decode(data []byte, codeLen int) (string, error) {
	if codeLen <= 0 {
		codeLen = cmap.CodeLength()
	}

	var result strings.Builder
	var missing int
	for i := 0; i < len(data); i += codeLen {
		end := min(i+codeLen, len(data))
		s, ok := cmap.Lookup(codeValue(data[i:end]))
		if !ok {
			missing++
			continue
		}
		result.WriteString(s)
	}

	if missing > 0 {
		return result.String(), fmt.Errorf("%d unmapped codes", missing)
	}
	return result.String(), nil
}

// DecodeHexString decodes a hex string such as "<0041>" using this CMap
func (cmap *ToUnicodeCMap) DecodeHexString(hexStr string) string {
	data, err := decodeHex(strings.Trim(hexStr, "<>"))
	if err != nil {
		return ""
	}
	s, _ := cmap.Decode(data, 0)
	return s
}

// MappingCount returns the total number of mappings in this CMap
func (cmap *ToUnicodeCMap) MappingCount() int {
	count := len(cmap.codeToUnicode)
	for _, r := range cmap.ranges {
		if r.dstArray != nil {
			count += len(r.dstArray)
		} else {
			count += int(r.end - r.start + 1)
		}
	}
	return count
}

func (cmap *ToUnicodeCMap) String() string {
	return fmt.Sprintf("ToUnicodeCMap{direct: %d, ranges: %d, total: %d}",
		len(cmap.codeToUnicode), len(cmap.ranges), cmap.MappingCount())
}

func decodeHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\f' {
			return -1
		}
		return r
	}, s)
	if len(s)%2 != 0 {
		s += "0"
	}
	return hex.DecodeString(s)
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func codeUnits(b []byte) []uint16 {
	if len(b)%2 != 0 {
		b = append([]byte{0}, b...)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return units
}

func unitsToString(units []uint16) string {
	b := make([]byte, 0, 2*len(units))
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return utf16ToString(b)
}

// utf16ToString decodes a UTF-16BE destination. Single bytes are taken as
// Latin-1 code points.
func utf16ToString(b []byte) string {
	switch len(b) {
	case 0:
		return ""
	case 1:
		return string(rune(b[0]))
	}
	if len(b)%2 != 0 {
		b = append([]byte{0}, b...)
	}
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
