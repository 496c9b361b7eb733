package pdf

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// TextRun is the text shown by a single text-showing operator together with
// its bounding rectangle in default user space
type TextRun struct {
	Text string
	Page int // 1-based
	Rect Rect
}

func (r TextRun) String() string {
	return fmt.Sprintf("page %d %s %q", r.Page, r.Rect, r.Text)
}

// Color represents an RGB color
type Color struct {
	R, G, B uint8
}

// White is the default redaction fill
var White = Color{R: 255, G: 255, B: 255}

// Black is the classic redaction bar
var Black = Color{}

// ParseColor parses a RRGGBB hex string, with or without a leading '#'
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: expected RRGGBB", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: b[0], G: b[1], B: b[2]}, nil
}

// Components returns the color as three values in [0, 1] for the rg operator
func (c Color) Components() (float64, float64, float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

func (c Color) String() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// DocumentError is returned when a document cannot be read or written
type DocumentError struct {
	Op  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// DecodeError is reported when shown bytes cannot be mapped to text
type DecodeError struct {
	Font  string
	Bytes []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode % x with font %s: %v", e.Bytes, e.Font, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
