package content

import (
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// GraphicsState holds the parts of the PDF graphics state that affect geometry.
// Text state parameters belong to the graphics state and are saved by q.
type GraphicsState struct {
	CTM pdf.Matrix // Current Transformation Matrix

	Font       *pdf.Font
	FontName   string  // Resource name of the current font
	FontSize   float64 // Tfs
	CharSpace  float64 // Tc
	WordSpace  float64 // Tw
	HScale     float64 // Tz, in percent
	Leading    float64 // TL
	TextRise   float64 // Ts
	RenderMode int     // Tr
}

// NewGraphicsState creates a new graphics state with defaults
func NewGraphicsState(ctm pdf.Matrix) *GraphicsState {
	return &GraphicsState{
		CTM:    ctm,
		HScale: 100,
	}
}

// Clone creates a copy of the graphics state. Fonts are shared, they are immutable.
func (gs *GraphicsState) Clone() *GraphicsState {
	newState := *gs
	return &newState
}

// TextObject holds the matrices of the current text object. They are not
// part of the graphics state and survive q/Q.
type TextObject struct {
	TextMatrix     pdf.Matrix // Tm
	TextLineMatrix pdf.Matrix // Tlm
	Active         bool       // between BT and ET
}

// Begin starts a text object
func (t *TextObject) Begin() {
	t.TextMatrix = pdf.IdentityMatrix()
	t.TextLineMatrix = pdf.IdentityMatrix()
	t.Active = true
}

// End finishes a text object
func (t *TextObject) End() {
	t.Active = false
}

// MoveLine starts a new line offset by (tx, ty) from the start of the current line
func (t *TextObject) MoveLine(tx, ty float64) {
	t.TextLineMatrix = pdf.Translate(tx, ty).Multiply(t.TextLineMatrix)
	t.TextMatrix = t.TextLineMatrix
}

// SetMatrix replaces both text matrices
func (t *TextObject) SetMatrix(m pdf.Matrix) {
	t.TextMatrix = m
	t.TextLineMatrix = m
}

// Advance moves the text matrix by a horizontal displacement in text space
func (t *TextObject) Advance(tx float64) {
	t.TextMatrix = pdf.Translate(tx, 0).Multiply(t.TextMatrix)
}

// StateStack manages graphics state stack for save/restore operations
type StateStack struct {
	states []*GraphicsState
}

// NewStateStack creates a new state stack with the given initial state
func NewStateStack(initial *GraphicsState) *StateStack {
	return &StateStack{
		states: []*GraphicsState{initial},
	}
}

// Current returns the current graphics state
func (s *StateStack) Current() *GraphicsState {
	return s.states[len(s.states)-1]
}

// Save saves the current graphics state
func (s *StateStack) Save() {
	s.states = append(s.states, s.Current().Clone())
}

// Restore restores the previous graphics state. It reports false, leaving
// the state untouched, when there is no matching Save.
func (s *StateStack) Restore() bool {
	if len(s.states) <= 1 {
		return false
	}
	s.states = s.states[:len(s.states)-1]
	return true
}

// Depth returns the number of unmatched saves
func (s *StateStack) Depth() int {
	return len(s.states) - 1
}
