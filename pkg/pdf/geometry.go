package pdf

import (
	"errors"
	"fmt"
	"math"
)

// ErrSingularMatrix is returned when a matrix with a zero determinant has to be inverted
var ErrSingularMatrix = errors.New("singular matrix")

// GeometryError reports a transform that cannot be used for a computation
type GeometryError struct {
	Op     string
	Matrix Matrix
	Err    error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: %v %v", e.Op, e.Err, e.Matrix)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// Matrix represents a 2D affine transformation [a b 0 c d 0 e f 1].
// Points are row vectors, so m.Multiply(n) applies m first and then n.
type Matrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix returns an identity matrix
func IdentityMatrix() Matrix {
	return Matrix{A: 1, D: 1}
}

// NewMatrix builds a matrix from the six operands of a cm or Tm operator
func NewMatrix(v [6]float64) Matrix {
	return Matrix{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}
}

// Multiply multiplies two matrices
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.C,
		B: m.A*other.B + m.B*other.D,
		C: m.C*other.A + m.D*other.C,
		D: m.C*other.B + m.D*other.D,
		E: m.E*other.A + m.F*other.C + other.E,
		F: m.E*other.B + m.F*other.D + other.F,
	}
}

// Transform applies the matrix transformation to a point
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// TransformPoint applies the matrix to p
func (m Matrix) TransformPoint(p Point) Point {
	x, y := m.Transform(p.X, p.Y)
	return Point{X: x, Y: y}
}

// TransformRect transforms the four corners of r and returns their bounding box
func (m Matrix) TransformRect(r Rect) Rect {
	return BoundingRect(
		m.TransformPoint(Point{r.Left, r.Bottom}),
		m.TransformPoint(Point{r.Right, r.Bottom}),
		m.TransformPoint(Point{r.Left, r.Top}),
		m.TransformPoint(Point{r.Right, r.Top}),
	)
}

// Determinant returns ad - bc
func (m Matrix) Determinant() float64 {
	return m.A*m.D - m.B*m.C
}

// IsSingular reports whether the matrix collapses the plane
func (m Matrix) IsSingular() bool {
	return math.Abs(m.Determinant()) < 1e-12
}

// Invert returns the inverse matrix
func (m Matrix) Invert() (Matrix, error) {
	det := m.Determinant()
	if math.Abs(det) < 1e-12 {
		return Matrix{}, &GeometryError{Op: "invert", Matrix: m, Err: ErrSingularMatrix}
	}
	return Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}, nil
}

func (m Matrix) String() string {
	return fmt.Sprintf("[%g %g %g %g %g %g]", m.A, m.B, m.C, m.D, m.E, m.F)
}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Rotate creates a counter-clockwise rotation matrix
func Rotate(degrees float64) Matrix {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in default user space (origin bottom-left, y up).
// Values built with NewRect or BoundingRect are always normalized.
type Rect struct {
	Left, Bottom, Right, Top float64
}

// NewRect builds a normalized rectangle from two opposite corners
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Left:   math.Min(x0, x1),
		Bottom: math.Min(y0, y1),
		Right:  math.Max(x0, x1),
		Top:    math.Max(y0, y1),
	}
}

// BoundingRect returns the smallest rectangle containing all points.
// With no points it returns the zero rectangle.
func BoundingRect(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{Left: points[0].X, Bottom: points[0].Y, Right: points[0].X, Top: points[0].Y}
	for _, p := range points[1:] {
		r.Left = math.Min(r.Left, p.X)
		r.Bottom = math.Min(r.Bottom, p.Y)
		r.Right = math.Max(r.Right, p.X)
		r.Top = math.Max(r.Top, p.Y)
	}
	return r
}

// Normalize swaps coordinates so that Left <= Right and Bottom <= Top
func (r Rect) Normalize() Rect {
	return NewRect(r.Left, r.Bottom, r.Right, r.Top)
}

func (r Rect) Width() float64 {
	return r.Right - r.Left
}

func (r Rect) Height() float64 {
	return r.Top - r.Bottom
}

// IsDegenerate reports a rectangle with zero width or height
func (r Rect) IsDegenerate() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Contains reports whether p lies inside r, borders included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Bottom && p.Y <= r.Top
}

// ContainsRect reports whether o lies entirely inside r, borders included
func (r Rect) ContainsRect(o Rect) bool {
	return o.Left >= r.Left && o.Right <= r.Right && o.Bottom >= r.Bottom && o.Top <= r.Top
}

// Overlaps reports whether two rectangles share a region of positive area.
// When either rectangle is degenerate, touching counts as overlap so that
// query points and hairlines are still hit.
func (r Rect) Overlaps(o Rect) bool {
	if r.IsDegenerate() || o.IsDegenerate() {
		return r.Left <= o.Right && o.Left <= r.Right && r.Bottom <= o.Top && o.Bottom <= r.Top
	}
	return r.Left < o.Right && o.Left < r.Right && r.Bottom < o.Top && o.Bottom < r.Top
}

// Union returns the smallest rectangle containing both
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Left:   math.Min(r.Left, o.Left),
		Bottom: math.Min(r.Bottom, o.Bottom),
		Right:  math.Max(r.Right, o.Right),
		Top:    math.Max(r.Top, o.Top),
	}
}

// Corners returns the four corners counter-clockwise from the bottom left
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.Left, r.Bottom},
		{r.Right, r.Bottom},
		{r.Right, r.Top},
		{r.Left, r.Top},
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.3f %.3f %.3f %.3f]", r.Left, r.Bottom, r.Right, r.Top)
}
