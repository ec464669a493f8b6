package softbody

import (
	"math"
)

/// This function is used to ensure that a floating point number is not a NaN or infinity.
func IsValid(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

///////////////////////////////////////////////////////////////////////////////
/// A 2D column vector.
///////////////////////////////////////////////////////////////////////////////
type Vec2 struct {
	X, Y float64
}

func MakeVec2(xIn, yIn float64) Vec2 {
	return Vec2{
		X: xIn,
		Y: yIn,
	}
}

func NewVec2(xIn, yIn float64) *Vec2 {
	return &Vec2{
		X: xIn,
		Y: yIn,
	}
}

/// Set this vector to all zeros.
func (v *Vec2) SetZero() {
	v.X = 0.0
	v.Y = 0.0
}

/// Set this vector to some specified coordinates.
func (v *Vec2) Set(x, y float64) {
	v.X = x
	v.Y = y
}

/// Get the length of this vector (the norm).
func (v Vec2) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

/// Get the length squared. For performance, use this instead of
/// Vec2.Length (if possible).
func (v Vec2) LengthSquared() float64 {
	return v.X*v.X + v.Y*v.Y
}

/// Convert this vector into a unit vector. Returns the length.
func (v *Vec2) Normalize() float64 {
	length := v.Length()

	if length < epsilon {
		return 0.0
	}

	invLength := 1.0 / length
	v.X *= invLength
	v.Y *= invLength

	return length
}

/// Does this vector contain finite coordinates?
func (v Vec2) IsValid() bool {
	return IsValid(v.X) && IsValid(v.Y)
}

/// Useful constant
var Vec2Zero = MakeVec2(0, 0)

/// Perform the dot product on two vectors.
func Vec2Dot(a, b Vec2) float64 {
	return a.X*b.X + a.Y*b.Y
}

/// Perform the cross product on two vectors. In 2D this produces a scalar.
func Vec2Cross(a, b Vec2) float64 {
	return a.X*b.Y - a.Y*b.X
}

/// Add two vectors component-wise.
func Vec2Add(a, b Vec2) Vec2 {
	return MakeVec2(a.X+b.X, a.Y+b.Y)
}

/// Subtract two vectors component-wise.
func Vec2Sub(a, b Vec2) Vec2 {
	return MakeVec2(a.X-b.X, a.Y-b.Y)
}

func Vec2MulScalar(s float64, a Vec2) Vec2 {
	return MakeVec2(s*a.X, s*a.Y)
}

func Vec2Equals(a, b Vec2) bool {
	return a.X == b.X && a.Y == b.Y
}

func Vec2Distance(a, b Vec2) float64 {
	return Vec2Sub(a, b).Length()
}

func Vec2DistanceSquared(a, b Vec2) float64 {
	c := Vec2Sub(a, b)
	return Vec2Dot(c, c)
}

func Vec2Min(a, b Vec2) Vec2 {
	return MakeVec2(
		math.Min(a.X, b.X),
		math.Min(a.Y, b.Y),
	)
}

func Vec2Max(a, b Vec2) Vec2 {
	return MakeVec2(
		math.Max(a.X, b.X),
		math.Max(a.Y, b.Y),
	)
}

/// Lexicographic ordering by x, then y. Used wherever deterministic
/// point ordering is required (hull start vertex, triangulation input).
func Vec2Less(a, b Vec2) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

///////////////////////////////////////////////////////////////////////////////
/// An axis aligned bounding box.
///////////////////////////////////////////////////////////////////////////////
type AABB struct {
	LowerBound Vec2
	UpperBound Vec2
}

func MakeAABB() AABB {
	return AABB{
		LowerBound: MakeVec2(0, 0),
		UpperBound: MakeVec2(0, 0),
	}
}

func MakeAABBFromBounds(lower, upper Vec2) AABB {
	return AABB{
		LowerBound: lower,
		UpperBound: upper,
	}
}

/// The bounding box of a circle. Candidates from a range query over this
/// box must still be filtered by exact squared distance.
func MakeAABBAroundCircle(center Vec2, radius float64) AABB {
	r := MakeVec2(radius, radius)
	return AABB{
		LowerBound: Vec2Sub(center, r),
		UpperBound: Vec2Add(center, r),
	}
}

/// The tight bounding box of a point set. Returns a zero box for an
/// empty set.
func MakeAABBAroundPoints(points []Vec2) AABB {
	if len(points) == 0 {
		return MakeAABB()
	}

	lower := points[0]
	upper := points[0]
	for _, p := range points[1:] {
		lower = Vec2Min(lower, p)
		upper = Vec2Max(upper, p)
	}

	return AABB{LowerBound: lower, UpperBound: upper}
}

/// Get the center of the AABB.
func (bb AABB) GetCenter() Vec2 {
	return Vec2MulScalar(0.5, Vec2Add(bb.LowerBound, bb.UpperBound))
}

/// Get the extents of the AABB (half-widths).
func (bb AABB) GetExtents() Vec2 {
	return Vec2MulScalar(0.5, Vec2Sub(bb.UpperBound, bb.LowerBound))
}

/// Get the perimeter length.
func (bb AABB) GetPerimeter() float64 {
	wx := bb.UpperBound.X - bb.LowerBound.X
	wy := bb.UpperBound.Y - bb.LowerBound.Y
	return 2.0 * (wx + wy)
}

/// Combine an AABB into this one.
func (bb *AABB) CombineInPlace(aabb AABB) {
	bb.LowerBound = Vec2Min(bb.LowerBound, aabb.LowerBound)
	bb.UpperBound = Vec2Max(bb.UpperBound, aabb.UpperBound)
}

/// Does this aabb contain the provided AABB?
func (bb AABB) Contains(aabb AABB) bool {
	result := true
	result = result && bb.LowerBound.X <= aabb.LowerBound.X
	result = result && bb.LowerBound.Y <= aabb.LowerBound.Y
	result = result && aabb.UpperBound.X <= bb.UpperBound.X
	result = result && aabb.UpperBound.Y <= bb.UpperBound.Y
	return result
}

/// Does this aabb contain the point? Boundaries are inclusive.
func (bb AABB) ContainsPoint(p Vec2) bool {
	return bb.LowerBound.X <= p.X && p.X <= bb.UpperBound.X &&
		bb.LowerBound.Y <= p.Y && p.Y <= bb.UpperBound.Y
}

func (bb AABB) IsValid() bool {
	d := Vec2Sub(bb.UpperBound, bb.LowerBound)
	valid := d.X >= 0.0 && d.Y >= 0.0
	return valid && bb.LowerBound.IsValid() && bb.UpperBound.IsValid()
}

func TestOverlapBoundingBoxes(a, b AABB) bool {
	d1 := Vec2Sub(b.LowerBound, a.UpperBound)
	d2 := Vec2Sub(a.LowerBound, b.UpperBound)

	if d1.X > 0.0 || d1.Y > 0.0 {
		return false
	}

	if d2.X > 0.0 || d2.Y > 0.0 {
		return false
	}

	return true
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func AbsInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
