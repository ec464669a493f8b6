package softbody

import (
	"fmt"
	"math"
)

/// Turn direction of the point triple (a, b, c).
type Winding int

const (
	WindingClockwise        Winding = -1
	WindingCollinear        Winding = 0
	WindingCounterClockwise Winding = 1
)

func (w Winding) String() string {
	switch w {
	case WindingClockwise:
		return "clockwise"
	case WindingCounterClockwise:
		return "counter-clockwise"
	}
	return "collinear"
}

/// CheckFiniteVec2 rejects NaN/Infinity coordinates. The predicates below
/// assume finite input; callers at the integration boundary run this first.
func CheckFiniteVec2(v Vec2) error {
	if !v.IsValid() {
		return fmt.Errorf("(%v, %v): %w", v.X, v.Y, ErrNonFiniteCoordinate)
	}
	return nil
}

/// Signed area of the parallelogram spanned by (b-a) and (c-a). Positive
/// for a counter-clockwise turn.
func CrossProduct(a, b, c Vec2) float64 {
	return Vec2Cross(Vec2Sub(b, a), Vec2Sub(c, a))
}

/// Orientation classifies the turn a->b->c. The cross product is compared
/// against eps scaled by the magnitude of the two edge vectors, so that a
/// nearly-degenerate triangle of large coordinates is still reported as
/// collinear rather than picking up a winding from floating error.
func Orientation(a, b, c Vec2, eps float64) Winding {
	cross := CrossProduct(a, b, c)

	scale := Vec2Sub(b, a).Length() * Vec2Sub(c, a).Length()
	if scale < 1.0 {
		scale = 1.0
	}

	if math.Abs(cross) <= eps*scale {
		return WindingCollinear
	}
	if cross > 0.0 {
		return WindingCounterClockwise
	}
	return WindingClockwise
}

/// InCircumcircle reports whether p lies strictly inside the circle through
/// a, b and c. The triangle may be given in either winding; the determinant
/// sign is normalized against the triangle's own orientation. Degenerate
/// (collinear) triangles have no circumcircle and always report false.
func InCircumcircle(a, b, c, p Vec2) bool {
	ax := a.X - p.X
	ay := a.Y - p.Y
	bx := b.X - p.X
	by := b.Y - p.Y
	cx := c.X - p.X
	cy := c.Y - p.Y

	det := (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)

	orient := CrossProduct(a, b, c)
	if orient > 0.0 {
		return det > 0.0
	}
	if orient < 0.0 {
		return det < 0.0
	}
	return false
}

// Non-strict variant used by the triangulation cavity carve: cocircular
// boundary points count as inside, so a cocircular quad carves both of its
// triangles and the cavity stays star-shaped.
func circumcircleCovers(a, b, c, p Vec2) bool {
	ax := a.X - p.X
	ay := a.Y - p.Y
	bx := b.X - p.X
	by := b.Y - p.Y
	cx := c.X - p.X
	cy := c.Y - p.Y

	det := (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)

	orient := CrossProduct(a, b, c)
	if orient > 0.0 {
		return det >= 0.0
	}
	if orient < 0.0 {
		return det <= 0.0
	}
	return false
}

/// SquaredDistance between two points. Prefer this over Vec2Distance when
/// only comparisons are needed.
func SquaredDistance(a, b Vec2) float64 {
	return Vec2DistanceSquared(a, b)
}
