package softbody

import (
	"math"
	"sort"
)

/// Shape class of a computed hull. Callers are expected to switch on this
/// exhaustively rather than infer degeneracy from vertex counts.
type HullKind int

const (
	HullEmpty HullKind = iota
	HullPoint
	HullSegment
	HullPolygon
)

func (k HullKind) String() string {
	switch k {
	case HullEmpty:
		return "empty"
	case HullPoint:
		return "point"
	case HullSegment:
		return "segment"
	}
	return "polygon"
}

/// The convex boundary of a point set.
///
/// For HullPolygon the vertices form a counter-clockwise cycle starting at
/// the lexicographically smallest point (by x, then y), with no three
/// consecutive vertices collinear. HullSegment carries the two extreme
/// points of a collinear set, HullPoint a single vertex, HullEmpty none.
type Hull struct {
	Kind     HullKind
	Vertices []Vec2
}

func MakeEmptyHull() Hull {
	return Hull{Kind: HullEmpty}
}

/// ComputeHull computes the convex boundary of a 2D point set using the
/// monotone chain algorithm. Duplicate points are dropped first. Interior
/// collinear boundary points are excluded, so the output is minimal.
/// O(n log n), dominated by the lexicographic sort; the sort also makes the
/// output independent of input ordering.
func ComputeHull(points []Vec2, eps float64) Hull {
	ps := make([]Vec2, len(points))
	copy(ps, points)

	sort.Slice(ps, func(i, j int) bool {
		return Vec2Less(ps[i], ps[j])
	})

	// Weld exact duplicates.
	n := 0
	for i := range ps {
		if i == 0 || !Vec2Equals(ps[i], ps[n-1]) {
			ps[n] = ps[i]
			n++
		}
	}
	ps = ps[:n]

	switch n {
	case 0:
		return MakeEmptyHull()
	case 1:
		return Hull{Kind: HullPoint, Vertices: ps}
	case 2:
		return Hull{Kind: HullSegment, Vertices: ps}
	}

	// Lower hull, then upper hull over the reversed order. A pop happens
	// whenever the new point fails to make a strict counter-clockwise turn,
	// which also removes interior collinear points.
	hull := make([]Vec2, 0, n+1)

	for _, p := range ps {
		for len(hull) >= 2 && Orientation(hull[len(hull)-2], hull[len(hull)-1], p, eps) != WindingCounterClockwise {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lowerCount := len(hull)
	for i := n - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lowerCount+1 && Orientation(hull[len(hull)-2], hull[len(hull)-1], p, eps) != WindingCounterClockwise {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// The first point reappears as the last element of the upper chain.
	hull = hull[:len(hull)-1]

	if len(hull) == 2 {
		// All points collinear: the chain collapsed to the two extremes.
		return Hull{Kind: HullSegment, Vertices: hull}
	}

	return Hull{Kind: HullPolygon, Vertices: hull}
}

/// Contains reports whether p lies inside or on the hull boundary. For a
/// polygon this is the half-plane test against every edge; for the
/// degenerate kinds eps doubles as an absolute distance tolerance.
func (h Hull) Contains(p Vec2, eps float64) bool {
	switch h.Kind {
	case HullEmpty:
		return false

	case HullPoint:
		return Vec2Distance(h.Vertices[0], p) <= eps

	case HullSegment:
		a := h.Vertices[0]
		b := h.Vertices[1]
		if Orientation(a, b, p, eps) != WindingCollinear {
			return false
		}
		// Within the segment's span.
		t := Vec2Dot(Vec2Sub(p, a), Vec2Sub(b, a))
		return t >= -eps && t <= Vec2DistanceSquared(a, b)+eps
	}

	for i := 0; i < len(h.Vertices); i++ {
		a := h.Vertices[i]
		b := h.Vertices[(i+1)%len(h.Vertices)]
		if Orientation(a, b, p, eps) == WindingClockwise {
			return false
		}
	}

	return true
}

/// Area of the hull polygon via the shoelace formula. Zero for the
/// degenerate kinds.
func (h Hull) Area() float64 {
	if h.Kind != HullPolygon {
		return 0.0
	}

	area := 0.0
	for i := 0; i < len(h.Vertices); i++ {
		a := h.Vertices[i]
		b := h.Vertices[(i+1)%len(h.Vertices)]
		area += Vec2Cross(a, b)
	}

	return math.Abs(area) * 0.5
}

/// Perimeter walks the cyclic vertex sequence, so a segment hull reports
/// twice its length (out and back), matching the cyclic polygon contract.
func (h Hull) Perimeter() float64 {
	if len(h.Vertices) < 2 {
		return 0.0
	}

	perimeter := 0.0
	for i := 0; i < len(h.Vertices); i++ {
		a := h.Vertices[i]
		b := h.Vertices[(i+1)%len(h.Vertices)]
		perimeter += Vec2Distance(a, b)
	}

	return perimeter
}

/// Centroid of the hull. Polygon centroid is area-weighted; a segment
/// yields its midpoint, a point itself, an empty hull the origin.
func (h Hull) Centroid() Vec2 {
	switch h.Kind {
	case HullEmpty:
		return MakeVec2(0, 0)
	case HullPoint:
		return h.Vertices[0]
	case HullSegment:
		return Vec2MulScalar(0.5, Vec2Add(h.Vertices[0], h.Vertices[1]))
	}

	c := MakeVec2(0, 0)
	signedArea := 0.0

	for i := 0; i < len(h.Vertices); i++ {
		a := h.Vertices[i]
		b := h.Vertices[(i+1)%len(h.Vertices)]
		cross := Vec2Cross(a, b)
		signedArea += cross
		c.X += (a.X + b.X) * cross
		c.Y += (a.Y + b.Y) * cross
	}

	Assert(signedArea != 0.0)
	return Vec2MulScalar(1.0/(3.0*signedArea), c)
}

/// BoundingRadius is the largest distance from the centroid to a vertex.
func (h Hull) BoundingRadius() float64 {
	if len(h.Vertices) == 0 {
		return 0.0
	}

	c := h.Centroid()
	radius := 0.0
	for _, v := range h.Vertices {
		radius = math.Max(radius, Vec2Distance(c, v))
	}

	return radius
}

/// ComputeAABB returns the tight bounding box of the hull vertices.
func (h Hull) ComputeAABB() AABB {
	return MakeAABBAroundPoints(h.Vertices)
}
