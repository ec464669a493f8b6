package softbody

import (
	"math"
	"sort"
)

/// A spring between two particles of the same body. The pair is unordered;
/// it is stored canonically with A < B so links compare and deduplicate by
/// value. RestLength is the endpoint distance at construction time. Damping
/// and BreakFactor ride along from the configuration for the force loop;
/// this package never evaluates them.
type Link struct {
	A, B        ParticleID
	RestLength  float64
	Stiffness   float64
	Damping     float64
	BreakFactor float64
}

func MakeLink(a, b ParticleID, pa, pb Vec2, cfg Config) Link {
	Assert(a != b)
	if b < a {
		a, b = b, a
		pa, pb = pb, pa
	}
	return Link{
		A:           a,
		B:           b,
		RestLength:  Vec2Distance(pa, pb),
		Stiffness:   cfg.DefaultStiffness,
		Damping:     cfg.DefaultDamping,
		BreakFactor: cfg.BreakFactor,
	}
}

// Triangle over indices into the linker's working point slice.
type triangle struct {
	a, b, c int
}

type triEdge struct {
	u, v int // canonical u < v
}

func makeTriEdge(u, v int) triEdge {
	if v < u {
		u, v = v, u
	}
	return triEdge{u: u, v: v}
}

func (t triangle) edges() [3]triEdge {
	return [3]triEdge{
		makeTriEdge(t.a, t.b),
		makeTriEdge(t.b, t.c),
		makeTriEdge(t.c, t.a),
	}
}

type linkerPoint struct {
	id  ParticleID
	pos Vec2
}

/// BuildLinks derives the internal spring graph of a body from a Delaunay
/// triangulation of its particle positions (Bowyer-Watson insertion). The
/// result satisfies the empty-circumcircle property: no input point lies
/// strictly inside the circumcircle of any produced triangle.
///
/// Degenerate inputs produce degenerate graphs instead of errors: fewer
/// than two usable points yield no links, exactly two yield a single link,
/// and a fully collinear set yields a path graph chained along the line.
/// Coincident points are welded first so no zero-length link is generated.
///
/// This is the costliest operation of the engine. It runs only on topology
/// change (add/remove/merge/split), never per simulation step.
func BuildLinks(ids []ParticleID, at func(ParticleID) Vec2, cfg Config) []Link {
	cfg = cfg.Sanitized()
	eps := cfg.CollinearEpsilon

	pts := make([]linkerPoint, 0, len(ids))
	for _, id := range ids {
		pts = append(pts, linkerPoint{id: id, pos: at(id)})
	}

	// Deterministic processing order regardless of membership ordering,
	// then weld coincident positions (keeping the smallest id).
	sort.Slice(pts, func(i, j int) bool {
		if !Vec2Equals(pts[i].pos, pts[j].pos) {
			return Vec2Less(pts[i].pos, pts[j].pos)
		}
		return pts[i].id < pts[j].id
	})

	n := 0
	for i := range pts {
		if i == 0 || !Vec2Equals(pts[i].pos, pts[n-1].pos) {
			pts[n] = pts[i]
			n++
		}
	}
	pts = pts[:n]

	if n < 2 {
		return nil
	}
	if n == 2 {
		return []Link{MakeLink(pts[0].id, pts[1].id, pts[0].pos, pts[1].pos, cfg)}
	}

	if collinearPoints(pts, eps) {
		return chainLinks(pts, cfg)
	}

	tris := triangulate(pts, eps)

	edgeSet := make(map[triEdge]bool)
	for _, t := range tris {
		for _, e := range t.edges() {
			edgeSet[e] = true
		}
	}

	links := make([]Link, 0, len(edgeSet))
	for e := range edgeSet {
		pu := pts[e.u]
		pv := pts[e.v]
		links = append(links, MakeLink(pu.id, pv.id, pu.pos, pv.pos, cfg))
	}

	sortLinks(links)
	return links
}

func sortLinks(links []Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].A != links[j].A {
			return links[i].A < links[j].A
		}
		return links[i].B < links[j].B
	})
}

// All points collinear w.r.t. the segment between the two extremes?
func collinearPoints(pts []linkerPoint, eps float64) bool {
	a := pts[0].pos
	b := pts[len(pts)-1].pos
	for _, p := range pts[1 : len(pts)-1] {
		if Orientation(a, b, p.pos, eps) != WindingCollinear {
			return false
		}
	}
	return true
}

// A path graph along the line. pts are already sorted lexicographically,
// which orders them along the dominant axis of the line.
func chainLinks(pts []linkerPoint, cfg Config) []Link {
	links := make([]Link, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		links = append(links, MakeLink(pts[i-1].id, pts[i].id, pts[i-1].pos, pts[i].pos, cfg))
	}
	sortLinks(links)
	return links
}

// Bowyer-Watson: insert points one at a time into a super-triangle, carve
// out every triangle whose circumcircle contains the point, and fan the
// point against the boundary of the carved cavity. Triangles sharing a
// super-triangle vertex are discarded at the end. Termination is the
// standard Delaunay argument: each insertion strictly shrinks circumcircles
// and the cavity is star-shaped around the inserted point.
func triangulate(pts []linkerPoint, eps float64) []triangle {
	n := len(pts)

	// Super-triangle comfortably enclosing the point cloud.
	bounds := MakeAABB()
	bounds.LowerBound = pts[0].pos
	bounds.UpperBound = pts[0].pos
	for _, p := range pts[1:] {
		bounds.LowerBound = Vec2Min(bounds.LowerBound, p.pos)
		bounds.UpperBound = Vec2Max(bounds.UpperBound, p.pos)
	}

	center := bounds.GetCenter()
	ext := bounds.GetExtents()
	m := math.Max(ext.X, ext.Y)
	if m < 1.0 {
		m = 1.0
	}
	m *= 16.0

	super := [3]Vec2{
		MakeVec2(center.X-2.0*m, center.Y-m),
		MakeVec2(center.X+2.0*m, center.Y-m),
		MakeVec2(center.X, center.Y+2.0*m),
	}

	pos := func(i int) Vec2 {
		if i >= n {
			return super[i-n]
		}
		return pts[i].pos
	}

	tris := []triangle{{a: n, b: n + 1, c: n + 2}}

	for i := 0; i < n; i++ {
		p := pos(i)

		// Carve the cavity.
		var keep []triangle
		boundary := make(map[triEdge]int)
		for _, t := range tris {
			if circumcircleCovers(pos(t.a), pos(t.b), pos(t.c), p) {
				for _, e := range t.edges() {
					boundary[e]++
				}
			} else {
				keep = append(keep, t)
			}
		}

		// Re-triangulate against edges seen exactly once (the cavity rim).
		tris = keep
		for e, count := range boundary {
			if count != 1 {
				continue
			}
			tris = append(tris, triangle{a: e.u, b: e.v, c: i})
		}
	}

	// Drop triangles attached to the synthetic super vertices.
	out := tris[:0]
	for _, t := range tris {
		if t.a >= n || t.b >= n || t.c >= n {
			continue
		}
		// Guard against slivers the epsilon considers degenerate.
		if Orientation(pos(t.a), pos(t.b), pos(t.c), eps) == WindingCollinear {
			continue
		}
		out = append(out, t)
	}

	return out
}
