package softbody

import "errors"

/// Recoverable error kinds. Callers match with errors.Is; every one of
/// these has a defined fallback documented on the operation that returns it.
var (
	// Fewer points than an operation requires. Geometry operations handle
	// this themselves by returning a well-defined degenerate result; the
	// error form only appears at the manager boundary.
	ErrDegenerateInput = errors.New("degenerate input")

	// A NaN or infinite coordinate. Must be rejected at the integration
	// boundary; it never reaches the geometry predicates.
	ErrNonFiniteCoordinate = errors.New("non-finite coordinate")

	// Removing or moving a particle the index does not hold.
	ErrStaleHandle = errors.New("stale particle handle")

	// Inserting a particle the index already holds.
	ErrDuplicateHandle = errors.New("duplicate particle handle")

	// A quadtree leaf at the depth ceiling overflowed under StrictDepth.
	// Without StrictDepth the leaf degrades to a flat bucket instead.
	ErrCapacityExceeded = errors.New("quadtree capacity exceeded at max depth")

	// A position outside the spatial index root box. The manager recovers
	// by rebuilding the index over the enlarged point cloud.
	ErrOutOfBounds = errors.New("position outside index bounds")

	// A body identifier the manager does not know.
	ErrUnknownBody = errors.New("unknown body")

	// A particle identifier the manager does not know, or one that is not
	// a member of the named body.
	ErrUnknownParticle = errors.New("unknown particle")
)
