package softbody

/// Stable identifier of a composite body.
type BodyID int

/// A point mass. Created and integrated by the surrounding simulation; this
/// package never creates, destroys or integrates particles, it only reads
/// their state and tracks which body owns them.
type Particle struct {
	ID       ParticleID
	Position Vec2
	Velocity Vec2
	Mass     float64

	// Owning body. A back-reference, not ownership: the body owns the
	// membership list, never the particle's physical state.
	Body BodyID
}

/// Lifecycle of a composite body's cached topology.
type BodyState int

const (
	BodyEmpty BodyState = iota
	BodyPopulated
	BodyTopologyDirty
	BodyTopologyClean
	BodyDestroyed
)

func (s BodyState) String() string {
	switch s {
	case BodyEmpty:
		return "empty"
	case BodyPopulated:
		return "populated"
	case BodyTopologyDirty:
		return "topology-dirty"
	case BodyTopologyClean:
		return "topology-clean"
	}
	return "destroyed"
}

/// A composite body: a set of particles plus cached topology (convex hull
/// and link graph). The caches go stale whenever membership changes and are
/// recomputed on demand, not per step.
type Body struct {
	ID BodyID

	// Membership. Insertion order carries no meaning.
	Particles []ParticleID

	// Cached topology. The hull is stored as a cyclic sequence of boundary
	// particle identifiers, so a clean cache keeps tracking the particles
	// as they move; only membership changes invalidate it.
	hullKind HullKind
	hullIDs  []ParticleID
	links    []Link

	state BodyState
}

func (b *Body) State() BodyState {
	return b.state
}

// Membership changed: whatever topology was cached is stale now.
func (b *Body) markDirty() {
	if b.state == BodyDestroyed {
		return
	}
	if len(b.Particles) == 0 {
		b.state = BodyEmpty
		b.hullKind = HullEmpty
		b.hullIDs = nil
		b.links = nil
		return
	}
	b.state = BodyTopologyDirty
}

func (b *Body) hasParticle(id ParticleID) bool {
	for _, pid := range b.Particles {
		if pid == id {
			return true
		}
	}
	return false
}

func (b *Body) removeParticle(id ParticleID) bool {
	for i, pid := range b.Particles {
		if pid == id {
			b.Particles[i] = b.Particles[len(b.Particles)-1]
			b.Particles = b.Particles[:len(b.Particles)-1]
			return true
		}
	}
	return false
}
