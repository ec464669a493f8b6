package softbody

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
)

/// Manager orchestrates topology and spatial queries for a set of composite
/// bodies. The integrator pushes particle positions into it once per step;
/// the force loop reads hulls, link graphs and neighbor queries back out.
///
/// The spatial index refresh is cheap and happens on every position update.
/// Hull and link recomputation is expensive and happens only when a body is
/// topology-dirty, synchronously on first query or batched (optionally in
/// parallel) via RefreshTopology.
///
/// Not safe for concurrent mutation. Queries are safe concurrently once a
/// step's mutations have been applied.
type Manager struct {
	cfg    Config
	logger *log.Logger

	particles map[ParticleID]*Particle
	bodies    map[BodyID]*Body

	tree      QuadTree
	treeBuilt bool

	step     int
	nextBody BodyID
}

func NewManager(cfg Config, logger *log.Logger) *Manager {
	cfg = cfg.Sanitized()
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		particles: make(map[ParticleID]*Particle),
		bodies:    make(map[BodyID]*Body),
		tree:      MakeQuadTree(MakeAABBFromBounds(MakeVec2(-1, -1), MakeVec2(1, 1)), cfg, logger),
		nextBody:  1,
	}
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

/// Config returns the active (sanitized) configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

/// BeginStep advances and returns the simulation step counter. The counter
/// is bookkeeping owned by the manager and passed around explicitly; no
/// global clock exists.
func (m *Manager) BeginStep() int {
	m.step++
	return m.step
}

func (m *Manager) Step() int {
	return m.step
}

///////////////////////////////////////////////////////////////////////////////
// Body lifecycle
///////////////////////////////////////////////////////////////////////////////

/// CreateBody registers a new composite body from particles created by the
/// integrator. Particle identifiers must be globally unique and positions
/// finite. The body starts topology-dirty (or empty, with no particles).
func (m *Manager) CreateBody(particles []Particle) (BodyID, error) {
	for _, p := range particles {
		if err := CheckFiniteVec2(p.Position); err != nil {
			return 0, fmt.Errorf("particle %d: %w", p.ID, err)
		}
		if _, exists := m.particles[p.ID]; exists {
			return 0, fmt.Errorf("particle %d already registered: %w", p.ID, ErrDuplicateHandle)
		}
	}

	id := m.nextBody
	m.nextBody++

	body := &Body{ID: id, state: BodyEmpty}
	m.bodies[id] = body

	for i := range particles {
		p := particles[i]
		p.Body = id
		m.particles[p.ID] = &p
		body.Particles = append(body.Particles, p.ID)
		m.indexInsert(p.ID, p.Position)
	}

	// A freshly populated body holds no caches yet; the first hull or link
	// query computes them.
	if len(body.Particles) > 0 {
		body.state = BodyPopulated
	}
	return id, nil
}

/// DestroyBody removes a body and unregisters its particles from the index
/// and the registry.
func (m *Manager) DestroyBody(id BodyID) error {
	body, ok := m.bodies[id]
	if !ok {
		return fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	for _, pid := range body.Particles {
		m.indexRemove(pid)
		delete(m.particles, pid)
	}

	body.Particles = nil
	body.state = BodyDestroyed
	delete(m.bodies, id)
	return nil
}

/// AddParticle attaches an integrator-created particle to a body and marks
/// the body topology-dirty.
func (m *Manager) AddParticle(bodyID BodyID, p Particle) error {
	body, ok := m.bodies[bodyID]
	if !ok {
		return fmt.Errorf("body %d: %w", bodyID, ErrUnknownBody)
	}
	if err := CheckFiniteVec2(p.Position); err != nil {
		return fmt.Errorf("particle %d: %w", p.ID, err)
	}
	if _, exists := m.particles[p.ID]; exists {
		return fmt.Errorf("particle %d already registered: %w", p.ID, ErrDuplicateHandle)
	}

	p.Body = bodyID
	m.particles[p.ID] = &p
	body.Particles = append(body.Particles, p.ID)
	m.indexInsert(p.ID, p.Position)

	body.markDirty()
	return nil
}

/// RemoveParticle detaches a particle from its body and drops it from the
/// index and the registry. The body goes topology-dirty (or empty).
func (m *Manager) RemoveParticle(bodyID BodyID, id ParticleID) error {
	body, ok := m.bodies[bodyID]
	if !ok {
		return fmt.Errorf("body %d: %w", bodyID, ErrUnknownBody)
	}
	if !body.removeParticle(id) {
		return fmt.Errorf("particle %d not a member of body %d: %w", id, bodyID, ErrUnknownParticle)
	}

	m.indexRemove(id)
	delete(m.particles, id)

	body.markDirty()
	return nil
}

/// MergeBodies absorbs src into dst. dst becomes topology-dirty; src is
/// destroyed. The particles keep their identifiers and physical state.
func (m *Manager) MergeBodies(dst, src BodyID) error {
	if dst == src {
		return fmt.Errorf("cannot merge body %d with itself: %w", dst, ErrDegenerateInput)
	}
	dstBody, ok := m.bodies[dst]
	if !ok {
		return fmt.Errorf("body %d: %w", dst, ErrUnknownBody)
	}
	srcBody, ok := m.bodies[src]
	if !ok {
		return fmt.Errorf("body %d: %w", src, ErrUnknownBody)
	}

	for _, pid := range srcBody.Particles {
		m.particles[pid].Body = dst
		dstBody.Particles = append(dstBody.Particles, pid)
	}

	srcBody.Particles = nil
	srcBody.state = BodyDestroyed
	delete(m.bodies, src)

	dstBody.markDirty()
	return nil
}

/// SplitBody moves the listed particles out of a body into a newly created
/// one. Both resulting bodies are topology-dirty.
func (m *Manager) SplitBody(id BodyID, members []ParticleID) (BodyID, error) {
	body, ok := m.bodies[id]
	if !ok {
		return 0, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	for _, pid := range members {
		if !body.hasParticle(pid) {
			return 0, fmt.Errorf("particle %d not a member of body %d: %w", pid, id, ErrUnknownParticle)
		}
	}

	newID := m.nextBody
	m.nextBody++
	newBody := &Body{ID: newID, state: BodyEmpty}
	m.bodies[newID] = newBody

	for _, pid := range members {
		body.removeParticle(pid)
		m.particles[pid].Body = newID
		newBody.Particles = append(newBody.Particles, pid)
	}

	body.markDirty()
	newBody.markDirty()
	return newID, nil
}

/// NotifyMembershipChanged marks a body topology-dirty. Called by external
/// body-lifecycle logic that mutated membership through its own channels.
func (m *Manager) NotifyMembershipChanged(id BodyID) error {
	body, ok := m.bodies[id]
	if !ok {
		return fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}
	body.markDirty()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Per-step position flow and the spatial index
///////////////////////////////////////////////////////////////////////////////

/// UpdatePositions pushes the integrator's new particle positions for one
/// body. Call once per body per step, before any query. Non-finite
/// coordinates are rejected wholesale; no partial update happens.
///
/// The spatial index refresh policy: small displacements are applied
/// incrementally (the particle usually stays in its leaf); a large mean
/// displacement, or any position escaping the index bounds, triggers a full
/// rebuild over the whole particle cloud.
func (m *Manager) UpdatePositions(bodyID BodyID, positions map[ParticleID]Vec2) error {
	body, ok := m.bodies[bodyID]
	if !ok {
		return fmt.Errorf("body %d: %w", bodyID, ErrUnknownBody)
	}

	for pid, pos := range positions {
		if !body.hasParticle(pid) {
			return fmt.Errorf("particle %d not a member of body %d: %w", pid, bodyID, ErrUnknownParticle)
		}
		if err := CheckFiniteVec2(pos); err != nil {
			return fmt.Errorf("particle %d: %w", pid, err)
		}
	}

	totalDisplacement := 0.0
	for pid, pos := range positions {
		totalDisplacement += Vec2Distance(m.particles[pid].Position, pos)
		m.particles[pid].Position = pos
	}

	if !m.treeBuilt || m.needsRebuild(positions, totalDisplacement/math.Max(1.0, float64(len(positions)))) {
		return m.rebuildIndex()
	}

	for pid, pos := range positions {
		if err := m.tree.Move(pid, pos); err != nil {
			if errors.Is(err, ErrOutOfBounds) || errors.Is(err, ErrStaleHandle) {
				m.logf("index move: %v; rebuilding", err)
				return m.rebuildIndex()
			}
			return err
		}
	}

	return nil
}

// Rebuild when the mean displacement outgrows the finest expected leaf
// extent, or when any position left the root box. The heuristic only picks
// the cheaper path; query correctness never depends on it.
func (m *Manager) needsRebuild(positions map[ParticleID]Vec2, meanDisplacement float64) bool {
	bounds := m.tree.Bounds()
	for _, pos := range positions {
		if !bounds.ContainsPoint(pos) {
			return true
		}
	}

	ext := bounds.GetExtents()
	leafExtent := math.Max(ext.X, ext.Y) / float64(int(1)<<uint(m.cfg.MaxDepth/2))
	return meanDisplacement > 0.5*leafExtent
}

// Full index rebuild over every registered particle.
func (m *Manager) rebuildIndex() error {
	points := make([]Vec2, 0, len(m.particles))
	for _, p := range m.particles {
		points = append(points, p.Position)
	}

	bounds := MakeAABBAroundPoints(points)
	ext := bounds.GetExtents()
	pad := MakeVec2(aabbExtension+0.1*ext.X, aabbExtension+0.1*ext.Y)
	bounds.LowerBound = Vec2Sub(bounds.LowerBound, pad)
	bounds.UpperBound = Vec2Add(bounds.UpperBound, pad)

	m.tree.Reset(bounds)
	for pid, p := range m.particles {
		if err := m.tree.Insert(pid, p.Position); err != nil {
			return fmt.Errorf("index rebuild: %w", err)
		}
	}

	m.treeBuilt = true
	return nil
}

func (m *Manager) indexInsert(id ParticleID, pos Vec2) {
	if !m.treeBuilt {
		if err := m.rebuildIndex(); err != nil {
			m.logf("index build: %v", err)
		}
		return
	}
	if err := m.tree.Insert(id, pos); err != nil {
		if errors.Is(err, ErrOutOfBounds) {
			if err := m.rebuildIndex(); err != nil {
				m.logf("index rebuild: %v", err)
			}
			return
		}
		m.logf("index insert: %v", err)
	}
}

func (m *Manager) indexRemove(id ParticleID) {
	if err := m.tree.Remove(id); err != nil {
		// Stale handles are recoverable: log and move on.
		m.logf("index remove: %v", err)
	}
}

/// QueryNeighbors returns the identifiers of all particles within radius of
/// position, across all bodies, in ascending identifier order. This is the
/// primitive the force loop uses for short-range interaction and that
/// spontaneous spring creation consumes; the trigger policy for new springs
/// lives entirely with the caller.
func (m *Manager) QueryNeighbors(position Vec2, radius float64) ([]ParticleID, error) {
	if err := CheckFiniteVec2(position); err != nil {
		return nil, err
	}

	found := m.tree.QueryRadius(position, radius)
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return found, nil
}

///////////////////////////////////////////////////////////////////////////////
// Topology caches
///////////////////////////////////////////////////////////////////////////////

/// Hull returns the body's convex boundary, recomputing the boundary
/// membership synchronously if the body is topology-dirty. On a clean body
/// the cached boundary is a cycle of particle identifiers, so the returned
/// polygon is materialized from current positions and tracks motion without
/// a recompute.
func (m *Manager) Hull(bodyID BodyID) (Hull, error) {
	body, ok := m.bodies[bodyID]
	if !ok {
		return MakeEmptyHull(), fmt.Errorf("body %d: %w", bodyID, ErrUnknownBody)
	}

	if body.state == BodyTopologyDirty || body.state == BodyPopulated {
		m.recomputeTopology(body)
	}

	vertices := make([]Vec2, len(body.hullIDs))
	for i, pid := range body.hullIDs {
		vertices[i] = m.particles[pid].Position
	}
	return Hull{Kind: body.hullKind, Vertices: vertices}, nil
}

/// HullIDs returns the cached cyclic sequence of boundary particle
/// identifiers (counter-clockwise), recomputing if dirty.
func (m *Manager) HullIDs(bodyID BodyID) ([]ParticleID, error) {
	body, ok := m.bodies[bodyID]
	if !ok {
		return nil, fmt.Errorf("body %d: %w", bodyID, ErrUnknownBody)
	}

	if body.state == BodyTopologyDirty || body.state == BodyPopulated {
		m.recomputeTopology(body)
	}

	ids := make([]ParticleID, len(body.hullIDs))
	copy(ids, body.hullIDs)
	return ids, nil
}

/// Links returns the body's internal spring graph, recomputing it
/// synchronously if the body is topology-dirty. The slice is owned by the
/// cache; callers must not mutate it.
func (m *Manager) Links(bodyID BodyID) ([]Link, error) {
	body, ok := m.bodies[bodyID]
	if !ok {
		return nil, fmt.Errorf("body %d: %w", bodyID, ErrUnknownBody)
	}

	if body.state == BodyTopologyDirty || body.state == BodyPopulated {
		m.recomputeTopology(body)
	}
	return body.links, nil
}

func (m *Manager) recomputeTopology(body *Body) {
	points := make([]Vec2, 0, len(body.Particles))
	owner := make(map[Vec2]ParticleID, len(body.Particles))
	for _, pid := range body.Particles {
		pos := m.particles[pid].Position
		points = append(points, pos)
		// Coincident particles weld to the smallest identifier, matching
		// the linker, so hull vertex ownership is deterministic.
		if prev, seen := owner[pos]; !seen || pid < prev {
			owner[pos] = pid
		}
	}

	h := ComputeHull(points, m.cfg.CollinearEpsilon)
	body.hullKind = h.Kind
	body.hullIDs = body.hullIDs[:0]
	for _, v := range h.Vertices {
		body.hullIDs = append(body.hullIDs, owner[v])
	}

	body.links = BuildLinks(body.Particles, func(id ParticleID) Vec2 {
		return m.particles[id].Position
	}, m.cfg)

	if len(body.Particles) == 0 {
		body.state = BodyEmpty
		return
	}
	body.state = BodyTopologyClean
}

/// RefreshTopology recomputes hull and links for every topology-dirty body.
/// Per-body recomputation touches no shared mutable state, so with parallel
/// set the bodies are handled on worker goroutines; the WaitGroup barrier
/// guarantees all caches are in place before the call returns and queries
/// begin.
func (m *Manager) RefreshTopology(parallel bool) {
	var dirty []*Body
	for _, body := range m.bodies {
		if body.state == BodyTopologyDirty || body.state == BodyPopulated {
			dirty = append(dirty, body)
		}
	}

	if !parallel || len(dirty) < 2 {
		for _, body := range dirty {
			m.recomputeTopology(body)
		}
		return
	}

	var wg sync.WaitGroup
	for _, body := range dirty {
		wg.Add(1)
		go func(b *Body) {
			defer wg.Done()
			m.recomputeTopology(b)
		}(body)
	}
	wg.Wait()
}

///////////////////////////////////////////////////////////////////////////////
// Accessors and aggregates
///////////////////////////////////////////////////////////////////////////////

/// GetParticle returns a copy of a registered particle's state.
func (m *Manager) GetParticle(id ParticleID) (Particle, error) {
	p, ok := m.particles[id]
	if !ok {
		return Particle{}, fmt.Errorf("particle %d: %w", id, ErrUnknownParticle)
	}
	return *p, nil
}

/// GetBody returns the body record, or ErrUnknownBody.
func (m *Manager) GetBody(id BodyID) (*Body, error) {
	body, ok := m.bodies[id]
	if !ok {
		return nil, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}
	return body, nil
}

/// BodyMass is the total mass of the body's particles.
func (m *Manager) BodyMass(id BodyID) (float64, error) {
	body, ok := m.bodies[id]
	if !ok {
		return 0, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	total := 0.0
	for _, pid := range body.Particles {
		total += m.particles[pid].Mass
	}
	return total, nil
}

/// BodyCenterOfMass is the mass-weighted mean position.
func (m *Manager) BodyCenterOfMass(id BodyID) (Vec2, error) {
	body, ok := m.bodies[id]
	if !ok {
		return Vec2Zero, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	total := 0.0
	com := MakeVec2(0, 0)
	for _, pid := range body.Particles {
		p := m.particles[pid]
		total += p.Mass
		com = Vec2Add(com, Vec2MulScalar(p.Mass, p.Position))
	}

	if total <= 0.0 {
		return Vec2Zero, fmt.Errorf("body %d has no mass: %w", id, ErrDegenerateInput)
	}
	return Vec2MulScalar(1.0/total, com), nil
}

/// BodyAverageVelocity is the mass-weighted mean velocity (the velocity of
/// the center of mass).
func (m *Manager) BodyAverageVelocity(id BodyID) (Vec2, error) {
	body, ok := m.bodies[id]
	if !ok {
		return Vec2Zero, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	total := 0.0
	v := MakeVec2(0, 0)
	for _, pid := range body.Particles {
		p := m.particles[pid]
		total += p.Mass
		v = Vec2Add(v, Vec2MulScalar(p.Mass, p.Velocity))
	}

	if total <= 0.0 {
		return Vec2Zero, fmt.Errorf("body %d has no mass: %w", id, ErrDegenerateInput)
	}
	return Vec2MulScalar(1.0/total, v), nil
}

/// BodyKineticEnergy is the energy of the body's bulk motion.
func (m *Manager) BodyKineticEnergy(id BodyID) (float64, error) {
	mass, err := m.BodyMass(id)
	if err != nil {
		return 0, err
	}
	v, err := m.BodyAverageVelocity(id)
	if err != nil {
		return 0, err
	}
	return 0.5 * mass * v.LengthSquared(), nil
}

/// BodyThermalEnergy is the kinetic energy of the particles relative to the
/// body's center-of-velocity.
func (m *Manager) BodyThermalEnergy(id BodyID) (float64, error) {
	body, ok := m.bodies[id]
	if !ok {
		return 0, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	cv, err := m.BodyAverageVelocity(id)
	if err != nil {
		return 0, err
	}

	e := 0.0
	for _, pid := range body.Particles {
		p := m.particles[pid]
		e += p.Mass * Vec2Sub(p.Velocity, cv).LengthSquared()
	}
	return 0.5 * e, nil
}
