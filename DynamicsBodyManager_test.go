package softbody

import (
	"errors"
	"math"
	"testing"
)

func squareBodyParticles() []Particle {
	return []Particle{
		{ID: 1, Position: MakeVec2(0, 0), Mass: 1},
		{ID: 2, Position: MakeVec2(4, 0), Mass: 1},
		{ID: 3, Position: MakeVec2(4, 4), Mass: 1},
		{ID: 4, Position: MakeVec2(0, 4), Mass: 1},
		{ID: 5, Position: MakeVec2(2, 2), Mass: 1},
	}
}

func mustCreate(t *testing.T, m *Manager, particles []Particle) BodyID {
	t.Helper()
	id, err := m.CreateBody(particles)
	if err != nil {
		t.Fatalf("CreateBody: %v", err)
	}
	return id
}

func bodyState(t *testing.T, m *Manager, id BodyID) BodyState {
	t.Helper()
	body, err := m.GetBody(id)
	if err != nil {
		t.Fatalf("GetBody(%d): %v", id, err)
	}
	return body.State()
}

func TestManagerStateMachine(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)

	id := mustCreate(t, m, squareBodyParticles())
	if s := bodyState(t, m, id); s != BodyPopulated {
		t.Fatalf("after create: %v", s)
	}

	if _, err := m.Hull(id); err != nil {
		t.Fatalf("Hull: %v", err)
	}
	if s := bodyState(t, m, id); s != BodyTopologyClean {
		t.Fatalf("after first hull query: %v", s)
	}

	if err := m.AddParticle(id, Particle{ID: 6, Position: MakeVec2(1, 1), Mass: 1}); err != nil {
		t.Fatalf("AddParticle: %v", err)
	}
	if s := bodyState(t, m, id); s != BodyTopologyDirty {
		t.Fatalf("after add: %v", s)
	}

	if _, err := m.Links(id); err != nil {
		t.Fatalf("Links: %v", err)
	}
	if s := bodyState(t, m, id); s != BodyTopologyClean {
		t.Fatalf("after links query: %v", s)
	}

	if err := m.RemoveParticle(id, 6); err != nil {
		t.Fatalf("RemoveParticle: %v", err)
	}
	if s := bodyState(t, m, id); s != BodyTopologyDirty {
		t.Fatalf("after remove: %v", s)
	}

	if err := m.DestroyBody(id); err != nil {
		t.Fatalf("DestroyBody: %v", err)
	}
	if _, err := m.Hull(id); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("hull of destroyed body: %v", err)
	}
	if _, err := m.GetParticle(1); !errors.Is(err, ErrUnknownParticle) {
		t.Fatalf("particle of destroyed body: %v", err)
	}
}

func TestManagerEmptyBody(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)

	id := mustCreate(t, m, nil)
	if s := bodyState(t, m, id); s != BodyEmpty {
		t.Fatalf("state: %v", s)
	}

	h, err := m.Hull(id)
	if err != nil {
		t.Fatalf("Hull: %v", err)
	}
	if h.Kind != HullEmpty {
		t.Fatalf("hull kind: %v", h.Kind)
	}
	links, err := m.Links(id)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("links: %v", links)
	}
}

func TestManagerHullAndLinksOfSquareBody(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, squareBodyParticles())

	h, err := m.Hull(id)
	if err != nil {
		t.Fatalf("Hull: %v", err)
	}
	if h.Kind != HullPolygon || len(h.Vertices) != 4 {
		t.Fatalf("hull: %v/%d", h.Kind, len(h.Vertices))
	}

	ids, err := m.HullIDs(id)
	if err != nil {
		t.Fatalf("HullIDs: %v", err)
	}
	want := []ParticleID{1, 2, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("hull ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("hull ids: got %v want %v", ids, want)
		}
	}

	links, err := m.Links(id)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 8 {
		t.Fatalf("links: got %d want 8", len(links))
	}
}

func TestManagerHullTracksMotion(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, squareBodyParticles())

	if _, err := m.Hull(id); err != nil {
		t.Fatalf("Hull: %v", err)
	}

	// Rigid translation: no membership change, so the body stays clean and
	// the hull must follow the particles without a recompute.
	moved := make(map[ParticleID]Vec2)
	for _, p := range squareBodyParticles() {
		moved[p.ID] = Vec2Add(p.Position, MakeVec2(1, 0))
	}
	if err := m.UpdatePositions(id, moved); err != nil {
		t.Fatalf("UpdatePositions: %v", err)
	}
	if s := bodyState(t, m, id); s != BodyTopologyClean {
		t.Fatalf("state after position update: %v", s)
	}

	h, err := m.Hull(id)
	if err != nil {
		t.Fatalf("Hull: %v", err)
	}
	wantFirst := MakeVec2(1, 0)
	if !Vec2Equals(h.Vertices[0], wantFirst) {
		t.Fatalf("hull vertex 0: got %v want %v", h.Vertices[0], wantFirst)
	}
	c := h.Centroid()
	if !Vec2Equals(c, MakeVec2(3, 2)) {
		t.Fatalf("centroid after move: got %v", c)
	}
}

func TestManagerMergeBodies(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)

	a := mustCreate(t, m, []Particle{
		{ID: 1, Position: MakeVec2(0, 0), Mass: 1},
		{ID: 2, Position: MakeVec2(1, 0), Mass: 1},
	})
	b := mustCreate(t, m, []Particle{
		{ID: 3, Position: MakeVec2(0, 1), Mass: 1},
		{ID: 4, Position: MakeVec2(1, 1), Mass: 1},
	})

	if err := m.MergeBodies(a, a); !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("self merge: %v", err)
	}

	if err := m.MergeBodies(a, b); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if s := bodyState(t, m, a); s != BodyTopologyDirty {
		t.Fatalf("dst state: %v", s)
	}
	if _, err := m.GetBody(b); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("src survive: %v", err)
	}

	for _, pid := range []ParticleID{3, 4} {
		p, err := m.GetParticle(pid)
		if err != nil {
			t.Fatalf("GetParticle(%d): %v", pid, err)
		}
		if p.Body != a {
			t.Fatalf("particle %d body: got %d want %d", pid, p.Body, a)
		}
	}

	h, err := m.Hull(a)
	if err != nil {
		t.Fatalf("Hull: %v", err)
	}
	if h.Kind != HullPolygon || len(h.Vertices) != 4 {
		t.Fatalf("merged hull: %v/%d", h.Kind, len(h.Vertices))
	}
}

func TestManagerSplitBody(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, squareBodyParticles())

	if _, err := m.SplitBody(id, []ParticleID{99}); !errors.Is(err, ErrUnknownParticle) {
		t.Fatalf("split with foreign particle: %v", err)
	}

	newID, err := m.SplitBody(id, []ParticleID{4, 5})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if s := bodyState(t, m, id); s != BodyTopologyDirty {
		t.Fatalf("old body state: %v", s)
	}
	if s := bodyState(t, m, newID); s != BodyTopologyDirty {
		t.Fatalf("new body state: %v", s)
	}

	for _, pid := range []ParticleID{4, 5} {
		p, err := m.GetParticle(pid)
		if err != nil {
			t.Fatalf("GetParticle(%d): %v", pid, err)
		}
		if p.Body != newID {
			t.Fatalf("particle %d body: got %d want %d", pid, p.Body, newID)
		}
	}

	// The remainder (0,0),(4,0),(4,4) triangulates to a single triangle.
	links, err := m.Links(id)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("remainder links: got %d want 3", len(links))
	}

	// The split-off pair (0,4),(2,2) is a single spring.
	links, err = m.Links(newID)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("split-off links: got %d want 1", len(links))
	}
}

func TestManagerUpdatePositionsRejectsWholesale(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, squareBodyParticles())

	err := m.UpdatePositions(id, map[ParticleID]Vec2{
		1: MakeVec2(10, 10),
		2: MakeVec2(math.NaN(), 0),
	})
	if !errors.Is(err, ErrNonFiniteCoordinate) {
		t.Fatalf("NaN update: %v", err)
	}

	// No partial mutation.
	p, err := m.GetParticle(1)
	if err != nil {
		t.Fatalf("GetParticle: %v", err)
	}
	if !Vec2Equals(p.Position, MakeVec2(0, 0)) {
		t.Fatalf("particle 1 moved to %v despite rejected batch", p.Position)
	}

	err = m.UpdatePositions(id, map[ParticleID]Vec2{99: MakeVec2(1, 1)})
	if !errors.Is(err, ErrUnknownParticle) {
		t.Fatalf("foreign particle update: %v", err)
	}

	if err := m.UpdatePositions(99, nil); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("unknown body update: %v", err)
	}
}

func TestManagerQueryNeighbors(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	mustCreate(t, m, squareBodyParticles())
	mustCreate(t, m, []Particle{
		{ID: 11, Position: MakeVec2(10, 0), Mass: 2},
		{ID: 12, Position: MakeVec2(11, 0), Mass: 2},
		{ID: 13, Position: MakeVec2(12, 0), Mass: 2},
	})

	got, err := m.QueryNeighbors(MakeVec2(2, 2), 3.0)
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	want := []ParticleID{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v (must be sorted ascending)", got, want)
		}
	}

	got, err = m.QueryNeighbors(MakeVec2(11, 0), 1.5)
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	want = []ParticleID{11, 12, 13}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	if _, err := m.QueryNeighbors(MakeVec2(math.Inf(1), 0), 1); !errors.Is(err, ErrNonFiniteCoordinate) {
		t.Fatalf("non-finite query point: %v", err)
	}
}

func TestManagerAggregates(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, []Particle{
		{ID: 1, Position: MakeVec2(0, 0), Velocity: MakeVec2(1, 0), Mass: 1},
		{ID: 2, Position: MakeVec2(4, 0), Velocity: MakeVec2(-1, 0), Mass: 3},
	})

	mass, err := m.BodyMass(id)
	if err != nil || mass != 4 {
		t.Fatalf("mass: %v %v", mass, err)
	}

	com, err := m.BodyCenterOfMass(id)
	if err != nil {
		t.Fatalf("com: %v", err)
	}
	if !Vec2Equals(com, MakeVec2(3, 0)) {
		t.Fatalf("com: got %v want (3,0)", com)
	}

	v, err := m.BodyAverageVelocity(id)
	if err != nil {
		t.Fatalf("avg velocity: %v", err)
	}
	if !Vec2Equals(v, MakeVec2(-0.5, 0)) {
		t.Fatalf("avg velocity: got %v want (-0.5,0)", v)
	}

	ke, err := m.BodyKineticEnergy(id)
	if err != nil || math.Abs(ke-0.5) > 1e-12 {
		t.Fatalf("kinetic energy: %v %v", ke, err)
	}

	// Relative velocities: particle 1 at (1.5,0), particle 2 at (-0.5,0).
	te, err := m.BodyThermalEnergy(id)
	if err != nil || math.Abs(te-1.5) > 1e-12 {
		t.Fatalf("thermal energy: %v %v", te, err)
	}
}

func TestManagerAggregatesZeroMass(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, []Particle{
		{ID: 1, Position: MakeVec2(0, 0), Mass: 0},
	})

	if _, err := m.BodyCenterOfMass(id); !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("zero-mass com: %v", err)
	}
	if _, err := m.BodyAverageVelocity(id); !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("zero-mass velocity: %v", err)
	}
}

func TestManagerRefreshTopologyParallel(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)

	var ids []BodyID
	for b := 0; b < 8; b++ {
		var particles []Particle
		for i := 0; i < 6; i++ {
			particles = append(particles, Particle{
				ID:       ParticleID(b*100 + i),
				Position: MakeVec2(float64(b*10+i), float64((i*7)%5)),
				Mass:     1,
			})
		}
		ids = append(ids, mustCreate(t, m, particles))
	}

	m.RefreshTopology(true)
	for _, id := range ids {
		if s := bodyState(t, m, id); s != BodyTopologyClean {
			t.Fatalf("body %d state after refresh: %v", id, s)
		}
	}
}

func TestManagerStepCounter(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	if m.Step() != 0 {
		t.Fatalf("initial step: %d", m.Step())
	}
	if s := m.BeginStep(); s != 1 {
		t.Fatalf("first step: %d", s)
	}
	if s := m.BeginStep(); s != 2 {
		t.Fatalf("second step: %d", s)
	}
	if m.Step() != 2 {
		t.Fatalf("counter: %d", m.Step())
	}
}

func TestManagerDuplicateParticleRejected(t *testing.T) {
	m := NewManager(MakeDefaultConfig(), nil)
	id := mustCreate(t, m, []Particle{{ID: 1, Position: MakeVec2(0, 0), Mass: 1}})

	if _, err := m.CreateBody([]Particle{{ID: 1, Position: MakeVec2(5, 5), Mass: 1}}); !errors.Is(err, ErrDuplicateHandle) {
		t.Fatalf("duplicate across bodies: %v", err)
	}
	if err := m.AddParticle(id, Particle{ID: 1, Position: MakeVec2(5, 5), Mass: 1}); !errors.Is(err, ErrDuplicateHandle) {
		t.Fatalf("duplicate add: %v", err)
	}
}
