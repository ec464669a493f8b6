package softbody

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Conversions for callers whose own math runs on mathgl (renderers,
// integrators). The engine's internal math stays on Vec2.

func (v Vec2) Mgl() mgl64.Vec2 {
	return mgl64.Vec2{v.X, v.Y}
}

func Vec2FromMgl(v mgl64.Vec2) Vec2 {
	return MakeVec2(v.X(), v.Y())
}

func Vec2SliceToMgl(vs []Vec2) []mgl64.Vec2 {
	out := make([]mgl64.Vec2, len(vs))
	for i, v := range vs {
		out[i] = v.Mgl()
	}
	return out
}

func Vec2SliceFromMgl(vs []mgl64.Vec2) []Vec2 {
	out := make([]Vec2, len(vs))
	for i, v := range vs {
		out[i] = Vec2FromMgl(v)
	}
	return out
}
