package peers

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velum/protocol"
)

func at(x, y, z float64) Pose {
	return Pose{Position: mgl64.Vec3{x, y, z}, Orientation: mgl64.QuatIdent()}
}

func TestSeedSkipsSelf(t *testing.T) {
	r := NewRegistry()
	r.SetSelf("me")
	r.Seed(map[string]Pose{"me": at(0, 0, 0), "a": at(1, 0, 0), "b": at(2, 0, 0)})

	assert.Equal(t, []string{"a", "b"}, r.IDs())
	_, ok := r.Get("me")
	assert.False(t, ok)
}

func TestSetSelfRemovesExistingEntry(t *testing.T) {
	r := NewRegistry()
	r.Join("me", at(0, 0, 0))
	r.SetSelf("me")
	assert.Zero(t, r.Len())
	assert.Equal(t, "me", r.Self())
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Join("a", at(1, 0, 0)))
	assert.False(t, r.Join("a", at(1, 0, 0)))
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Join("", at(0, 0, 0)))
}

func TestMoveWithoutJoinCreatesPeer(t *testing.T) {
	r := NewRegistry()
	created := r.Move("ghost", at(4, 0, 2))
	require.True(t, created)

	ps, ok := r.Get("ghost")
	require.True(t, ok)
	assert.Equal(t, at(4, 0, 2), ps.Target)
	assert.Equal(t, at(4, 0, 2), ps.Rendered, "first sighting renders in place")
}

func TestMoveUpdatesTargetOnly(t *testing.T) {
	r := NewRegistry()
	r.Join("a", at(0, 0, 0))
	assert.False(t, r.Move("a", at(5, 0, 0)))

	ps, _ := r.Get("a")
	assert.Equal(t, at(5, 0, 0), ps.Target)
	assert.Equal(t, at(0, 0, 0), ps.Rendered)
}

func TestMoveForSelfIsIgnored(t *testing.T) {
	r := NewRegistry()
	r.SetSelf("me")
	assert.False(t, r.Move("me", at(1, 1, 1)))
	assert.Zero(t, r.Len())
}

func TestLeaveAndClear(t *testing.T) {
	r := NewRegistry()
	r.Join("a", at(0, 0, 0))
	r.Join("b", at(0, 0, 0))
	assert.True(t, r.Leave("a"))
	assert.False(t, r.Leave("a"))
	assert.Equal(t, []string{"b"}, r.IDs())

	r.Clear()
	assert.Zero(t, r.Len())
}

func TestWireRoundTripNormalizes(t *testing.T) {
	p := PoseFromWire(protocol.PlayerState{ID: "a", Position: [3]float64{1, 2, 3}, Rotation: [4]float64{0, 2, 0, 0}})
	assert.InDelta(t, 1, p.Orientation.Len(), 1e-12)
	assert.InDelta(t, 1, p.Orientation.V.Y(), 1e-12)

	w := p.Wire("a")
	assert.Equal(t, [3]float64{1, 2, 3}, w.Position)
	assert.InDelta(t, 1, w.Rotation[1], 1e-12)

	zero := PoseFromWire(protocol.PlayerState{ID: "z"})
	assert.Equal(t, mgl64.QuatIdent(), zero.Orientation)
}

func TestInterpolatorConvergesWithoutOvershoot(t *testing.T) {
	r := NewRegistry()
	r.Join("a", at(0, 0, 0))
	r.Move("a", at(10, 0, 0))

	in := Interpolator{Rate: 10}
	for i := 0; i < 5; i++ {
		in.Step(r, 0.1)
		ps, _ := r.Get("a")
		require.LessOrEqual(t, ps.Rendered.Position.X(), 10.0)
	}
	ps, _ := r.Get("a")
	assert.InDelta(t, 10, ps.Rendered.Position.X(), 0.1)
}

func TestInterpolatorPartialStepsApproachMonotonically(t *testing.T) {
	r := NewRegistry()
	r.Join("a", at(0, 0, 0))
	r.Move("a", at(10, 0, 0))

	in := Interpolator{Rate: 10}
	prev := 0.0
	for i := 0; i < 60; i++ {
		in.Step(r, 1.0/60)
		ps, _ := r.Get("a")
		x := ps.Rendered.Position.X()
		require.GreaterOrEqual(t, x, prev)
		require.LessOrEqual(t, x, 10.0)
		prev = x
	}
	assert.InDelta(t, 10, prev, 0.1)
}

func TestInterpolatorSlerpsOrientation(t *testing.T) {
	r := NewRegistry()
	r.Join("a", at(0, 0, 0))
	target := Pose{Orientation: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})}
	r.Move("a", target)

	in := Interpolator{Rate: 10}
	in.Step(r, 0.05)
	ps, _ := r.Get("a")
	half := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})
	assert.InDelta(t, 1, math.Abs(ps.Rendered.Orientation.Dot(half)), 1e-9)

	in.Step(r, 1)
	ps, _ = r.Get("a")
	assert.InDelta(t, 1, math.Abs(ps.Rendered.Orientation.Dot(target.Orientation)), 1e-9)
}

func TestSlerpTakesShortestPath(t *testing.T) {
	a := mgl64.QuatIdent()
	b := mgl64.QuatIdent().Scale(-1) // same rotation, opposite sign
	out := Smooth(Pose{Orientation: a}, Pose{Orientation: b}, 0.5)
	assert.InDelta(t, 1, math.Abs(out.Orientation.Dot(a)), 1e-9)
}

func TestInterpolatorIgnoresNonPositiveDelta(t *testing.T) {
	r := NewRegistry()
	r.Join("a", at(0, 0, 0))
	r.Move("a", at(10, 0, 0))
	Interpolator{Rate: 10}.Step(r, 0)
	ps, _ := r.Get("a")
	assert.Equal(t, 0.0, ps.Rendered.Position.X())
}
