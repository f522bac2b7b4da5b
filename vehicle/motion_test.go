package vehicle

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 1.0 / 60

func TestForwardThrustMovesAlongHeading(t *testing.T) {
	m := Step(DefaultStats, Motion{}, mgl64.QuatIdent(), Controls{Forward: true}, tick)
	require.Less(t, m.Velocity.Z(), 0.0, "identity heading is -Z")
	assert.InDelta(t, 0, m.Velocity.X(), 1e-12)
	assert.InDelta(t, DefaultStats.Acceleration*tick*DefaultStats.Drag, m.Speed(), 1e-12)
}

func TestReverseThrustIsHalfStrength(t *testing.T) {
	fwd := Step(DefaultStats, Motion{}, mgl64.QuatIdent(), Controls{Forward: true}, tick)
	back := Step(DefaultStats, Motion{}, mgl64.QuatIdent(), Controls{Backward: true}, tick)
	assert.InDelta(t, fwd.Speed()/2, back.Speed(), 1e-12)
	assert.Greater(t, back.Velocity.Z(), 0.0)
}

func TestTurnInputChangesAngularVelocity(t *testing.T) {
	left := Step(DefaultStats, Motion{}, mgl64.QuatIdent(), Controls{Left: true}, tick)
	right := Step(DefaultStats, Motion{}, mgl64.QuatIdent(), Controls{Right: true}, tick)
	assert.InDelta(t, DefaultStats.RotationSpeed*tick*DefaultStats.AngularDrag, left.AngularVelocity, 1e-12)
	assert.InDelta(t, -left.AngularVelocity, right.AngularVelocity, 1e-12)
}

func TestDragDecaysToRest(t *testing.T) {
	m := Motion{Velocity: mgl64.Vec3{0, 0, -2}, AngularVelocity: 1}
	for i := 0; i < 1000; i++ {
		m = Step(DefaultStats, m, mgl64.QuatIdent(), Controls{}, tick)
	}
	assert.Equal(t, mgl64.Vec3{}, m.Velocity)
	assert.Equal(t, 0.0, m.AngularVelocity)

	again := Step(DefaultStats, m, mgl64.QuatIdent(), Controls{}, tick)
	assert.Equal(t, m, again, "rest is a fixed point")
}

func TestVerticalVelocityIsDropped(t *testing.T) {
	m := Step(DefaultStats, Motion{Velocity: mgl64.Vec3{0, 5, -1}}, mgl64.QuatIdent(), Controls{}, tick)
	assert.Equal(t, 0.0, m.Velocity.Y())
}

func TestNegativeDeltaAppliesNoThrust(t *testing.T) {
	m := Step(DefaultStats, Motion{}, mgl64.QuatIdent(), Controls{Forward: true, Left: true}, -1)
	assert.Equal(t, Motion{}, m)
}

func TestSpeedCapsHoldForRandomInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	body := NewKinematicBody(mgl64.Vec3{}, mgl64.QuatIdent(), 1)

	for i := 0; i < 20000; i++ {
		c := Controls{
			Forward:  rng.IntN(3) == 0,
			Backward: rng.IntN(3) == 0,
			Left:     rng.IntN(4) == 0,
			Right:    rng.IntN(4) == 0,
		}
		dt := tick * (0.5 + rng.Float64()*3)
		m := Drive(body, DefaultStats, c, dt)

		require.LessOrEqual(t, m.Speed(), DefaultStats.MaxSpeed+1e-9, "step %d", i)
		if m.Velocity.Dot(Forward(body.Orientation())) < 0 {
			require.LessOrEqual(t, m.Speed(), DefaultStats.BackwardMaxSpeed+1e-9, "step %d", i)
		}
		require.Equal(t, 0.0, m.Velocity.Y())

		body.Integrate(dt)
		require.InDelta(t, 1, body.Orientation().Len(), 1e-9)
	}
}

func TestSustainedReverseSettlesAtBackwardCap(t *testing.T) {
	m := Motion{}
	for i := 0; i < 600; i++ {
		m = Step(DefaultStats, m, mgl64.QuatIdent(), Controls{Backward: true}, tick)
	}
	assert.LessOrEqual(t, m.Speed(), DefaultStats.BackwardMaxSpeed+1e-9)
	assert.Greater(t, m.Speed(), 0.0)
}

func TestStatsValidate(t *testing.T) {
	require.NoError(t, DefaultStats.Validate())

	bad := DefaultStats
	bad.Drag = 1
	assert.Error(t, bad.Validate())

	bad = DefaultStats
	bad.BackwardMaxSpeed = bad.MaxSpeed * 2
	assert.Error(t, bad.Validate())

	bad = DefaultStats
	bad.Acceleration = 0
	assert.Error(t, bad.Validate())
}

func TestKinematicBodyYawsAndReportsContactOnce(t *testing.T) {
	body := NewKinematicBody(mgl64.Vec3{}, mgl64.QuatIdent(), 1)
	body.Obstacles = []Obstacle{{Center: mgl64.Vec3{0, 0, -3}, Radius: 1, Tag: ObstacleTag}}

	body.SetVelocity(mgl64.Vec3{0, 0, -1})
	var hits []string
	for i := 0; i < 30; i++ {
		hits = append(hits, body.Integrate(0.1)...)
	}
	assert.Equal(t, []string{ObstacleTag}, hits)

	body.SetVelocity(mgl64.Vec3{})
	body.SetAngularVelocity(math.Pi / 2)
	body.Integrate(1)
	f := Forward(body.Orientation())
	assert.InDelta(t, -1, f.X(), 1e-9, "positive yaw turns -Z toward -X")
}
