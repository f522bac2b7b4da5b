package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RestEpsilon is the speed (units/s and rad/s) below which residual motion
// snaps to zero so an idle boat comes to a full stop.
const RestEpsilon = 1e-3

var (
	forwardAxis = mgl64.Vec3{0, 0, -1}
	upAxis      = mgl64.Vec3{0, 1, 0}
)

// Controls is the set of directional inputs held during a tick.
type Controls struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
}

// Motion is the velocity pair the model reads from and writes back to the
// physics integrator. Only yaw rotation is modelled.
type Motion struct {
	Velocity        mgl64.Vec3
	AngularVelocity float64
}

// Speed is the magnitude of the linear velocity.
func (m Motion) Speed() float64 { return m.Velocity.Len() }

// Forward returns the unit heading for an orientation.
func Forward(q mgl64.Quat) mgl64.Vec3 {
	f := q.Rotate(forwardAxis)
	if f.Len() == 0 {
		return forwardAxis
	}
	return f.Normalize()
}

// Step advances the motion model by dt seconds.
//
// Thrust and turn are dt scaled; drag is applied once per call. The result
// never exceeds MaxSpeed, never exceeds BackwardMaxSpeed while moving against
// the heading, and has no vertical component.
func Step(s Stats, m Motion, orientation mgl64.Quat, c Controls, dt float64) Motion {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	fwd := Forward(orientation)
	v := m.Velocity
	w := m.AngularVelocity

	if c.Forward {
		v = v.Add(fwd.Mul(s.Acceleration * dt))
	}
	if c.Backward {
		v = v.Add(fwd.Mul(-0.5 * s.Acceleration * dt))
	}
	if c.Left {
		w += s.RotationSpeed * dt
	}
	if c.Right {
		w -= s.RotationSpeed * dt
	}

	v = v.Mul(s.Drag)
	w *= s.AngularDrag

	v[1] = 0
	speed := v.Len()
	if speed > s.MaxSpeed {
		v = v.Mul(s.MaxSpeed / speed)
		speed = s.MaxSpeed
	}
	if v.Dot(fwd) < 0 && speed > s.BackwardMaxSpeed {
		v = v.Mul(s.BackwardMaxSpeed / speed)
		speed = s.BackwardMaxSpeed
	}

	if speed < RestEpsilon {
		v = mgl64.Vec3{}
	}
	if math.Abs(w) < RestEpsilon {
		w = 0
	}
	return Motion{Velocity: v, AngularVelocity: w}
}
