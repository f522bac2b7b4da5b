package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Body is the physics integrator seen by the motion model. The integrator
// owns position and orientation; the model only writes velocities.
type Body interface {
	Velocity() mgl64.Vec3
	SetVelocity(mgl64.Vec3)
	AngularVelocity() float64
	SetAngularVelocity(float64)
	Position() mgl64.Vec3
	Orientation() mgl64.Quat
}

// Drive reads velocities from b, steps the model and writes them back.
func Drive(b Body, s Stats, c Controls, dt float64) Motion {
	m := Step(s, Motion{Velocity: b.Velocity(), AngularVelocity: b.AngularVelocity()}, b.Orientation(), c, dt)
	b.SetVelocity(m.Velocity)
	b.SetAngularVelocity(m.AngularVelocity)
	return m
}

// Obstacle is a static sphere collider.
type Obstacle struct {
	Center mgl64.Vec3
	Radius float64
	Tag    string
}

// KinematicBody is a minimal surface-bound integrator: it moves by velocity,
// yaws by angular velocity and reports sphere contacts on entry. It stands in
// for a full rigid-body engine in headless clients and tests.
type KinematicBody struct {
	Radius    float64
	Obstacles []Obstacle

	pos     mgl64.Vec3
	orient  mgl64.Quat
	vel     mgl64.Vec3
	angVel  float64
	touched map[int]bool
}

func NewKinematicBody(pos mgl64.Vec3, orient mgl64.Quat, radius float64) *KinematicBody {
	return &KinematicBody{
		Radius:  radius,
		pos:     pos,
		orient:  orient.Normalize(),
		touched: make(map[int]bool),
	}
}

func (k *KinematicBody) Velocity() mgl64.Vec3 { return k.vel }

func (k *KinematicBody) SetVelocity(v mgl64.Vec3) { k.vel = v }

func (k *KinematicBody) AngularVelocity() float64 { return k.angVel }

func (k *KinematicBody) SetAngularVelocity(w float64) { k.angVel = w }

func (k *KinematicBody) Position() mgl64.Vec3 { return k.pos }

func (k *KinematicBody) Orientation() mgl64.Quat { return k.orient }

// Integrate advances the pose by dt and returns the tags of obstacles that
// were entered during this step.
func (k *KinematicBody) Integrate(dt float64) []string {
	if dt <= 0 {
		return nil
	}
	k.pos = k.pos.Add(k.vel.Mul(dt))
	if k.angVel != 0 {
		k.orient = mgl64.QuatRotate(k.angVel*dt, upAxis).Mul(k.orient).Normalize()
	}

	var entered []string
	for i, o := range k.Obstacles {
		inside := k.pos.Sub(o.Center).Len() <= o.Radius+k.Radius
		if inside && !k.touched[i] {
			entered = append(entered, o.Tag)
		}
		k.touched[i] = inside
	}
	return entered
}
