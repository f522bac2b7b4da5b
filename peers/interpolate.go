package peers

import (
	"github.com/go-gl/mathgl/mgl64"
)

const DefaultSmoothingRate = 10.0

// Interpolator eases rendered poses toward targets with exponential
// smoothing. With Rate*dt <= 1 it never overshoots the target.
type Interpolator struct {
	Rate float64
}

// Step advances every peer in r by dt seconds.
func (in Interpolator) Step(r *Registry, dt float64) {
	alpha := in.Rate * dt
	if alpha <= 0 {
		return
	}
	if alpha > 1 {
		alpha = 1
	}
	for _, ps := range r.peers {
		ps.Rendered = Smooth(ps.Rendered, ps.Target, alpha)
	}
}

// Smooth moves from toward to by alpha in [0,1].
func Smooth(from, to Pose, alpha float64) Pose {
	if alpha >= 1 {
		return to
	}
	return Pose{
		Position:    from.Position.Add(to.Position.Sub(from.Position).Mul(alpha)),
		Orientation: slerpShortest(from.Orientation, to.Orientation, alpha),
	}
}

func slerpShortest(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}
