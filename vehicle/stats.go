package vehicle

import "fmt"

// Stats tunes the motion model of one hull class.
type Stats struct {
	Acceleration     float64 `mapstructure:"acceleration"`
	MaxSpeed         float64 `mapstructure:"maxSpeed"`
	BackwardMaxSpeed float64 `mapstructure:"backwardMaxSpeed"`
	RotationSpeed    float64 `mapstructure:"rotationSpeed"`
	Drag             float64 `mapstructure:"drag"`
	AngularDrag      float64 `mapstructure:"angularDrag"`
}

// DefaultStats is the starter boat.
var DefaultStats = Stats{
	Acceleration:     5.0,
	MaxSpeed:         3.0,
	BackwardMaxSpeed: 1.5,
	RotationSpeed:    1.5,
	Drag:             0.97,
	AngularDrag:      0.95,
}

func (s Stats) Validate() error {
	if s.Acceleration <= 0 {
		return fmt.Errorf("acceleration must be > 0, got %v", s.Acceleration)
	}
	if s.MaxSpeed <= 0 || s.BackwardMaxSpeed <= 0 {
		return fmt.Errorf("speed caps must be > 0, got max=%v backward=%v", s.MaxSpeed, s.BackwardMaxSpeed)
	}
	if s.BackwardMaxSpeed > s.MaxSpeed {
		return fmt.Errorf("backwardMaxSpeed %v exceeds maxSpeed %v", s.BackwardMaxSpeed, s.MaxSpeed)
	}
	if s.Drag <= 0 || s.Drag >= 1 || s.AngularDrag <= 0 || s.AngularDrag >= 1 {
		return fmt.Errorf("drag factors must be in (0,1), got drag=%v angularDrag=%v", s.Drag, s.AngularDrag)
	}
	return nil
}
