package control

import (
	"fmt"
	"math"
)

const (
	StrategyRight      = "right"
	StrategyLeft       = "left"
	StrategyRateSwitch = "rate_switch"
)

// Wall is the estimated pose of the vehicle relative to the tracked wall.
type Wall struct {
	Side       Side
	AngleRad   float64
	DistanceMM float64
}

// EstimateWall computes the wall angle and perpendicular distance from the
// forward (x1) and rear (x2) readings on one side, baselineMM apart. The
// angle is always inside (-pi/2, pi/2); baselineMM must be > 0.
func EstimateWall(x1, x2, baselineMM float64) (angle, distance float64) {
	angle = math.Atan((x1 - x2) / baselineMM)
	distance = (x1 + x2) / 2 * math.Cos(angle)
	return angle, distance
}

// CorridorWidth is the raw width sample for one cycle: the mean of the front
// and rear wall-to-wall sums projected by the wall angle, plus the vehicle.
func CorridorWidth(r Readings, angle, vehicleWidthMM float64) float64 {
	sum := r[FrontLeft].MM + r[FrontRight].MM + r[BackLeft].MM + r[BackRight].MM
	return sum/2*math.Cos(angle) + vehicleWidthMM
}

// SideSensors returns the forward and rear sensor of a side.
func SideSensors(s Side) (SensorID, SensorID) {
	if s == Left {
		return FrontLeft, BackLeft
	}
	return FrontRight, BackRight
}

// SideSelector decides which wall the geometry estimator tracks this cycle.
type SideSelector interface {
	Select(r Readings) Side
}

// NewSideSelector builds the strategy named in cfg.
func NewSideSelector(cfg TrackingConfig) (SideSelector, error) {
	switch cfg.Strategy {
	case "", StrategyRight:
		return FixedSide(Right), nil
	case StrategyLeft:
		return FixedSide(Left), nil
	case StrategyRateSwitch:
		if cfg.SwitchJumpMM <= 0 {
			return nil, fmt.Errorf("%w: rate_switch needs switch_jump_mm > 0", ErrUnknownStrategy)
		}
		return &RateSwitch{JumpMM: cfg.SwitchJumpMM, side: Left}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, cfg.Strategy)
	}
}

// FixedSide always tracks the same wall.
type FixedSide Side

func (f FixedSide) Select(Readings) Side { return Side(f) }

// RateSwitch starts on the left wall and moves to the other wall whenever the
// tracked front reading jumps by more than JumpMM between cycles, which is what
// an opening in the tracked wall looks like.
type RateSwitch struct {
	JumpMM float64

	side     Side
	lastSeen Distance
}

func (s *RateSwitch) Select(r Readings) Side {
	front, _ := SideSensors(s.side)
	cur := r[front]
	if cur.Known && s.lastSeen.Known && math.Abs(cur.MM-s.lastSeen.MM) > s.JumpMM {
		s.side = s.side.Opposite()
		front, _ = SideSensors(s.side)
		cur = r[front]
	}
	s.lastSeen = cur
	return s.side
}
