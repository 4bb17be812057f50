package control

import (
	"math"
	"time"
)

// SteeringConfig holds the PD gains and geometry the steering controller needs.
type SteeringConfig struct {
	Kp             float64
	KdSchedule     GainSchedule
	StraightAngle  float64
	VehicleWidthMM float64
}

// SteeringInput is one cycle's view of the corridor.
type SteeringInput struct {
	TrackMM        float64 // filtered corridor width
	WallDistanceMM float64
	Side           Side // tracked wall
	Speed          float64
	Now            time.Time
}

// SteeringOutput carries the command and the terms that produced it.
type SteeringOutput struct {
	Error        float64
	Derivative   float64
	Kd           float64
	Proportional float64 // Kp*error
	DerivTerm    float64 // Kd*derivative
	TurningAngle float64
	DtSkipped    bool // dt <= 0, derivative reused
}

// SteeringController is a PD controller on the corridor-centering error.
// The derivative gain is scheduled on the commanded speed every update.
type SteeringController struct {
	cfg SteeringConfig

	lastError   float64
	lastTime    time.Time
	derivative  float64
	turning     float64
	initialized bool
}

func NewSteeringController(cfg SteeringConfig) *SteeringController {
	return &SteeringController{cfg: cfg, turning: cfg.StraightAngle}
}

// Reset drops the derivative history. The next Update behaves like the first.
func (sc *SteeringController) Reset() {
	sc.lastError = 0
	sc.lastTime = time.Time{}
	sc.derivative = 0
	sc.initialized = false
}

// CenteringError is how far the vehicle sits from the corridor midline,
// measured from the tracked wall. Zero means centred.
func (sc *SteeringController) CenteringError(trackMM, wallDistanceMM float64) float64 {
	return trackMM/2 - wallDistanceMM - sc.cfg.VehicleWidthMM/2
}

// Update computes the turning angle. It does not clamp; the caller limits the
// result to the actuator range.
func (sc *SteeringController) Update(in SteeringInput) SteeringOutput {
	e := sc.CenteringError(in.TrackMM, in.WallDistanceMM)
	kd := sc.cfg.KdSchedule.Kd(in.Speed)
	out := SteeringOutput{Error: e, Kd: kd}
	if !finite(e) {
		out.Derivative = sc.derivative
		out.TurningAngle = sc.turning
		return out
	}

	switch {
	case !sc.initialized:
		sc.lastError = e
		sc.lastTime = in.Now
		sc.derivative = 0
		sc.initialized = true
	default:
		dt := in.Now.Sub(sc.lastTime).Seconds()
		if dt > 0 {
			sc.derivative = (e - sc.lastError) / dt
			sc.lastError = e
			sc.lastTime = in.Now
		} else {
			out.DtSkipped = true
		}
	}

	out.Derivative = sc.derivative
	out.Proportional = sc.cfg.Kp * e
	out.DerivTerm = kd * sc.derivative

	sign := 1.0
	if in.Side == Left {
		sign = -1
	}
	angle := sc.cfg.StraightAngle - sign*(out.Proportional+out.DerivTerm)
	if !finite(angle) {
		angle = sc.turning
	}
	sc.turning = angle
	out.TurningAngle = angle
	return out
}

// TurningAngle is the last computed command, straight before the first update.
func (sc *SteeringController) TurningAngle() float64 { return sc.turning }

// GetDiagnostics returns current controller state for logging.
func (sc *SteeringController) GetDiagnostics() SteeringDiagnostics {
	return SteeringDiagnostics{
		LastError:   sc.lastError,
		Derivative:  sc.derivative,
		LastUpdate:  sc.lastTime,
		Initialized: sc.initialized,
	}
}

type SteeringDiagnostics struct {
	LastError   float64
	Derivative  float64
	LastUpdate  time.Time
	Initialized bool
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
