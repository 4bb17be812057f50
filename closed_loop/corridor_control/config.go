package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrZeroBaseline      = errors.New("baseline_mm must be > 0")
	ErrInvalidBuffer     = errors.New("buffer_capacity must be > 0")
	ErrInvalidTolerance  = errors.New("cluster_tolerance_mm must be > 0")
	ErrInvalidAngles     = errors.New("steering angles must satisfy min < straight < max")
	ErrNegativeDuration  = errors.New("durations must be >= 0")
	ErrUnknownStrategy   = errors.New("unknown tracking strategy")
	ErrInvalidCruise     = errors.New("cruise_speed must be > 0")
	ErrInvalidThresholds = errors.New("thresholds must be >= 0")
)

// GainSchedule is the quadratic Kd(speed) = A*speed^2 + B*speed + C.
type GainSchedule struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

func (g GainSchedule) Kd(speed float64) float64 {
	return g.A*speed*speed + g.B*speed + g.C
}

// TrackingConfig picks the wall the geometry estimator follows.
type TrackingConfig struct {
	Strategy     string  `json:"strategy"` // "right", "left" or "rate_switch"
	SwitchJumpMM float64 `json:"switch_jump_mm"`
}

// Config is the full tuning surface of the guidance core. Distances are in
// millimetres, durations in milliseconds, angles in steering actuator units.
type Config struct {
	OffsetsMM      [NumSensors]float64 `json:"offsets_mm"`
	BaselineMM     float64             `json:"baseline_mm"`
	VehicleWidthMM float64             `json:"vehicle_width_mm"`

	OpeningThresholdMM  float64 `json:"opening_threshold_mm"`
	MinFrontClearanceMM float64 `json:"min_front_clearance_mm"`
	ReverseMS           int     `json:"reverse_ms"`
	RecoverMS           int     `json:"recover_ms"`
	DefaultTurn         Side    `json:"default_turn"`

	BufferCapacity     int     `json:"buffer_capacity"`
	ClusterToleranceMM float64 `json:"cluster_tolerance_mm"`

	Kp         float64      `json:"kp"`
	KdSchedule GainSchedule `json:"kd_schedule"`

	StraightAngle float64 `json:"straight_angle"`
	MinAngle      float64 `json:"min_angle"`
	MaxAngle      float64 `json:"max_angle"`
	CruiseSpeed   float64 `json:"cruise_speed"`

	Tracking TrackingConfig `json:"tracking"`

	SensorWaitMS int `json:"sensor_wait_ms"`
	CycleMS      int `json:"cycle_ms"`
}

// DefaultConfig returns the tuning the vehicle shipped with.
func DefaultConfig() Config {
	return Config{
		OffsetsMM:           [NumSensors]float64{10, 25, 0, -8, 0},
		BaselineMM:          135,
		VehicleWidthMM:      120,
		OpeningThresholdMM:  300,
		MinFrontClearanceMM: 350,
		ReverseMS:           1400,
		RecoverMS:           2300,
		DefaultTurn:         Right,
		BufferCapacity:      30,
		ClusterToleranceMM:  20,
		Kp:                  0.2,
		StraightAngle:       90,
		MinAngle:            0,
		MaxAngle:            180,
		CruiseSpeed:         100,
		Tracking:            TrackingConfig{Strategy: StrategyRight, SwitchJumpMM: 150},
		SensorWaitMS:        50,
		CycleMS:             500,
	}
}

// LoadConfig reads a JSON config on top of DefaultConfig, so partial files
// only override what they name, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run with. A zero
// baseline would make the wall angle undefined, so it is caught here and
// never at run time.
func (c Config) Validate() error {
	if c.BaselineMM <= 0 {
		return fmt.Errorf("%w (got %g)", ErrZeroBaseline, c.BaselineMM)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidBuffer, c.BufferCapacity)
	}
	if c.ClusterToleranceMM <= 0 {
		return fmt.Errorf("%w (got %g)", ErrInvalidTolerance, c.ClusterToleranceMM)
	}
	if !(c.MinAngle < c.StraightAngle && c.StraightAngle < c.MaxAngle) {
		return fmt.Errorf("%w (min=%g straight=%g max=%g)", ErrInvalidAngles, c.MinAngle, c.StraightAngle, c.MaxAngle)
	}
	if c.ReverseMS < 0 || c.RecoverMS < 0 || c.SensorWaitMS < 0 || c.CycleMS < 0 {
		return ErrNegativeDuration
	}
	if c.CruiseSpeed <= 0 {
		return fmt.Errorf("%w (got %g)", ErrInvalidCruise, c.CruiseSpeed)
	}
	if c.OpeningThresholdMM < 0 || c.MinFrontClearanceMM < 0 || c.VehicleWidthMM < 0 {
		return ErrInvalidThresholds
	}
	if _, err := NewSideSelector(c.Tracking); err != nil {
		return err
	}
	return nil
}

func (c Config) sensorWait() time.Duration { return time.Duration(c.SensorWaitMS) * time.Millisecond }

// CyclePeriod is the nominal spacing between control cycles.
func (c Config) CyclePeriod() time.Duration { return time.Duration(c.CycleMS) * time.Millisecond }

func (c Config) steering() SteeringConfig {
	return SteeringConfig{
		Kp:             c.Kp,
		KdSchedule:     c.KdSchedule,
		StraightAngle:  c.StraightAngle,
		VehicleWidthMM: c.VehicleWidthMM,
	}
}

func (c Config) navigation() NavConfig {
	return NavConfig{
		OpeningThresholdMM:  c.OpeningThresholdMM,
		MinFrontClearanceMM: c.MinFrontClearanceMM,
		ReverseDuration:     time.Duration(c.ReverseMS) * time.Millisecond,
		RecoverDuration:     time.Duration(c.RecoverMS) * time.Millisecond,
		DefaultTurn:         c.DefaultTurn,
		CruiseSpeed:         c.CruiseSpeed,
		MinAngle:            c.MinAngle,
		MaxAngle:            c.MaxAngle,
	}
}
