package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	control "corridor-pilot/closed_loop/corridor_control"
	"corridor-pilot/utils"
)

// Scenario is a scripted bench run: raw sensor values over time, fed to the
// pilot in place of the CAN sensor frames.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Defaults SensorFrame       `json:"defaults"`
	Segments []ScenarioSegment `json:"segments"`
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
}

// SensorFrame holds raw readings in mm. Nil fields keep the value from the
// defaults. Sensors listed in Invalid report no measurement.
type SensorFrame struct {
	Front      *float64 `json:"front,omitempty"`
	FrontLeft  *float64 `json:"f_left,omitempty"`
	FrontRight *float64 `json:"f_right,omitempty"`
	BackLeft   *float64 `json:"b_left,omitempty"`
	BackRight  *float64 `json:"b_right,omitempty"`
	Invalid    []string `json:"invalid,omitempty"`
}

func (f SensorFrame) values() [control.NumSensors]*float64 {
	return [control.NumSensors]*float64{f.Front, f.FrontLeft, f.FrontRight, f.BackLeft, f.BackRight}
}

// ScenarioSegment applies its overrides for T0 <= t < T1. T1 < 0 runs to the
// end of the scenario.
type ScenarioSegment struct {
	T0      float64 `json:"t0"`
	T1      float64 `json:"t1"`
	Comment string  `json:"comment,omitempty"`
	SensorFrame
}

// RawReading is what a scripted sensor reports at one instant.
type RawReading struct {
	MM    float64
	Valid bool
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := scen.Validate(); err != nil {
		return Scenario{}, err
	}
	return scen, nil
}

func (s *Scenario) Validate() error {
	if s.Timing.DurationS <= 0 {
		return fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS)
	}
	if err := validateNames(s.Defaults.Invalid); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for i, seg := range s.Segments {
		if seg.T0 < 0 || (seg.T1 >= 0 && seg.T1 < seg.T0) {
			return fmt.Errorf("segment %d: invalid window [%.2f, %.2f)", i, seg.T0, seg.T1)
		}
		if err := validateNames(seg.Invalid); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

func (s *Scenario) Duration() time.Duration {
	return time.Duration(s.Timing.DurationS * float64(time.Second))
}

func validateNames(names []string) error {
	for _, n := range names {
		if _, err := control.ParseSensorID(n); err != nil {
			return err
		}
	}
	return nil
}

// EvalReadings evaluates the scenario at t seconds. The first segment covering
// t wins. Sensors with no value anywhere read as invalid.
func EvalReadings(scen *Scenario, t float64) [control.NumSensors]RawReading {
	var out [control.NumSensors]RawReading
	for i, v := range scen.Defaults.values() {
		if v != nil {
			out[i] = RawReading{MM: *v, Valid: true}
		}
	}
	invalid := scen.Defaults.Invalid

	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			// Override with segment values (only if explicitly set in JSON)
			for i, v := range seg.values() {
				if v != nil {
					out[i] = RawReading{MM: *v, Valid: true}
				}
			}
			if seg.Invalid != nil {
				invalid = seg.Invalid
			}
			break
		}
	}

	for _, n := range invalid {
		if id, err := control.ParseSensorID(n); err == nil {
			out[id].Valid = false
		}
	}
	return out
}

// ScriptedSensorArray serves scenario readings against a clock.
type ScriptedSensorArray struct {
	scen  *Scenario
	clock utils.Clock
	start time.Time
}

func NewScriptedSensorArray(scen *Scenario, clock utils.Clock) *ScriptedSensorArray {
	return &ScriptedSensorArray{scen: scen, clock: clock, start: clock.Now()}
}

func (a *ScriptedSensorArray) Read(id control.SensorID) (float64, bool) {
	r := EvalReadings(a.scen, a.clock.Since(a.start).Seconds())[id]
	return r.MM, r.Valid
}

// Elapsed is the scenario time since the array was created.
func (a *ScriptedSensorArray) Elapsed() time.Duration {
	return a.clock.Since(a.start)
}
