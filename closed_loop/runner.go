package main

import (
	"context"
	"fmt"

	control "corridor-pilot/closed_loop/corridor_control"
	"corridor-pilot/utils"
)

// staleWarnCycles is how many consecutive missing readings of one sensor are
// tolerated before the runner warns about it.
const staleWarnCycles = 10

type RunnerConfig struct {
	Interface     string
	MapPath       string
	ConfigPath    string
	ScenarioPath  string // bench mode when set
	DryRun        bool   // log actuator commands instead of sending them
	TelemetryPort string
	TelemetryBaud int
	RecordPath    string
	DiagEvery     uint64
}

type Runner struct {
	cfg     RunnerConfig
	log     *utils.Logger
	clock   utils.Clock
	vehicle control.Config
	pilot   *control.Pilot

	scen      *Scenario
	script    *ScriptedSensorArray
	sensors   *CANSensorArray
	reader    utils.CANReader
	writer    utils.CANWriter
	telemetry *utils.SerialTelemetry
	recorder  *utils.CycleRecorder

	lastStale [control.NumSensors]int
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	return newRunner(ctx, cfg, log, utils.RealClock{})
}

func newRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger, clock utils.Clock) (r *Runner, err error) {
	r = &Runner{cfg: cfg, log: log, clock: clock}
	defer func() {
		if err != nil {
			r.Close()
			r = nil
		}
	}()

	r.vehicle = control.DefaultConfig()
	if cfg.ConfigPath != "" {
		if r.vehicle, err = control.LoadConfig(cfg.ConfigPath); err != nil {
			return r, fmt.Errorf("load vehicle config: %w", err)
		}
	}
	if r.cfg.DiagEvery == 0 {
		r.cfg.DiagEvery = 20
	}

	var cmap *utils.CANMap
	if cfg.ScenarioPath == "" || !cfg.DryRun {
		if cmap, err = utils.LoadCANMap(cfg.MapPath); err != nil {
			return r, fmt.Errorf("load can map: %w", err)
		}
	}

	var sensors control.SensorArray
	if cfg.ScenarioPath != "" {
		scen, err := LoadScenario(cfg.ScenarioPath)
		if err != nil {
			return r, fmt.Errorf("load scenario: %w", err)
		}
		r.scen = &scen
		r.script = NewScriptedSensorArray(r.scen, clock)
		sensors = r.script
	} else {
		if r.reader, err = utils.NewSocketCANReader(ctx, cfg.Interface); err != nil {
			return r, err
		}
		if r.sensors, err = NewCANSensorArray(cmap, r.reader, defaultSensorFrames, log.WithPrefix("rx")); err != nil {
			return r, err
		}
		r.sensors.Start(ctx)
		sensors = r.sensors
	}

	var drive control.DriveActuator
	var steer control.SteeringActuator
	if cfg.DryRun {
		act := logActuators{log: log.WithPrefix("dry-run")}
		drive, steer = act, act
	} else {
		if r.writer, err = utils.NewSocketCANWriter(ctx, cfg.Interface); err != nil {
			return r, err
		}
		act, err := NewCANActuators(cmap, r.writer, log.WithPrefix("tx"))
		if err != nil {
			return r, err
		}
		drive, steer = act, act
	}

	if cfg.TelemetryPort != "" {
		if r.telemetry, err = utils.OpenSerialTelemetry(cfg.TelemetryPort, cfg.TelemetryBaud); err != nil {
			return r, err
		}
	}
	if cfg.RecordPath != "" {
		if r.recorder, err = utils.OpenCycleRecorder(cfg.RecordPath, clock.Now(), r.runNotes()); err != nil {
			return r, err
		}
		log.Info("Recording cycles to %s run=%s", cfg.RecordPath, r.recorder.RunID())
	}

	r.pilot, err = control.NewPilot(r.vehicle, control.Deps{
		Sensors:  sensors,
		Drive:    drive,
		Steering: steer,
		Clock:    clock,
	})
	if err != nil {
		return r, fmt.Errorf("pilot: %w", err)
	}
	return r, nil
}

func (r *Runner) runNotes() string {
	if r.scen != nil {
		return "scenario " + r.scen.Meta.Name
	}
	return "iface " + r.cfg.Interface
}

func (r *Runner) Close() {
	if r.recorder != nil {
		if sum, err := r.recorder.Summary(); err != nil {
			r.log.Error("Run summary failed: %v", err)
		} else {
			r.log.Info("Run %s: cycles=%d ready=%d error=%.1f±%.1f mm angle=%.1f±%.1f deg states=%v",
				sum.RunID, sum.Cycles, sum.ReadyCycles, sum.ErrorMean, sum.ErrorStd, sum.AngleMean, sum.AngleStd, sum.StateCounts)
		}
		_ = r.recorder.Close()
	}
	if r.telemetry != nil {
		_ = r.telemetry.Close()
	}
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

// Run executes control cycles at the configured period until ctx is canceled
// or, in bench mode, the scenario ends. A cycle that overruns the period (a
// reverse maneuver) is followed immediately by the next one.
func (r *Runner) Run(ctx context.Context) error {
	period := r.vehicle.CyclePeriod()
	if r.scen != nil {
		r.log.Info("Starting bench run: scenario=%s duration=%.2fs cycle=%v dry_run=%v",
			r.scen.Meta.Name, r.scen.Timing.DurationS, period, r.cfg.DryRun)
	} else {
		r.log.Info("Starting: iface=%s cycle=%v dry_run=%v", r.cfg.Interface, period, r.cfg.DryRun)
	}

	for {
		if err := ctx.Err(); err != nil {
			r.log.Warn("Context canceled; stopping after %d cycles", r.pilot.Cycles())
			r.halt()
			return err
		}
		if r.script != nil && r.script.Elapsed() >= r.scen.Duration() {
			r.log.Info("Scenario complete after %d cycles, final state %s", r.pilot.Cycles(), r.pilot.State())
			r.halt()
			return nil
		}

		start := r.clock.Now()
		r.report(r.pilot.Cycle())
		if rest := period - r.clock.Since(start); rest > 0 {
			r.clock.Sleep(rest)
		}
	}
}

// halt stops the drive motor on the way out.
func (r *Runner) halt() {
	if err := r.pilot.Stop(); err != nil {
		r.log.Error("Stop command failed: %v", err)
	}
}

func (r *Runner) report(rep control.CycleReport) {
	if err := rep.Err(); err != nil {
		r.log.Error("cycle %d: actuator: %v", rep.Cycle, err)
	}
	if rep.BecameReady {
		r.log.Info("Width estimate ready after %d cycles: track=%.1f mm", rep.Cycle, rep.TrackMM)
	}
	if rep.SideSwitched && rep.Cycle > 1 {
		r.log.Info("Tracking %s wall", rep.Side)
	}
	if len(rep.Nav.Visited) > 1 {
		r.log.Info("State %s -> %s (path %v, turn %s)", rep.Nav.From, rep.Nav.State, rep.Nav.Visited, rep.Nav.Turn)
	}

	for _, id := range control.AllSensors {
		stale, prev := rep.Stale[id], r.lastStale[id]
		switch {
		case stale == staleWarnCycles:
			r.log.Warn("Sensor %s has not reported for %d cycles; holding last value", id, staleWarnCycles)
		case stale == 0 && prev >= staleWarnCycles:
			r.log.Info("Sensor %s recovered after %d missed cycles", id, prev)
		}
	}
	r.lastStale = rep.Stale

	s := rep.Steering
	r.log.Trace("cycle=%d state=%s side=%s track=%.1f wall=%.1f err=%.2f P=%.2f D=%.2f angle=%.2f",
		rep.Cycle, rep.Nav.State, rep.Side, rep.TrackMM, rep.WallDistanceMM, s.Error, s.Proportional, s.DerivTerm, s.TurningAngle)
	if rep.Cycle%r.cfg.DiagEvery == 0 {
		d := r.pilot.SteeringDiagnostics()
		r.log.Debug("Steering: err=%.2f deriv=%.3f kd=%.4f dt_skipped=%v filled=%d",
			d.LastError, d.Derivative, s.Kd, s.DtSkipped, r.pilot.Filter().Filled())
	}

	if r.telemetry != nil {
		line := utils.TelemetryLine{
			Error:        s.Error,
			Proportional: s.Proportional,
			Derivative:   s.DerivTerm,
			Distance:     rep.WallDistanceMM,
		}
		if err := r.telemetry.Send(line); err != nil {
			r.log.Warn("%v", err)
		}
	}
	if r.recorder != nil {
		if err := r.recorder.Record(cycleRecord(rep)); err != nil {
			r.log.Error("%v", err)
		}
	}
}

func cycleRecord(rep control.CycleReport) utils.CycleRecord {
	rec := utils.CycleRecord{
		Cycle:        rep.Cycle,
		At:           rep.At,
		State:        rep.Nav.State.String(),
		Side:         rep.Side.String(),
		TrackMM:      rep.TrackMM,
		ErrorMM:      rep.Steering.Error,
		Derivative:   rep.Steering.Derivative,
		TurningAngle: rep.Steering.TurningAngle,
		Ready:        rep.Ready,
	}
	for i, d := range rep.Readings {
		if d.Known {
			mm := d.MM
			rec.Ranges[i] = &mm
		}
	}
	if rep.WallKnown {
		wall := rep.WallDistanceMM
		rec.WallDistanceMM = &wall
	}
	return rec
}
