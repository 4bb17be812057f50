package control

import (
	"errors"
	"time"
)

// Deps are the collaborators a Pilot drives.
type Deps struct {
	Sensors  SensorArray
	Drive    DriveActuator
	Steering SteeringActuator
	Clock    Clock
}

func (d Deps) validate() error {
	switch {
	case d.Sensors == nil:
		return errors.New("pilot: sensor array is required")
	case d.Drive == nil:
		return errors.New("pilot: drive actuator is required")
	case d.Steering == nil:
		return errors.New("pilot: steering actuator is required")
	case d.Clock == nil:
		return errors.New("pilot: clock is required")
	}
	return nil
}

// CycleReport is everything one control cycle computed and commanded.
type CycleReport struct {
	Cycle    uint64
	At       time.Time
	Raw      [NumSensors]RangeReading
	Readings Readings
	Stale    [NumSensors]int // consecutive cycles without a new sample

	Side           Side
	SideSwitched   bool
	WallKnown      bool
	WallAngleRad   float64
	WallDistanceMM float64
	WidthSample    float64
	WidthPushed    bool
	TrackMM        float64
	Ready          bool
	BecameReady    bool

	Steering SteeringOutput
	Nav      NavResult
}

// Err returns the actuator errors of the cycle, if any.
func (r CycleReport) Err() error { return r.Nav.Err }

// Pilot is the single context object holding all control-loop state. It is
// created once and used from one goroutine.
type Pilot struct {
	cfg   Config
	deps  Deps
	cycle uint64

	normalizer *Normalizer
	side       SideSelector
	lastSide   Side
	filter     *WidthFilter
	ready      ReadinessLatch
	steering   *SteeringController
	nav        *Navigator

	wall      Wall
	wallKnown bool
}

// NewPilot validates cfg and wires the pipeline.
func NewPilot(cfg Config, deps Deps) (*Pilot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	side, err := NewSideSelector(cfg.Tracking)
	if err != nil {
		return nil, err
	}
	return &Pilot{
		cfg:        cfg,
		deps:       deps,
		normalizer: NewNormalizer(cfg.OffsetsMM),
		side:       side,
		lastSide:   side.Select(Readings{}),
		filter:     NewWidthFilter(cfg.BufferCapacity, cfg.ClusterToleranceMM),
		steering:   NewSteeringController(cfg.steering()),
		nav:        NewNavigator(cfg.navigation(), deps.Clock, deps.Drive, deps.Steering),
	}, nil
}

func (p *Pilot) State() NavState { return p.nav.State() }
func (p *Pilot) Ready() bool { return p.ready.Ready() }

// Cycles returns how many cycles have run.
func (p *Pilot) Cycles() uint64 { return p.cycle }

func (p *Pilot) SteeringDiagnostics() SteeringDiagnostics { return p.steering.GetDiagnostics() }

// Stop commands the drive to stop without touching the navigation state.
func (p *Pilot) Stop() error {
	return p.deps.Drive.Drive(DriveStop, 0)
}

// Filter exposes the width filter for diagnostics.
func (p *Pilot) Filter() *WidthFilter { return p.filter }

// Cycle runs one full poll, estimate, steer, navigate pass.
func (p *Pilot) Cycle() CycleReport {
	p.cycle++
	rep := CycleReport{Cycle: p.cycle}

	rep.Raw = p.poll()
	r := p.normalizer.Update(rep.Raw)
	rep.Readings = r
	for _, id := range AllSensors {
		rep.Stale[id] = p.normalizer.StaleCycles(id)
	}
	rep.At = p.deps.Clock.Now()

	side := p.side.Select(r)
	if side != p.lastSide {
		rep.SideSwitched = true
		p.steering.Reset()
		p.wallKnown = false
		p.lastSide = side
	}
	rep.Side = side

	x1, x2 := SideSensors(side)
	if r[x1].Known && r[x2].Known {
		angle, dist := EstimateWall(r[x1].MM, r[x2].MM, p.cfg.BaselineMM)
		p.wall = Wall{Side: side, AngleRad: angle, DistanceMM: dist}
		p.wallKnown = true
	}
	rep.WallKnown = p.wallKnown
	rep.WallAngleRad = p.wall.AngleRad
	rep.WallDistanceMM = p.wall.DistanceMM

	if p.wallKnown && r.SideKnown() {
		rep.WidthSample = CorridorWidth(r, p.wall.AngleRad, p.cfg.VehicleWidthMM)
		p.filter.Push(rep.WidthSample)
		rep.WidthPushed = true
	}

	rep.TrackMM = p.filter.Estimate()
	wasReady := p.ready.Ready()
	rep.Ready = p.ready.Observe(rep.TrackMM)
	rep.BecameReady = rep.Ready && !wasReady

	if p.wallKnown {
		rep.Steering = p.steering.Update(SteeringInput{
			TrackMM:        rep.TrackMM,
			WallDistanceMM: p.wall.DistanceMM,
			Side:           side,
			Speed:          p.cfg.CruiseSpeed,
			Now:            rep.At,
		})
	} else {
		rep.Steering = SteeringOutput{TurningAngle: p.steering.TurningAngle()}
	}

	rep.Nav = p.nav.Step(NavInput{
		Ready:        rep.Ready,
		Front:        r[Front],
		FrontLeft:    r[FrontLeft],
		FrontRight:   r[FrontRight],
		TurningAngle: rep.Steering.TurningAngle,
	})
	return rep
}

// poll reads every sensor once, waiting the configured time after each read
// for the next device to have data ready.
func (p *Pilot) poll() [NumSensors]RangeReading {
	var out [NumSensors]RangeReading
	wait := p.cfg.sensorWait()
	for _, id := range AllSensors {
		d, ok := p.deps.Sensors.Read(id)
		out[id] = p.normalizer.Reading(id, d, ok)
		if wait > 0 {
			p.deps.Clock.Sleep(wait)
		}
	}
	return out
}
