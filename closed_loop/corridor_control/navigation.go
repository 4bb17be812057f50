package control

import (
	"errors"
	"fmt"
	"time"
)

// NavConfig holds the thresholds and timings of the navigation state machine.
type NavConfig struct {
	OpeningThresholdMM  float64
	MinFrontClearanceMM float64
	ReverseDuration     time.Duration
	RecoverDuration     time.Duration
	DefaultTurn         Side
	CruiseSpeed         float64
	MinAngle            float64 // full left lock
	MaxAngle            float64 // full right lock
}

// NavInput is what the state machine sees each cycle.
type NavInput struct {
	Ready        bool
	Front        Distance
	FrontLeft    Distance
	FrontRight   Distance
	TurningAngle float64 // unclamped steering controller output
}

// CommandKind tells a drive command from a steering command.
type CommandKind int

const (
	DriveCommand CommandKind = iota
	SteerCommand
)

// Command is one actuator write, kept in issue order for reporting.
type Command struct {
	Kind  CommandKind
	Dir   Direction
	Speed float64
	Angle float64
}

func (c Command) String() string {
	if c.Kind == SteerCommand {
		return fmt.Sprintf("steer(%.1f)", c.Angle)
	}
	return fmt.Sprintf("drive(%s,%.0f)", c.Dir, c.Speed)
}

// NavResult reports what one Step did.
type NavResult struct {
	From     NavState
	State    NavState
	Visited  []NavState // states passed through this cycle, including From
	Turn     Side       // turn decision from the forward-side clearances
	Commands []Command
	Err      error // actuator failures, joined
}

// Navigator owns the navigation state and drives both actuators.
type Navigator struct {
	cfg   NavConfig
	clock Clock
	drive DriveActuator
	steer SteeringActuator

	state    NavState
	lockSide Side
}

func NewNavigator(cfg NavConfig, clock Clock, drive DriveActuator, steer SteeringActuator) *Navigator {
	return &Navigator{cfg: cfg, clock: clock, drive: drive, steer: steer, state: StateIdle}
}

func (n *Navigator) State() NavState { return n.state }

// Step evaluates the transition rules once and issues the matching actuator
// commands. A reverse maneuver runs to completion inside Step.
func (n *Navigator) Step(in NavInput) NavResult {
	res := &NavResult{From: n.state, Visited: []NavState{n.state}, Turn: n.turnDecision(in)}

	if !in.Ready {
		n.enter(res, StateIdle)
		n.sendDrive(res, DriveStop, 0)
		return n.finish(res)
	}

	switch n.state {
	case StateIdle:
		n.enter(res, StateForward)
		n.cruise(res, in)

	case StateForward:
		switch {
		case n.frontBlocked(in):
			n.enter(res, StateReverseManeuver)
			n.reverse(res, res.Turn)
			n.enter(res, StateForward)
		case n.closingIn(in):
			n.enter(res, StateHardTurn)
			n.lockSide = res.Turn
			n.sendDrive(res, DriveForward, n.cfg.CruiseSpeed)
			n.sendSteer(res, n.lockAngle(n.lockSide))
		default:
			n.cruise(res, in)
		}

	case StateHardTurn:
		switch {
		case n.frontBlocked(in):
			// Pass through Forward so the maneuver starts from there, without
			// cruising toward the obstacle first.
			n.enter(res, StateForward)
			n.enter(res, StateReverseManeuver)
			n.reverse(res, n.lockSide)
			n.enter(res, StateForward)
		case !n.closingIn(in):
			n.enter(res, StateForward)
			n.cruise(res, in)
		default:
			n.sendDrive(res, DriveForward, n.cfg.CruiseSpeed)
			n.sendSteer(res, n.lockAngle(n.lockSide))
		}

	default:
		// A maneuver never outlives Step; anything else is recovered as forward.
		n.enter(res, StateForward)
		n.cruise(res, in)
	}
	return n.finish(res)
}

func (n *Navigator) cruise(res *NavResult, in NavInput) {
	n.sendDrive(res, DriveForward, n.cfg.CruiseSpeed)
	n.sendSteer(res, ClampFloat(in.TurningAngle, n.cfg.MinAngle, n.cfg.MaxAngle))
}

// reverse backs away from the obstacle with the wheels on the opposite lock,
// then drives forward on the chosen lock. Both waits block the loop and cannot
// be interrupted.
func (n *Navigator) reverse(res *NavResult, turn Side) {
	n.sendSteer(res, n.lockAngle(turn.Opposite()))
	n.sendDrive(res, DriveBackward, n.cfg.CruiseSpeed)
	n.clock.Sleep(n.cfg.ReverseDuration)
	n.sendDrive(res, DriveForward, n.cfg.CruiseSpeed)
	n.sendSteer(res, n.lockAngle(turn))
	n.clock.Sleep(n.cfg.RecoverDuration)
}

// turnDecision picks the forward side with more clearance.
func (n *Navigator) turnDecision(in NavInput) Side {
	if !in.FrontLeft.Known || !in.FrontRight.Known {
		return n.cfg.DefaultTurn
	}
	switch {
	case in.FrontLeft.MM > in.FrontRight.MM:
		return Left
	case in.FrontRight.MM > in.FrontLeft.MM:
		return Right
	default:
		return n.cfg.DefaultTurn
	}
}

func (n *Navigator) frontBlocked(in NavInput) bool {
	return in.Front.Known && in.Front.MM < n.cfg.MinFrontClearanceMM
}

// closingIn is true while the two forward-side clearances add up to less
// than the opening threshold.
func (n *Navigator) closingIn(in NavInput) bool {
	if !in.FrontLeft.Known || !in.FrontRight.Known {
		return false
	}
	return in.FrontLeft.MM+in.FrontRight.MM < n.cfg.OpeningThresholdMM
}

func (n *Navigator) lockAngle(s Side) float64 {
	if s == Left {
		return n.cfg.MinAngle
	}
	return n.cfg.MaxAngle
}

func (n *Navigator) enter(res *NavResult, s NavState) {
	if n.state == s {
		return
	}
	n.state = s
	res.Visited = append(res.Visited, s)
}

func (n *Navigator) sendDrive(res *NavResult, dir Direction, speed float64) {
	res.Commands = append(res.Commands, Command{Kind: DriveCommand, Dir: dir, Speed: speed})
	if err := n.drive.Drive(dir, speed); err != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("drive %s: %w", dir, err))
	}
}

func (n *Navigator) sendSteer(res *NavResult, angle float64) {
	res.Commands = append(res.Commands, Command{Kind: SteerCommand, Angle: angle})
	if err := n.steer.Steer(angle); err != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("steer %.1f: %w", angle, err))
	}
}

func (n *Navigator) finish(res *NavResult) NavResult {
	res.State = n.state
	return *res
}
