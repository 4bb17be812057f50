package control

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SensorID names one of the five ranging sensors by mounting position.
type SensorID int

const (
	Front SensorID = iota
	FrontLeft
	FrontRight
	BackLeft
	BackRight

	NumSensors = 5
)

// AllSensors lists the sensors in polling order.
var AllSensors = [NumSensors]SensorID{Front, FrontLeft, FrontRight, BackLeft, BackRight}

func (s SensorID) String() string {
	switch s {
	case Front:
		return "front"
	case FrontLeft:
		return "f_left"
	case FrontRight:
		return "f_right"
	case BackLeft:
		return "b_left"
	case BackRight:
		return "b_right"
	default:
		return fmt.Sprintf("SensorID(%d)", int(s))
	}
}

// ParseSensorID accepts the names produced by String.
func ParseSensorID(value string) (SensorID, error) {
	for _, id := range AllSensors {
		if strings.EqualFold(strings.TrimSpace(value), id.String()) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor %q", value)
}

// Side selects a wall (for tracking) or a steering lock (for turns).
type Side int

const (
	Right Side = iota
	Left
)

func (s Side) String() string {
	switch s {
	case Right:
		return "right"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

func ParseSide(value string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "right":
		return Right, nil
	case "left":
		return Left, nil
	default:
		return Right, fmt.Errorf("unknown side %q", value)
	}
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Direction is the drive actuator command.
type Direction int

const (
	DriveStop Direction = iota
	DriveForward
	DriveBackward
)

func (d Direction) String() string {
	switch d {
	case DriveStop:
		return "STOP"
	case DriveForward:
		return "FORWARD"
	case DriveBackward:
		return "BACKWARD"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// NavState is the navigation mode. The machine starts Idle and has no
// terminal state.
type NavState int

const (
	StateIdle NavState = iota
	StateForward
	StateReverseManeuver
	StateHardTurn
)

func (s NavState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateForward:
		return "FORWARD"
	case StateReverseManeuver:
		return "REVERSE_MANEUVER"
	case StateHardTurn:
		return "HARD_TURN"
	default:
		return fmt.Sprintf("NavState(%d)", int(s))
	}
}

// SensorArray is polled once per cycle for every sensor. valid is false when
// the device has no new sample ready.
type SensorArray interface {
	Read(id SensorID) (distance float64, valid bool)
}

type DriveActuator interface {
	Drive(dir Direction, speed float64) error
}

// SteeringActuator takes an angle within [MinAngle, MaxAngle]; the midpoint
// drives straight.
type SteeringActuator interface {
	Steer(angle float64) error
}

// Clock is the time source for derivative timing, sensor waits and maneuver
// durations.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}
