package control

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corridor-pilot/utils"
)

func newTestNavigator() (*Navigator, *recordingActuators, *utils.MockClock) {
	act := &recordingActuators{}
	clock := utils.NewMockClock(epoch)
	return NewNavigator(testConfig().navigation(), clock, act, act), act, clock
}

func known(mm float64) Distance { return Distance{MM: mm, Known: true} }

// open is a ready input in a comfortable corridor with nothing ahead.
func open(turning float64) NavInput {
	return NavInput{
		Ready:        true,
		Front:        known(2000),
		FrontLeft:    known(250),
		FrontRight:   known(260),
		TurningAngle: turning,
	}
}

func TestNavigatorStopsWhileNotReady(t *testing.T) {
	n, act, _ := newTestNavigator()

	inputs := []NavInput{
		{},
		{Front: known(10), FrontLeft: known(10), FrontRight: known(10)},
		{Front: known(5000), FrontLeft: known(2000), FrontRight: known(2000), TurningAngle: 170},
	}
	for _, in := range inputs {
		res := n.Step(in)
		assert.Equal(t, StateIdle, res.State)
		assert.Equal(t, []Command{drive(DriveStop, 0)}, res.Commands)
	}
	for _, c := range act.cmds {
		assert.NotEqual(t, SteerCommand, c.Kind, "steering is left untouched while idle")
	}
}

func TestNavigatorLeavesIdleOnceReady(t *testing.T) {
	n, _, _ := newTestNavigator()
	n.Step(NavInput{})

	res := n.Step(open(250))
	assert.Equal(t, StateIdle, res.From)
	assert.Equal(t, StateForward, res.State)
	assert.Equal(t, []Command{drive(DriveForward, 100), steer(180)}, res.Commands, "turning angle is clamped")

	res = n.Step(open(-20))
	assert.Equal(t, []Command{drive(DriveForward, 100), steer(0)}, res.Commands)

	res = n.Step(open(87.5))
	assert.Equal(t, []Command{drive(DriveForward, 100), steer(87.5)}, res.Commands)
}

func TestNavigatorReverseManeuverCompletesAndReturnsForward(t *testing.T) {
	n, act, clock := newTestNavigator()
	n.Step(open(90))
	act.reset()

	in := open(90)
	in.Front = known(200)
	in.FrontLeft = known(400) // more room on the left

	res := n.Step(in)
	assert.Equal(t, StateForward, res.State)
	assert.Equal(t, []NavState{StateForward, StateReverseManeuver, StateForward}, res.Visited)
	assert.Equal(t, Left, res.Turn)

	want := []Command{
		steer(180),
		drive(DriveBackward, 100),
		drive(DriveForward, 100),
		steer(0),
	}
	if diff := cmp.Diff(want, act.cmds); diff != "" {
		t.Errorf("maneuver commands (-want +got):\n%s", diff)
	}
	assert.Equal(t, []time.Duration{1400 * time.Millisecond, 2300 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, epoch.Add(3700*time.Millisecond), clock.Now())
}

func TestNavigatorReverseTurnsRightOnTie(t *testing.T) {
	n, act, _ := newTestNavigator()
	n.Step(open(90))
	act.reset()

	in := open(90)
	in.Front = known(100)
	in.FrontLeft, in.FrontRight = known(300), known(300)
	res := n.Step(in)

	assert.Equal(t, Right, res.Turn)
	assert.Equal(t, steer(0), act.cmds[0], "opposite of the right lock")
	assert.Equal(t, steer(180), act.cmds[3])
}

func TestNavigatorHardTurnWhileClosingIn(t *testing.T) {
	n, _, _ := newTestNavigator()
	n.Step(open(90))

	in := open(90)
	in.FrontLeft, in.FrontRight = known(100), known(150)
	res := n.Step(in)
	assert.Equal(t, StateHardTurn, res.State)
	assert.Equal(t, []Command{drive(DriveForward, 100), steer(180)}, res.Commands)

	// The lock chosen on entry is held even if the sides swap.
	in.FrontLeft, in.FrontRight = known(160), known(100)
	res = n.Step(in)
	assert.Equal(t, StateHardTurn, res.State)
	assert.Equal(t, []Command{drive(DriveForward, 100), steer(180)}, res.Commands)

	res = n.Step(open(95))
	assert.Equal(t, StateForward, res.State)
	assert.Equal(t, []Command{drive(DriveForward, 100), steer(95)}, res.Commands)
}

func TestNavigatorHardTurnObstacleReversesThroughForward(t *testing.T) {
	n, act, clock := newTestNavigator()
	n.Step(open(90))

	in := open(90)
	in.FrontLeft, in.FrontRight = known(100), known(100)
	require.Equal(t, StateHardTurn, n.Step(in).State)
	act.reset()

	in.Front = known(100)
	res := n.Step(in)
	assert.Equal(t, []NavState{StateHardTurn, StateForward, StateReverseManeuver, StateForward}, res.Visited)
	assert.Equal(t, StateForward, res.State)

	// The tie locked right, so the reverse backs out on the left lock and
	// no forward cruise precedes it.
	want := []Command{
		steer(0),
		drive(DriveBackward, 100),
		drive(DriveForward, 100),
		steer(180),
	}
	if diff := cmp.Diff(want, act.cmds); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []time.Duration{1400 * time.Millisecond, 2300 * time.Millisecond}, clock.Sleeps())
}

func TestNavigatorUnknownFrontIsNotAnObstacle(t *testing.T) {
	n, _, clock := newTestNavigator()
	n.Step(open(90))

	in := open(90)
	in.Front = Distance{}
	res := n.Step(in)
	assert.Equal(t, StateForward, res.State)
	assert.Empty(t, clock.Sleeps())
}

func TestNavigatorCollectsActuatorErrors(t *testing.T) {
	n, act, _ := newTestNavigator()
	act.driveErr = errors.New("bus off")
	act.steerErr = errors.New("servo fault")

	res := n.Step(open(90))
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, act.driveErr)
	assert.ErrorIs(t, res.Err, act.steerErr)
	assert.Equal(t, StateForward, res.State, "failures do not stall the state machine")
}
