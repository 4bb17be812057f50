package control

import (
	"time"

	"corridor-pilot/utils"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSensors struct {
	values  [NumSensors]float64
	invalid [NumSensors]bool
	reads   []SensorID
}

func (f *fakeSensors) Read(id SensorID) (float64, bool) {
	f.reads = append(f.reads, id)
	return f.values[id], !f.invalid[id]
}

// corridor sets all four side sensors to the same clearance and the front
// sensor to front.
func (f *fakeSensors) corridor(side, front float64) {
	f.values = [NumSensors]float64{front, side, side, side, side}
}

type recordingActuators struct {
	cmds     []Command
	driveErr error
	steerErr error
}

func (r *recordingActuators) Drive(dir Direction, speed float64) error {
	r.cmds = append(r.cmds, Command{Kind: DriveCommand, Dir: dir, Speed: speed})
	return r.driveErr
}

func (r *recordingActuators) Steer(angle float64) error {
	r.cmds = append(r.cmds, Command{Kind: SteerCommand, Angle: angle})
	return r.steerErr
}

func (r *recordingActuators) reset() { r.cmds = nil }

// testConfig is the shipped tuning with calibration zeroed so sensor values
// in tests are already calibrated distances.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OffsetsMM = [NumSensors]float64{}
	cfg.VehicleWidthMM = 100
	return cfg
}

func newTestPilot(cfg Config) (*Pilot, *fakeSensors, *recordingActuators, *utils.MockClock) {
	sensors := &fakeSensors{}
	act := &recordingActuators{}
	clock := utils.NewMockClock(epoch)
	p, err := NewPilot(cfg, Deps{Sensors: sensors, Drive: act, Steering: act, Clock: clock})
	if err != nil {
		panic(err)
	}
	return p, sensors, act, clock
}

func drive(dir Direction, speed float64) Command {
	return Command{Kind: DriveCommand, Dir: dir, Speed: speed}
}

func steer(angle float64) Command {
	return Command{Kind: SteerCommand, Angle: angle}
}
