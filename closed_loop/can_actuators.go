package main

import (
	"context"
	"fmt"
	"time"

	control "corridor-pilot/closed_loop/corridor_control"
	"corridor-pilot/utils"
)

const (
	driveFrame  = "DRIVE_CMD"
	steerFrame  = "STEER_CMD"
	sendTimeout = 20 * time.Millisecond
)

// CANActuators sends drive and steering commands as CAN frames.
type CANActuators struct {
	cmap   *utils.CANMap
	writer utils.CANWriter
	log    *utils.Logger
	sent   uint64
}

func NewCANActuators(cmap *utils.CANMap, writer utils.CANWriter, log *utils.Logger) (*CANActuators, error) {
	for _, name := range []string{driveFrame, steerFrame} {
		if _, err := cmap.FrameByName(name); err != nil {
			return nil, fmt.Errorf("actuator frame: %w", err)
		}
	}
	return &CANActuators{cmap: cmap, writer: writer, log: log}, nil
}

func (a *CANActuators) Drive(dir control.Direction, speed float64) error {
	return a.send(driveFrame, map[string]float64{
		"drive_dir":   float64(dir),
		"drive_speed": speed,
	})
}

func (a *CANActuators) Steer(angle float64) error {
	return a.send(steerFrame, map[string]float64{"steer_angle_deg": angle})
}

func (a *CANActuators) send(frame string, values map[string]float64) error {
	f, err := a.cmap.EncodeFrame(frame, values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frame, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := a.writer.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("write %s: %w", frame, err)
	}
	a.sent++
	a.log.Trace("TX %s id=0x%X data=% X", frame, f.ID, f.Data[:f.Length])
	return nil
}

// logActuators stands in for the vehicle in dry-run mode.
type logActuators struct {
	log *utils.Logger
}

func (a logActuators) Drive(dir control.Direction, speed float64) error {
	a.log.Debug("drive %s speed=%.0f", dir, speed)
	return nil
}

func (a logActuators) Steer(angle float64) error {
	a.log.Debug("steer %.2f deg", angle)
	return nil
}
