// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package flight owns the arming and calibration state of the vehicle.
package flight

import "github.com/relabs-tech/flight_computer/internal/rc"

// State is the explicit flight state.
type State int

const (
	DisarmedUncalibrated State = iota
	DisarmedCalibrating
	DisarmedReady
	Armed
)

func (s State) String() string {
	switch s {
	case DisarmedUncalibrated:
		return "DISARMED_UNCALIBRATED"
	case DisarmedCalibrating:
		return "DISARMED_CALIBRATING"
	case DisarmedReady:
		return "DISARMED_READY"
	case Armed:
		return "ARMED"
	default:
		return "UNKNOWN"
	}
}

// Gesture is a deliberate stick combination.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureCalibrateGyro
	GestureCalibrateAccel
	GestureArm
	GestureDisarm
)

func (g Gesture) String() string {
	switch g {
	case GestureCalibrateGyro:
		return "calibrate-gyro"
	case GestureCalibrateAccel:
		return "calibrate-accel"
	case GestureArm:
		return "arm"
	case GestureDisarm:
		return "disarm"
	default:
		return "none"
	}
}

var gestures = map[rc.Sticks]Gesture{
	{Throttle: rc.StickLow, Yaw: rc.StickLow, Pitch: rc.StickLow, Roll: rc.StickCenter}:     GestureCalibrateGyro,
	{Throttle: rc.StickHigh, Yaw: rc.StickLow, Pitch: rc.StickLow, Roll: rc.StickCenter}:    GestureCalibrateAccel,
	{Throttle: rc.StickLow, Yaw: rc.StickHigh, Pitch: rc.StickCenter, Roll: rc.StickCenter}: GestureArm,
	{Throttle: rc.StickLow, Yaw: rc.StickLow, Pitch: rc.StickCenter, Roll: rc.StickCenter}:  GestureDisarm,
}

// ClassifyGesture matches stick positions against the known gestures.
func ClassifyGesture(s rc.Sticks) Gesture {
	return gestures[s]
}

// Event is the side effect a transition asks the owner to perform.
type Event int

const (
	EventNone Event = iota
	EventGyroCalibration
	EventAccelCalibration
	EventArmed
	EventDisarmed
)

func (e Event) String() string {
	switch e {
	case EventGyroCalibration:
		return "gyro-calibration-started"
	case EventAccelCalibration:
		return "accel-calibration-started"
	case EventArmed:
		return "armed"
	case EventDisarmed:
		return "disarmed"
	default:
		return "none"
	}
}

// Preconditions gate the ARMED transition. All three must hold.
type Preconditions struct {
	GyroCalibrationRemaining uint16
	AccelCalibrated          bool
	AuxNeutral               bool
}

// CanArm reports whether every arming precondition holds.
func (p Preconditions) CanArm() bool {
	return p.GyroCalibrationRemaining == 0 && p.AccelCalibrated && p.AuxNeutral
}

// Transition is the pure flight state transition function. Disarming is
// never blocked; an arming gesture that fails a precondition is ignored.
func Transition(s State, g Gesture, p Preconditions) (State, Event) {
	if s == Armed {
		if g == GestureDisarm {
			return DisarmedReady, EventDisarmed
		}
		return s, EventNone
	}

	switch g {
	case GestureCalibrateGyro:
		return DisarmedCalibrating, EventGyroCalibration
	case GestureCalibrateAccel:
		return s, EventAccelCalibration
	case GestureArm:
		if s == DisarmedReady && p.CanArm() {
			return Armed, EventArmed
		}
	}
	return s, EventNone
}
