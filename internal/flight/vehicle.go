// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package flight

import (
	"log"
	"math"

	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/timing"
)

// Config holds the calibration tuning of the vehicle.
type Config struct {
	GyroCalibrationCycles  uint16  // IMU ticks per gyro calibration
	AccelCalibrationCycles uint16  // IMU ticks per accelerometer calibration
	SmallAngle             float64 // rad; tilt under which the accelerometer is trusted
	AccelWindowMicros      uint32  // small angle must hold this long to count as calibrated
}

// Vehicle owns the vehicle state. It is mutated only through HandleSticks
// and Tick, from the control loop.
type Vehicle struct {
	cfg Config

	state            State
	calibratingGyro  uint16
	calibratingAccel uint16
	haveSmallAngle   bool
	accelCalibrated  bool
	indicator        bool

	accelWindow *timing.PeriodicTask
	blink       *timing.PeriodicTask
}

// NewVehicle returns a disarmed vehicle with gyro calibration started, as
// at every power-up, and level attitude assumed.
func NewVehicle(cfg Config) *Vehicle {
	v := &Vehicle{
		cfg:             cfg,
		state:           DisarmedUncalibrated,
		calibratingGyro: cfg.GyroCalibrationCycles,
		haveSmallAngle:  true,
		accelWindow:     timing.NewPeriodicTask(cfg.AccelWindowMicros),
		blink:           timing.NewPeriodicTask(cfg.AccelWindowMicros),
	}
	v.reclassify()
	return v
}

// HandleSticks evaluates a gesture. The caller invokes it only when the
// stick classification changed, which makes gestures edge-triggered. The
// state chosen by Transition stands until the next Tick.
func (v *Vehicle) HandleSticks(sticks rc.Sticks, auxState int) Event {
	g := ClassifyGesture(sticks)
	if g == GestureNone {
		return EventNone
	}

	next, ev := Transition(v.state, g, v.Preconditions(auxState))
	v.state = next

	switch ev {
	case EventGyroCalibration:
		v.calibratingGyro = v.cfg.GyroCalibrationCycles
		log.Printf("flight: gyro calibration started (%d cycles)", v.calibratingGyro)
	case EventAccelCalibration:
		v.calibratingAccel = v.cfg.AccelCalibrationCycles
		log.Printf("flight: accelerometer calibration started (%d cycles)", v.calibratingAccel)
	case EventArmed:
		log.Printf("flight: armed")
	case EventDisarmed:
		log.Printf("flight: disarmed")
	case EventNone:
		if g == GestureArm && v.state != Armed {
			log.Printf("flight: arm gesture ignored in %s (gyro=%d accel_calibrated=%v aux=%d)",
				v.state, v.calibratingGyro, v.accelCalibrated, auxState)
		}
	}

	return ev
}

// Tick runs once per IMU tick after the IMU consumed the countdowns:
// countdowns decrement toward zero, the small-angle flag is recomputed and
// the accelerometer observation window is evaluated.
func (v *Vehicle) Tick(roll, pitch float64, now uint32) {
	if v.calibratingAccel > 0 {
		v.calibratingAccel--
	}
	if v.calibratingGyro > 0 {
		v.calibratingGyro--
	}

	v.haveSmallAngle = math.Abs(roll) < v.cfg.SmallAngle && math.Abs(pitch) < v.cfg.SmallAngle

	if !v.haveSmallAngle {
		v.accelCalibrated = false
		v.accelWindow.Update(now)
		if v.blink.CheckAndUpdate(now) {
			v.indicator = !v.indicator
		}
	} else if v.accelWindow.Check(now) {
		v.accelCalibrated = true
	}

	v.reclassify()
}

// reclassify derives the disarmed sub-state from the gyro countdown and the
// accelerometer observation. The accelerometer countdown does not gate arming
// and leaves the state alone.
func (v *Vehicle) reclassify() {
	if v.state == Armed {
		return
	}
	switch {
	case v.calibratingGyro > 0:
		v.state = DisarmedCalibrating
	case v.accelCalibrated:
		v.state = DisarmedReady
	default:
		v.state = DisarmedUncalibrated
	}
}

// Preconditions returns the current arming preconditions.
func (v *Vehicle) Preconditions(auxState int) Preconditions {
	return Preconditions{
		GyroCalibrationRemaining: v.calibratingGyro,
		AccelCalibrated:          v.accelCalibrated,
		AuxNeutral:               auxState == rc.AuxNeutral,
	}
}

func (v *Vehicle) State() State             { return v.state }
func (v *Vehicle) Armed() bool              { return v.state == Armed }
func (v *Vehicle) CalibratingGyro() uint16  { return v.calibratingGyro }
func (v *Vehicle) CalibratingAccel() uint16 { return v.calibratingAccel }
func (v *Vehicle) HaveSmallAngle() bool     { return v.haveSmallAngle }
func (v *Vehicle) AccelCalibrated() bool    { return v.accelCalibrated }
func (v *Vehicle) Calibrating() bool        { return v.calibratingGyro > 0 || v.calibratingAccel > 0 }

// Indicator is the blink phase shown while the vehicle is too tilted for
// the accelerometer to be trusted.
func (v *Vehicle) Indicator() bool { return v.indicator }
