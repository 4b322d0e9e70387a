// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu turns raw accelerometer and gyroscope counts into body rates
// and an attitude estimate.
package imu

import (
	"log"
	"math"

	"github.com/relabs-tech/flight_computer/internal/orientation"
)

// Config describes the sensor and the attitude filter.
type Config struct {
	Acc1G     uint16  // accelerometer counts at one g
	GyroScale float64 // rad/s per gyro count

	// AccelGain is the weight given to the accelerometer tilt on every
	// update; the rest comes from integrating the gyro.
	AccelGain float64

	// Accelerometer tilt is ignored while the measured norm is off one g by
	// more than this fraction (the vehicle is accelerating).
	MaxAccelDeviation float64
}

// DefaultAccelGain and DefaultMaxAccelDeviation suit a 3.5 ms loop.
const (
	DefaultAccelGain         = 0.02
	DefaultMaxAccelDeviation = 0.15
)

// Estimator is a complementary filter with calibration of the gyro bias and
// the accelerometer zero. It is owned by the control loop.
type Estimator struct {
	cfg Config

	gyroZero [3]float64
	accZero  [3]float64

	gyroSum  [3]float64
	gyroN    int
	lastCalG uint16

	accSum   [3]float64
	accN     int
	lastCalA uint16

	angles [3]float64
	rates  [3]float64

	last    uint32
	started bool
}

// NewEstimator returns an estimator with zero offsets.
func NewEstimator(cfg Config) *Estimator {
	if cfg.AccelGain == 0 {
		cfg.AccelGain = DefaultAccelGain
	}
	if cfg.MaxAccelDeviation == 0 {
		cfg.MaxAccelDeviation = DefaultMaxAccelDeviation
	}
	return &Estimator{cfg: cfg}
}

// Update folds one sample into the estimate. calibratingAcc and
// calibratingGyro are the remaining calibration cycles for this tick; the
// offsets are committed on the last cycle (remaining == 1). Calibration is
// never taken while armed.
func (e *Estimator) Update(s Sample, now uint32, armed bool, calibratingAcc, calibratingGyro uint16) {
	gyro := [3]float64{float64(s.Gx), float64(s.Gy), float64(s.Gz)}
	acc := [3]float64{float64(s.Ax), float64(s.Ay), float64(s.Az)}

	if !armed {
		e.calibrateGyro(gyro, calibratingGyro)
		e.calibrateAcc(acc, calibratingAcc)
	}
	e.lastCalG = calibratingGyro
	e.lastCalA = calibratingAcc

	for i := range gyro {
		e.rates[i] = (gyro[i] - e.gyroZero[i]) * e.cfg.GyroScale
		acc[i] -= e.accZero[i]
	}

	tilt := orientation.AccelToPose(acc[0], acc[1], acc[2])
	if !e.started {
		e.angles = [3]float64{tilt.Roll, tilt.Pitch, 0}
		e.last = now
		e.started = true
		return
	}

	dt := float64(now-e.last) / 1e6
	e.last = now

	roll := e.angles[0] + e.rates[0]*dt
	pitch := e.angles[1] + e.rates[1]*dt
	yaw := e.angles[2] + e.rates[2]*dt

	if e.accelTrusted(acc) {
		k := e.cfg.AccelGain
		roll = roll*(1-k) + tilt.Roll*k
		pitch = pitch*(1-k) + tilt.Pitch*k
	}

	e.angles = [3]float64{roll, pitch, orientation.WrapPi(yaw)}
}

func (e *Estimator) calibrateGyro(gyro [3]float64, remaining uint16) {
	if remaining == 0 {
		return
	}
	// A countdown that went up is a fresh calibration run.
	if remaining > e.lastCalG {
		e.gyroSum = [3]float64{}
		e.gyroN = 0
	}
	for i := range gyro {
		e.gyroSum[i] += gyro[i]
	}
	e.gyroN++
	if remaining == 1 {
		for i := range e.gyroZero {
			e.gyroZero[i] = e.gyroSum[i] / float64(e.gyroN)
		}
		log.Printf("imu: gyro zero = %.1f %.1f %.1f (%d samples)",
			e.gyroZero[0], e.gyroZero[1], e.gyroZero[2], e.gyroN)
	}
}

func (e *Estimator) calibrateAcc(acc [3]float64, remaining uint16) {
	if remaining == 0 {
		return
	}
	if remaining > e.lastCalA {
		e.accSum = [3]float64{}
		e.accN = 0
	}
	for i := range acc {
		e.accSum[i] += acc[i]
	}
	e.accN++
	if remaining == 1 {
		n := float64(e.accN)
		e.accZero = [3]float64{
			e.accSum[0] / n,
			e.accSum[1] / n,
			e.accSum[2]/n - float64(e.cfg.Acc1G),
		}
		log.Printf("imu: accelerometer zero = %.1f %.1f %.1f (%d samples)",
			e.accZero[0], e.accZero[1], e.accZero[2], e.accN)
	}
}

func (e *Estimator) accelTrusted(acc [3]float64) bool {
	if e.cfg.Acc1G == 0 {
		return true
	}
	norm := math.Sqrt(acc[0]*acc[0]+acc[1]*acc[1]+acc[2]*acc[2]) / float64(e.cfg.Acc1G)
	return math.Abs(norm-1) <= e.cfg.MaxAccelDeviation
}

// Angles returns roll, pitch, yaw in radians.
func (e *Estimator) Angles() [3]float64 { return e.angles }

// Rates returns the bias-corrected body rates in rad/s.
func (e *Estimator) Rates() [3]float64 { return e.rates }

// GyroZero returns the committed gyro bias in counts.
func (e *Estimator) GyroZero() [3]float64 { return e.gyroZero }

// AccZero returns the committed accelerometer zero in counts.
func (e *Estimator) AccZero() [3]float64 { return e.accZero }
