// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stabilizer implements the PID stabilization law: a rate
// controller on every axis, blended on roll and pitch with a self-leveling
// angle controller according to how far the cyclic stick is deflected.
//
// Units: angles in radians, rates in radians per second, demands in the
// normalized stick domain produced by the receiver.
package stabilizer

import (
	"math"

	"github.com/relabs-tech/flight_computer/internal/control"
)

// Config holds the gains and the anti-windup tuning of the control law.
type Config struct {
	LevelP float64 // angle-domain P on roll/pitch
	LevelI float64 // angle-domain I on roll/pitch

	CyclicP float64 // rate-domain gains on roll/pitch
	CyclicI float64
	CyclicD float64

	YawP float64
	YawI float64
	YawD float64

	GyroWindupMax  float64 // symmetric clamp on the rate-domain accumulator
	AngleWindupMax float64 // symmetric clamp on the angle-domain accumulator

	BigGyroRate  float64 // rad/s; above this the rate accumulator is zeroed
	BigYawDemand float64 // above this the yaw accumulator is zeroed

	MaxCyclicDemand     float64 // cyclic deflection at which control is pure rate
	AngleDemandScale    float64 // cyclic demand to target angle (rad)
	MaxAngleInclination float64 // rad

	YawJumpOffset float64
}

// DefaultConfig returns the tune flown on the reference quadcopter.
func DefaultConfig() Config {
	return Config{
		LevelP: 0.20,
		LevelI: 0,

		CyclicP: 0.225,
		CyclicI: 0.001875,
		CyclicD: 0.375,

		YawP: 1.0625,
		YawI: 0.005625,
		YawD: 0,

		GyroWindupMax:  16.0,
		AngleWindupMax: degreesToRadians(1000),

		BigGyroRate:  degreesToRadians(40),
		BigYawDemand: 0.1,

		MaxCyclicDemand:     0.5,
		AngleDemandScale:    1.0,
		MaxAngleInclination: degreesToRadians(50),

		YawJumpOffset: 0.1,
	}
}

// Stabilizer holds the per-axis PID state. The zero value is not usable;
// call New.
type Stabilizer struct {
	cfg Config

	errorGyroI  [3]float64
	errorAngleI [2]float64

	lastGyro [3]float64
	delta1   [3]float64
	delta2   [3]float64
}

// New returns a stabilizer with all accumulators zeroed.
func New(cfg Config) *Stabilizer {
	s := &Stabilizer{cfg: cfg}
	s.Init()
	return s
}

// Init zeroes the derivative history and the integrals.
func (s *Stabilizer) Init() {
	s.lastGyro = [3]float64{}
	s.delta1 = [3]float64{}
	s.delta2 = [3]float64{}
	s.ResetIntegral()
}

// ResetIntegral zeroes every rate- and angle-domain accumulator. Called
// while landed and when a calibration gesture fires.
func (s *Stabilizer) ResetIntegral() {
	s.errorGyroI = [3]float64{}
	s.errorAngleI = [2]float64{}
}

// Integrals returns the rate-domain (roll, pitch, yaw) and angle-domain
// (roll, pitch) accumulators.
func (s *Stabilizer) Integrals() (gyro [3]float64, angle [2]float64) {
	return s.errorGyroI, s.errorAngleI
}

// Update computes stabilized roll, pitch and yaw from the pilot demands,
// the attitude estimate and the measured rates. Throttle passes through.
func (s *Stabilizer) Update(angles, rates [3]float64, in control.Demands) control.Demands {
	prop := s.cyclicProportion(in)

	out := in
	out.Roll = s.cyclicPid(control.AxisRoll, in.Roll, prop, angles, rates)
	out.Pitch = s.cyclicPid(control.AxisPitch, in.Pitch, prop, angles, rates)

	// Yaw has no leveling: P comes straight from the stick.
	iYaw := s.rateITerm(control.AxisYaw, s.cfg.YawP, s.cfg.YawI, in.Yaw, rates)
	dYaw := s.dTerm(control.AxisYaw, s.cfg.YawD, rates)
	yaw := s.pid(s.cfg.YawP, in.Yaw, iYaw, dYaw, rates, control.AxisYaw)

	// Prevent yaw jump during yaw correction.
	out.Yaw = constrainAbs(yaw, s.cfg.YawJumpOffset+math.Abs(in.Yaw))

	return out
}

// cyclicProportion is 0 with centered cyclic sticks (pure angle control)
// and 1 at full deflection (pure rate control), linear in between.
func (s *Stabilizer) cyclicProportion(d control.Demands) float64 {
	deflection := math.Max(math.Abs(d.Roll), math.Abs(d.Pitch))
	return constrain(deflection/s.cfg.MaxCyclicDemand, 0, 1)
}

func (s *Stabilizer) cyclicPid(axis control.Axis, demand, prop float64, angles, rates [3]float64) float64 {
	iRate := s.rateITerm(axis, s.cfg.CyclicP, s.cfg.CyclicI, demand, rates)
	pAngle, iAngle := s.angleTerms(axis, demand, angles)

	p := complementary(demand, pAngle, prop)
	i := complementary(iRate, iAngle, prop)
	d := s.dTerm(axis, s.cfg.CyclicD, rates)

	return s.pid(s.cfg.CyclicP, p, i, d, rates, axis)
}

// rateITerm accumulates the rate error under a hard clamp and drops it on
// a fast gyro change or a large yaw command.
func (s *Stabilizer) rateITerm(axis control.Axis, rateP, rateI, demand float64, rates [3]float64) float64 {
	gyro := rates[axis]
	err := demand*rateP - gyro

	s.errorGyroI[axis] = constrainAbs(s.errorGyroI[axis]+err, s.cfg.GyroWindupMax)

	if math.Abs(gyro) > s.cfg.BigGyroRate || (axis == control.AxisYaw && math.Abs(demand) > s.cfg.BigYawDemand) {
		s.errorGyroI[axis] = 0
	}

	return s.errorGyroI[axis] * rateI
}

func (s *Stabilizer) angleTerms(axis control.Axis, demand float64, angles [3]float64) (p, i float64) {
	target := constrainAbs(demand*s.cfg.AngleDemandScale, s.cfg.MaxAngleInclination)
	err := target - angles[axis]

	s.errorAngleI[axis] = constrainAbs(s.errorAngleI[axis]+err, s.cfg.AngleWindupMax)

	return err * s.cfg.LevelP, s.errorAngleI[axis] * s.cfg.LevelI
}

// dTerm differentiates the measured rate over a three-sample window.
func (s *Stabilizer) dTerm(axis control.Axis, gain float64, rates [3]float64) float64 {
	gyro := rates[axis]
	delta := gyro - s.lastGyro[axis]
	s.lastGyro[axis] = gyro

	sum := s.delta1[axis] + s.delta2[axis] + delta
	s.delta2[axis] = s.delta1[axis]
	s.delta1[axis] = delta

	return sum * gain
}

// pid subtracts D so it damps the change of the measured rate.
func (s *Stabilizer) pid(rateP, p, i, d float64, rates [3]float64, axis control.Axis) float64 {
	p -= rates[axis] * rateP
	return p + i - d
}
