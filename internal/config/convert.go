// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"math"
	"time"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/controller"
	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/stabilizer"
	"periph.io/x/conn/v3/physic"
)

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// StabilizerConfig returns the PID tune. Angles are configured in degrees.
func (c *Config) StabilizerConfig() stabilizer.Config {
	return stabilizer.Config{
		LevelP:              c.LevelP,
		LevelI:              c.LevelI,
		CyclicP:             c.CyclicP,
		CyclicI:             c.CyclicI,
		CyclicD:             c.CyclicD,
		YawP:                c.YawP,
		YawI:                c.YawI,
		YawD:                c.YawD,
		GyroWindupMax:       c.GyroWindupMax,
		AngleWindupMax:      radians(c.AngleWindupMaxDeg),
		BigGyroRate:         radians(c.BigGyroRateDPS),
		BigYawDemand:        c.BigYawDemand,
		MaxCyclicDemand:     c.MaxCyclicDemand,
		AngleDemandScale:    c.AngleDemandScale,
		MaxAngleInclination: radians(c.MaxAngleInclinationDeg),
		YawJumpOffset:       c.YawJumpOffset,
	}
}

// RCConfig returns the receiver thresholds. The cyclic demand range is
// shared with the stabilizer.
func (c *Config) RCConfig() rc.Config {
	return rc.Config{
		MinCheck:        c.RCMinCheck,
		MaxCheck:        c.RCMaxCheck,
		AuxThreshold:    c.RCAuxThreshold,
		CyclicExpo:      c.RCCyclicExpo,
		YawExpo:         c.RCYawExpo,
		MaxCyclicDemand: c.MaxCyclicDemand,
		MaxYawDemand:    c.RCMaxYawDemand,
	}
}

// ControllerConfig returns the loop tuning.
func (c *Config) ControllerConfig() controller.Config {
	return controller.Config{
		Stabilizer:             c.StabilizerConfig(),
		RCPeriodMicros:         uint32(c.RCPeriodMS) * 1000,
		AccelCalibrationMillis: uint32(c.AccelCalibrationMS),
		AccelWindowMicros:      uint32(c.AccelWindowMS) * 1000,
		SmallAngle:             radians(c.SmallAngleDeg),
	}
}

// PiConfig returns the Raspberry Pi board wiring.
func (c *Config) PiConfig() board.PiConfig {
	return board.PiConfig{
		IMUSPIDevice:          c.IMUSPIDevice,
		IMUCSPin:              c.IMUCSPin,
		IMUAccelRange:         c.IMUAccelRange,
		IMUGyroRange:          c.IMUGyroRange,
		LEDRedPin:             c.LEDRedPin,
		LEDGreenPin:           c.LEDGreenPin,
		MotorPins:             c.MotorPins,
		MotorFrequency:        physic.Frequency(c.MotorFrequencyHz) * physic.Hertz,
		MotorMinPulseUS:       uint32(c.MotorMinPulseUS),
		MotorMaxPulseUS:       uint32(c.MotorMaxPulseUS),
		LoopTimeMicros:        uint32(c.LoopTimeUS),
		GyroCalibrationMillis: uint32(c.GyroCalibrationMS),
	}
}

// SimInfo returns the simulated board description with the configured
// timing.
func (c *Config) SimInfo() board.Info {
	info := board.DefaultSimInfo
	info.Acc1G = board.AccelScale(c.IMUAccelRange)
	info.GyroScale = board.GyroScale(c.IMUGyroRange)
	info.LoopTimeMicros = uint32(c.LoopTimeUS)
	info.GyroCalibrationMillis = uint32(c.GyroCalibrationMS)
	return info
}

// SimIdleSleep is the pause between idle simulator iterations.
func (c *Config) SimIdleSleep() time.Duration {
	return time.Duration(c.SimIdleSleepUS) * time.Microsecond
}
