// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rc

import (
	"fmt"
	"math"

	"github.com/relabs-tech/flight_computer/internal/control"
)

// CommandVector is one snapshot of normalized pilot input. Every channel is
// in [-1,+1]; throttle at -1 is idle.
type CommandVector struct {
	Throttle float64 `json:"throttle"`
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
	Aux      float64 `json:"aux"`
}

// Clamped returns the vector with every channel limited to [-1,+1].
func (c CommandVector) Clamped() CommandVector {
	return CommandVector{
		Throttle: clampUnit(c.Throttle),
		Roll:     clampUnit(c.Roll),
		Pitch:    clampUnit(c.Pitch),
		Yaw:      clampUnit(c.Yaw),
		Aux:      clampUnit(c.Aux),
	}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// StickPosition is the coarse classification of one stick axis.
type StickPosition uint8

const (
	StickLow StickPosition = iota + 1
	StickCenter
	StickHigh
)

func (p StickPosition) String() string {
	switch p {
	case StickLow:
		return "LO"
	case StickCenter:
		return "CE"
	case StickHigh:
		return "HI"
	default:
		return "??"
	}
}

// Sticks is the per-axis stick classification used for gesture matching.
// It is comparable, so gestures are plain equality checks.
type Sticks struct {
	Throttle StickPosition
	Roll     StickPosition
	Pitch    StickPosition
	Yaw      StickPosition
}

func (s Sticks) String() string {
	return fmt.Sprintf("THR_%s+YAW_%s+PIT_%s+ROL_%s", s.Throttle, s.Yaw, s.Pitch, s.Roll)
}

// Aux switch positions. Position 0 is neutral and is the only position
// from which the vehicle may be armed.
const (
	AuxNeutral = 0
	AuxMiddle  = 1
	AuxHigh    = 2
)

// Config holds the receiver tuning constants.
type Config struct {
	MinCheck        float64 // below this a stick is LOW
	MaxCheck        float64 // above this a stick is HIGH
	AuxThreshold    float64 // |aux| beyond this selects position 0 or 2
	CyclicExpo      float64
	YawExpo         float64
	MaxCyclicDemand float64 // roll/pitch demand at full deflection
	MaxYawDemand    float64
}

// DefaultConfig returns the thresholds and expo of the reference tune:
// 1100/1900us stick checks on a 1000-2000us channel.
func DefaultConfig() Config {
	return Config{
		MinCheck:        -0.8,
		MaxCheck:        0.8,
		AuxThreshold:    0.4,
		CyclicExpo:      0.65,
		YawExpo:         0.0,
		MaxCyclicDemand: 0.5,
		MaxYawDemand:    1.0,
	}
}

// Position classifies a single channel value.
func (c Config) Position(v float64) StickPosition {
	switch {
	case v < c.MinCheck:
		return StickLow
	case v > c.MaxCheck:
		return StickHigh
	default:
		return StickCenter
	}
}

// Classify maps a command vector onto stick positions.
func (c Config) Classify(cmd CommandVector) Sticks {
	return Sticks{
		Throttle: c.Position(cmd.Throttle),
		Roll:     c.Position(cmd.Roll),
		Pitch:    c.Position(cmd.Pitch),
		Yaw:      c.Position(cmd.Yaw),
	}
}

// AuxState decodes the three-position auxiliary switch.
func (c Config) AuxState(aux float64) int {
	switch {
	case aux < -c.AuxThreshold:
		return AuxNeutral
	case aux > c.AuxThreshold:
		return AuxHigh
	default:
		return AuxMiddle
	}
}

// Demands converts a command vector into stabilizer demands: expo on the
// rotational sticks, cyclic scaled to MaxCyclicDemand, throttle to [0,1].
func (c Config) Demands(cmd CommandVector) control.Demands {
	return control.Demands{
		Throttle: (cmd.Throttle + 1) / 2,
		Roll:     expo(cmd.Roll, c.CyclicExpo) * c.MaxCyclicDemand,
		Pitch:    expo(cmd.Pitch, c.CyclicExpo) * c.MaxCyclicDemand,
		Yaw:      expo(cmd.Yaw, c.YawExpo) * c.MaxYawDemand,
	}
}

// expo blends a cubic into the linear stick response; it keeps 0 and ±1
// fixed and softens the center.
func expo(x, e float64) float64 {
	return e*x*x*x + (1-e)*x
}
