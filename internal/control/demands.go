// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

// Axis indexes roll, pitch and yaw in angle and rate vectors.
type Axis int

const (
	AxisRoll Axis = iota
	AxisPitch
	AxisYaw
)

func (a Axis) String() string {
	switch a {
	case AxisRoll:
		return "roll"
	case AxisPitch:
		return "pitch"
	case AxisYaw:
		return "yaw"
	default:
		return "unknown"
	}
}

// Demands is the working vector passed from pilot input through the
// stabilizer to the mixer. Throttle is in [0,1] and is never modified by
// the stabilizer; roll, pitch and yaw are overwritten with corrections.
type Demands struct {
	Throttle float64 `json:"throttle"`
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
}

// Axis returns the demand for a rotational axis.
func (d Demands) Axis(a Axis) float64 {
	switch a {
	case AxisRoll:
		return d.Roll
	case AxisPitch:
		return d.Pitch
	default:
		return d.Yaw
	}
}
