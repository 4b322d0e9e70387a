// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mixer maps stabilized demands to per-motor outputs.
package mixer

import (
	"github.com/relabs-tech/flight_computer/internal/control"
)

// Motor is one row of the mixing table: the sign each demand contributes
// to this motor.
type Motor struct {
	Throttle float64
	Roll     float64
	Pitch    float64
	Yaw      float64
}

// QuadX is the mixing table of an X-configured quadcopter, motors ordered
// right-rear, right-front, left-rear, left-front.
var QuadX = []Motor{
	{Throttle: +1, Roll: -1, Pitch: +1, Yaw: +1},
	{Throttle: +1, Roll: -1, Pitch: -1, Yaw: -1},
	{Throttle: +1, Roll: +1, Pitch: +1, Yaw: -1},
	{Throttle: +1, Roll: +1, Pitch: -1, Yaw: +1},
}

// Mixer holds a mixing table and the last outputs it produced.
type Mixer struct {
	table   []Motor
	idle    float64
	outputs []float64
}

// New returns a mixer for table. idle is the output of every motor while
// disarmed.
func New(table []Motor, idle float64) *Mixer {
	return &Mixer{
		table:   table,
		idle:    idle,
		outputs: make([]float64, len(table)),
	}
}

// NewQuadX returns a quad-X mixer with motors stopped while disarmed.
func NewQuadX() *Mixer {
	return New(QuadX, 0)
}

// Update mixes demands into motor outputs in [0,1]. When a motor would
// exceed full power every motor is lowered by the excess so attitude
// authority is kept over altitude.
func (m *Mixer) Update(armed bool, d control.Demands) []float64 {
	if !armed {
		for i := range m.outputs {
			m.outputs[i] = m.idle
		}
		return m.outputs
	}

	highest := 0.0
	for i, mt := range m.table {
		v := d.Throttle*mt.Throttle + d.Roll*mt.Roll + d.Pitch*mt.Pitch + d.Yaw*mt.Yaw
		m.outputs[i] = v
		if i == 0 || v > highest {
			highest = v
		}
	}

	excess := highest - 1
	for i, v := range m.outputs {
		if excess > 0 {
			v -= excess
		}
		m.outputs[i] = min(1, max(0, v))
	}
	return m.outputs
}

// Outputs returns the last mixed outputs.
func (m *Mixer) Outputs() []float64 {
	return m.outputs
}
