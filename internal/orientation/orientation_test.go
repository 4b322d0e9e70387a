// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"
)

func TestAccelToPose(t *testing.T) {
	cases := []struct {
		name        string
		ax, ay, az  float64
		roll, pitch float64
	}{
		{"level", 0, 0, 1, 0, 0},
		{"right side down", 0, 1, 0, math.Pi / 2, 0},
		{"nose up", -1, 0, 0, 0, math.Pi / 2},
		{"45 roll", 0, 1, 1, math.Pi / 4, 0},
	}
	for _, c := range cases {
		p := AccelToPose(c.ax, c.ay, c.az)
		if math.Abs(p.Roll-c.roll) > 1e-12 || math.Abs(p.Pitch-c.pitch) > 1e-12 || p.Yaw != 0 {
			t.Errorf("%s: pose = %+v, want roll %v pitch %v", c.name, p, c.roll, c.pitch)
		}
	}
}

func TestWrapPi(t *testing.T) {
	cases := map[float64]float64{
		0:               0,
		math.Pi:         math.Pi,
		-math.Pi:        math.Pi,
		3 * math.Pi / 2: -math.Pi / 2,
		-3 * math.Pi:    math.Pi,
		7:               7 - 2*math.Pi,
	}
	for in, want := range cases {
		if got := WrapPi(in); math.Abs(got-want) > 1e-12 {
			t.Errorf("WrapPi(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestDegrees(t *testing.T) {
	p := FromAngles([3]float64{math.Pi, -math.Pi / 2, math.Pi / 4}).Degrees()
	if math.Abs(p.Roll-180) > 1e-12 || math.Abs(p.Pitch+90) > 1e-12 || math.Abs(p.Yaw-45) > 1e-12 {
		t.Errorf("degrees = %+v", p)
	}
}
