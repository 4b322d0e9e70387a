// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stabilizer

import (
	"math"

	"golang.org/x/exp/constraints"
)

func constrain[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// constrainAbs limits v to the symmetric range [-limit, +limit].
func constrainAbs[T constraints.Float | constraints.Signed](v, limit T) T {
	return constrain(v, -limit, limit)
}

// complementary returns a*c + b*(1-c).
func complementary[T constraints.Float](a, b, c T) T {
	return a*c + b*(1-c)
}

func degreesToRadians(deg float64) float64 {
	return math.Pi * deg / 180
}
