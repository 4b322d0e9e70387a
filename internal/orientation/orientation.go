// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Pose is the vehicle attitude in radians.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FromAngles builds a Pose from a roll, pitch, yaw array.
func FromAngles(a [3]float64) Pose {
	return Pose{Roll: a[0], Pitch: a[1], Yaw: a[2]}
}

// Degrees returns the pose converted to degrees, for humans.
func (p Pose) Degrees() Pose {
	return Pose{
		Roll:  p.Roll * 180.0 / math.Pi,
		Pitch: p.Pitch * 180.0 / math.Pi,
		Yaw:   p.Yaw * 180.0 / math.Pi,
	}
}

// AccelToPose computes roll and pitch from accelerometer values (in any
// unit). Yaw is unobservable from gravity and is left at 0.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func AccelToPose(ax, ay, az float64) Pose {
	return Pose{
		Roll:  math.Atan2(ay, az),
		Pitch: math.Atan2(-ax, math.Sqrt(ay*ay+az*az)),
	}
}

// WrapPi folds an angle into (-π, π].
func WrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
