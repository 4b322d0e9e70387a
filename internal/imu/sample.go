// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Sample is one raw accelerometer + gyroscope read in sensor counts.
type Sample struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Level returns a motionless sample of a level vehicle for a sensor
// reading acc1G counts at one g.
func Level(acc1G uint16) Sample {
	return Sample{Az: int16(acc1G)}
}
