// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package board holds the hardware variants the control loop runs on.
package board

import "math"

// Info describes the particulars of a board, returned once by Init.
type Info struct {
	Acc1G                 uint16  // accelerometer counts at one g
	GyroScale             float64 // rad/s per gyro count
	LoopTimeMicros        uint32  // IMU task period
	GyroCalibrationMillis uint32  // how long the gyro is averaged for
}

// Accelerometer counts per g for the MPU9250 full-scale settings
// (0=±2g, 1=±4g, 2=±8g, 3=±16g).
var accelCountsPerG = [4]uint16{16384, 8192, 4096, 2048}

// Gyro counts per deg/s for the MPU9250 full-scale settings
// (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s).
var gyroCountsPerDPS = [4]float64{131, 65.5, 32.8, 16.4}

// AccelScale returns counts per g for an accelerometer range setting.
func AccelScale(rangeSel byte) uint16 {
	return accelCountsPerG[rangeSel&3]
}

// GyroScale returns rad/s per count for a gyro range setting.
func GyroScale(rangeSel byte) float64 {
	return math.Pi / 180 / gyroCountsPerDPS[rangeSel&3]
}
