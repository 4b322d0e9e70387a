// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry carries snapshots of the control loop to the outside
// world without sharing any state with it.
package telemetry

import (
	"github.com/relabs-tech/flight_computer/internal/control"
	"github.com/relabs-tech/flight_computer/internal/env"
	"github.com/relabs-tech/flight_computer/internal/gps"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/rc"
)

// Status is one snapshot of the vehicle, built by the control loop on every
// IMU tick.
type Status struct {
	Seq    uint64 `json:"seq"`
	Micros uint32 `json:"micros"`

	State            string `json:"state"`
	Armed            bool   `json:"armed"`
	AuxState         int    `json:"aux_state"`
	CalibratingGyro  uint16 `json:"calibrating_gyro"`
	CalibratingAccel uint16 `json:"calibrating_accel"`
	AccelCalibrated  bool   `json:"accel_calibrated"`
	HaveSmallAngle   bool   `json:"small_angle"`

	Attitude orientation.Pose `json:"attitude"` // rad
	Rates    [3]float64       `json:"rates"`    // rad/s

	Command rc.CommandVector `json:"command"`
	Demands control.Demands  `json:"demands"`
	Motors  []float64        `json:"motors"`

	LoopMicros uint32 `json:"loop_us"` // measured IMU period

	Env *env.Sample `json:"env,omitempty"`
	GPS *gps.Fix    `json:"gps,omitempty"`
}
