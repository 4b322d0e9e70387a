// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "periph.io/x/conn/v3/physic"

// Sample represents a single environmental measurement from the barometer.
type Sample struct {
	Temperature float64 `json:"temp_c"`      // °C
	Pressure    float64 `json:"pressure_pa"` // Pa
	AltitudeM   float64 `json:"altitude_m"`  // pressure altitude, ISA
}

// seaLevelPa is the ISA standard pressure at sea level.
const seaLevelPa = 101325.0

// FromPhysic converts a periph measurement.
func FromPhysic(e physic.Env) Sample {
	pa := float64(e.Pressure) / float64(physic.Pascal)
	return Sample{
		Temperature: e.Temperature.Celsius(),
		Pressure:    pa,
		AltitudeM:   PressureAltitude(pa),
	}
}
