// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "math"

// PressureAltitude returns the ISA altitude in meters for a static pressure
// in Pa.
func PressureAltitude(pa float64) float64 {
	if pa <= 0 {
		return 0
	}
	return 44330.0 * (1 - math.Pow(pa/seaLevelPa, 1/5.255))
}
