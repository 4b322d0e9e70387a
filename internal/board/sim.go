// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"time"

	"github.com/relabs-tech/flight_computer/internal/imu"
)

// Sim is a board without hardware. Its clock is either manual (advanced by
// Advance, DelayMillis and every sensor read) or the host clock.
type Sim struct {
	info Info

	manual  bool
	micros  uint32
	start   time.Time
	readLag uint32

	sample imu.Sample
	motors []float64
	red    bool
	green  bool

	// LED edges seen so far, for tests.
	GreenToggles int
	RedToggles   int

	IMUReads    int
	MotorWrites int
}

// DefaultSimInfo is a 3.5 ms loop with a ±8g / ±2000°/s sensor.
var DefaultSimInfo = Info{
	Acc1G:                 AccelScale(2),
	GyroScale:             GyroScale(3),
	LoopTimeMicros:        3500,
	GyroCalibrationMillis: 3500,
}

// NewSim returns a simulated board on a manual clock starting at zero. Each
// IMU read advances the clock by readLagMicros.
func NewSim(info Info, readLagMicros uint32) *Sim {
	return &Sim{
		info:    info,
		manual:  true,
		readLag: readLagMicros,
		sample:  imu.Level(info.Acc1G),
	}
}

// NewRealtimeSim returns a simulated board on the host clock.
func NewRealtimeSim(info Info) *Sim {
	return &Sim{
		info:   info,
		start:  time.Now(),
		sample: imu.Level(info.Acc1G),
	}
}

func (s *Sim) Init() (Info, error) {
	return s.info, nil
}

func (s *Sim) Micros() uint32 {
	if s.manual {
		return s.micros
	}
	return uint32(time.Since(s.start).Microseconds())
}

// Advance moves the manual clock forward.
func (s *Sim) Advance(us uint32) {
	s.micros += us
}

// SetMicros sets the manual clock.
func (s *Sim) SetMicros(us uint32) {
	s.micros = us
}

// SetSample replaces the synthetic IMU reading.
func (s *Sim) SetSample(sample imu.Sample) {
	s.sample = sample
}

func (s *Sim) ReadIMU() (imu.Sample, error) {
	s.IMUReads++
	if s.manual {
		s.micros += s.readLag
	}
	return s.sample, nil
}

func (s *Sim) WriteMotors(outputs []float64) error {
	s.MotorWrites++
	s.motors = append(s.motors[:0], outputs...)
	return nil
}

// Motors returns the last motor outputs written.
func (s *Sim) Motors() []float64 {
	return s.motors
}

func (s *Sim) LEDRed(on bool) {
	if on != s.red {
		s.RedToggles++
	}
	s.red = on
}

func (s *Sim) LEDGreen(on bool) {
	if on != s.green {
		s.GreenToggles++
	}
	s.green = on
}

// LEDs returns the red and green LED state.
func (s *Sim) LEDs() (red, green bool) {
	return s.red, s.green
}

func (s *Sim) DelayMillis(ms uint32) {
	if s.manual {
		s.micros += ms * 1000
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (s *Sim) Close() error {
	return nil
}
