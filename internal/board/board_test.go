// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/mpu9250"
)

func TestScales(t *testing.T) {
	if got := AccelScale(2); got != 4096 {
		t.Errorf("AccelScale(±8g) = %d, want 4096", got)
	}
	// 131 counts per deg/s on the ±250 range.
	want := math.Pi / 180 / 131
	if got := GyroScale(0); math.Abs(got-want) > 1e-15 {
		t.Errorf("GyroScale(±250) = %v, want %v", got, want)
	}
}

// Pi.Init dereferences the SPI transport because the driver takes it by
// value.
func TestIMUDriverConstructors(t *testing.T) {
	var (
		newTransport func(string, gpio.PinOut) (*mpu9250.Transport, error) = mpu9250.NewSpiTransport
		newDevice    func(mpu9250.Transport) (*mpu9250.MPU9250, error)     = mpu9250.New
	)
	if newTransport == nil || newDevice == nil {
		t.Fatal("mpu9250 constructors missing")
	}
}

func TestSimManualClock(t *testing.T) {
	s := NewSim(DefaultSimInfo, 200)
	s.Advance(1000)
	if got := s.Micros(); got != 1000 {
		t.Fatalf("Micros = %d", got)
	}
	if _, err := s.ReadIMU(); err != nil {
		t.Fatal(err)
	}
	if got := s.Micros(); got != 1200 {
		t.Errorf("Micros after read = %d, want read lag applied", got)
	}
	s.DelayMillis(5)
	if got := s.Micros(); got != 6200 {
		t.Errorf("Micros after delay = %d", got)
	}
}

func TestSimCapturesOutputs(t *testing.T) {
	s := NewSim(DefaultSimInfo, 0)
	in := []float64{0.1, 0.2, 0.3, 0.4}
	if err := s.WriteMotors(in); err != nil {
		t.Fatal(err)
	}
	in[0] = 9
	if got := s.Motors()[0]; got != 0.1 {
		t.Errorf("motor 0 = %v, capture must not alias the caller's slice", got)
	}

	s.LEDGreen(true)
	s.LEDGreen(true)
	s.LEDGreen(false)
	if s.GreenToggles != 2 {
		t.Errorf("GreenToggles = %d, want 2", s.GreenToggles)
	}
}

func TestMotorDuty(t *testing.T) {
	p := &Pi{
		cfg: PiConfig{
			MotorFrequency:  400 * physic.Hertz,
			MotorMinPulseUS: 1000,
			MotorMaxPulseUS: 2000,
		},
		period: 2500 * time.Microsecond,
	}
	tests := []struct {
		out  float64
		want gpio.Duty
	}{
		{0, gpio.DutyMax * 2 / 5},
		{1, gpio.DutyMax * 4 / 5},
		{-1, gpio.DutyMax * 2 / 5},
		{0.5, gpio.DutyMax * 3 / 5},
	}
	for _, tt := range tests {
		if got := p.duty(tt.out); got != tt.want {
			t.Errorf("duty(%v) = %v, want %v", tt.out, got, tt.want)
		}
	}
}
