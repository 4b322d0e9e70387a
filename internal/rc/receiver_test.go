// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rc

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		cmd  CommandVector
		want Sticks
	}{
		{"idle", CommandIdle, Sticks{StickLow, StickCenter, StickCenter, StickCenter}},
		{"arm", CommandArm, Sticks{StickLow, StickCenter, StickCenter, StickHigh}},
		{"disarm", CommandDisarm, Sticks{StickLow, StickCenter, StickCenter, StickLow}},
		{"gyro cal", CommandCalibrateGyro, Sticks{StickLow, StickCenter, StickLow, StickLow}},
		{"accel cal", CommandCalibrateAccel, Sticks{StickHigh, StickCenter, StickLow, StickLow}},
		{"edge stays center", CommandVector{Throttle: -0.8, Roll: 0.8}, Sticks{StickCenter, StickCenter, StickCenter, StickCenter}},
	}

	for _, tt := range tests {
		if got := cfg.Classify(tt.cmd); got != tt.want {
			t.Errorf("%s: Classify = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAuxState(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		aux  float64
		want int
	}{
		{-1, AuxNeutral},
		{-0.5, AuxNeutral},
		{0, AuxMiddle},
		{0.4, AuxMiddle},
		{1, AuxHigh},
	}
	for _, tt := range tests {
		if got := cfg.AuxState(tt.aux); got != tt.want {
			t.Errorf("AuxState(%v) = %d, want %d", tt.aux, got, tt.want)
		}
	}
}

func TestDemands(t *testing.T) {
	cfg := DefaultConfig()

	d := cfg.Demands(CommandVector{Throttle: -1, Roll: 1, Pitch: -1, Yaw: 0.5})
	if d.Throttle != 0 {
		t.Errorf("throttle = %v, want 0", d.Throttle)
	}
	if d.Roll != cfg.MaxCyclicDemand || d.Pitch != -cfg.MaxCyclicDemand {
		t.Errorf("cyclic at full deflection = %v/%v, want ±%v", d.Roll, d.Pitch, cfg.MaxCyclicDemand)
	}
	if math.Abs(d.Yaw-0.5) > 1e-12 {
		t.Errorf("yaw = %v, want 0.5 with zero yaw expo", d.Yaw)
	}

	d = cfg.Demands(CommandVector{Throttle: 1, Roll: 0.5})
	if d.Throttle != 1 {
		t.Errorf("throttle = %v, want 1", d.Throttle)
	}
	if d.Roll >= 0.5*cfg.MaxCyclicDemand {
		t.Errorf("expo should soften mid-stick roll, got %v", d.Roll)
	}
}

func TestReceiverChangedIsEdgeTriggered(t *testing.T) {
	src := NewScripted(
		Step{Command: CommandIdle, Reads: 1},
		Step{Command: CommandArm, Reads: 2},
		Step{Command: CommandVector{Throttle: -1, Yaw: 0.95, Aux: -1}, Reads: 1},
		Step{Command: CommandIdle, Reads: 1},
	)
	r := NewReceiver(DefaultConfig(), src)

	want := []bool{
		true,  // first frame
		true,  // idle -> arm
		false, // identical arm
		false, // yaw moved but still HIGH
		true,  // back to idle
	}
	for i, w := range want {
		if err := r.Update(); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if got := r.Changed(); got != w {
			t.Errorf("update %d: Changed = %v, want %v (sticks %v)", i, got, w, r.Sticks())
		}
	}
}

type failingSource struct{}

func (failingSource) ReadChannels() (CommandVector, error) {
	return CommandVector{}, ErrNoSignal
}

func TestReceiverKeepsLastSnapshotOnError(t *testing.T) {
	r := NewReceiver(DefaultConfig(), failingSource{})

	err := r.Update()
	if !errors.Is(err, ErrNoSignal) {
		t.Fatalf("Update error = %v, want ErrNoSignal", err)
	}
	if r.Changed() {
		t.Error("Changed after failed update")
	}
	if !r.ThrottleIsDown() {
		t.Error("receiver without signal must report throttle down")
	}
	if r.AuxState() != AuxNeutral {
		t.Errorf("AuxState = %d, want neutral", r.AuxState())
	}
}

func ibusFrame(ch [IBusChannels]uint16) []byte {
	buf := []byte{ibusHeader1, ibusHeader2}
	for _, v := range ch {
		buf = append(buf, byte(v), byte(v>>8))
	}
	sum := uint16(0xFFFF)
	for _, b := range buf {
		sum -= uint16(b)
	}
	return append(buf, byte(sum), byte(sum>>8))
}

func centered() [IBusChannels]uint16 {
	var ch [IBusChannels]uint16
	for i := range ch {
		ch[i] = ibusPulseCenter
	}
	return ch
}

func TestIBusDecoder(t *testing.T) {
	ch := centered()
	ch[ibusThrottle] = 1000
	ch[ibusYaw] = 2000
	ch[ibusAux] = 1000

	// Leading garbage, a corrupted frame, then a good one.
	stream := []byte{0x00, 0x20, 0x13}
	bad := ibusFrame(ch)
	bad[5] ^= 0xFF
	stream = append(stream, bad...)
	stream = append(stream, ibusFrame(ch)...)

	var dec IBusDecoder
	var got [IBusChannels]uint16
	frames := 0
	for _, b := range stream {
		if c, ok := dec.Feed(b); ok {
			got = c
			frames++
		}
	}

	if frames != 1 {
		t.Fatalf("decoded %d frames, want 1", frames)
	}
	if dec.BadFrames != 1 {
		t.Errorf("BadFrames = %d, want 1", dec.BadFrames)
	}
	if got != ch {
		t.Errorf("channels = %v, want %v", got, ch)
	}

	cmd := CommandFromIBus(got)
	if cmd != CommandArm {
		t.Errorf("command = %+v, want %+v", cmd, CommandArm)
	}
}

func TestIBusSourceReadsStream(t *testing.T) {
	ch := centered()
	ch[ibusThrottle] = 1250

	src := NewIBusSource(io.NopCloser(bytes.NewReader(ibusFrame(ch))))

	deadline := time.Now().Add(time.Second)
	for !src.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("no frame decoded within 1s")
		}
		time.Sleep(time.Millisecond)
	}
	if src.Ready() {
		t.Error("Ready reported twice for one frame")
	}

	cmd, err := src.ReadChannels()
	if err != nil {
		t.Fatalf("ReadChannels: %v", err)
	}
	if cmd.Throttle != -0.5 {
		t.Errorf("throttle = %v, want -0.5", cmd.Throttle)
	}
}
