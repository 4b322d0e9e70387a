// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package controller

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/mixer"
	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

const step = 250 // us of wall time between loop iterations

var testInfo = board.Info{
	Acc1G:                 board.AccelScale(2),
	GyroScale:             board.GyroScale(3),
	LoopTimeMicros:        1000,
	GyroCalibrationMillis: 10, // 10 cycles
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AccelCalibrationMillis = 5 // 5 cycles
	cfg.AccelWindowMicros = 50_000
	return cfg
}

// countingReceiver counts RC updates and can force the ready signal.
type countingReceiver struct {
	*rc.Receiver
	updates int
	ready   bool
}

func (r *countingReceiver) Update() error {
	r.updates++
	return r.Receiver.Update()
}

func (r *countingReceiver) Ready() bool { return r.ready }

type recordingAux struct {
	name string
	log  *[]string
	err  error
}

func (a *recordingAux) Name() string { return a.name }

func (a *recordingAux) Perform(uint32) error {
	*a.log = append(*a.log, a.name)
	return a.err
}

type harness struct {
	t      *testing.T
	c      *Controller
	sim    *board.Sim
	src    *rc.Scripted
	rx     *countingReceiver
	store  *telemetry.Store
	auxLog []string
}

func newHarness(t *testing.T, steps ...rc.Step) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		sim:   board.NewSim(testInfo, 100),
		src:   rc.NewScripted(steps...),
		store: telemetry.NewStore(),
	}
	h.rx = &countingReceiver{Receiver: rc.NewReceiver(rc.DefaultConfig(), h.src)}
	h.c = New(testConfig(), Deps{
		Board:     h.sim,
		Receiver:  h.rx,
		Mixer:     mixer.NewQuadX(),
		Telemetry: h.store,
		Aux: []AuxTask{
			&recordingAux{name: "a", log: &h.auxLog},
			&recordingAux{name: "b", log: &h.auxLog},
		},
	})
	if err := h.c.Init(); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) tick() bool {
	h.sim.Advance(step)
	return h.c.Update()
}

// runUntil iterates until cond holds, failing after max iterations.
func (h *harness) runUntil(what string, max int, cond func() bool) {
	h.t.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return
		}
		h.tick()
	}
	h.t.Fatalf("%s: not reached after %d iterations (state %s)", what, max, h.c.Vehicle().State())
}

// runUntilIMU iterates until an IMU tick runs.
func (h *harness) runUntilIMU(max int) {
	h.t.Helper()
	for i := 0; i < max; i++ {
		if h.tick() {
			return
		}
	}
	h.t.Fatalf("imu tick: not reached after %d iterations (state %s)", max, h.c.Vehicle().State())
}

func (h *harness) runRCReads(n int) {
	h.t.Helper()
	target := h.rx.updates + n
	h.runUntil("rc reads", 100_000, func() bool { return h.rx.updates >= target })
}

func TestInitFlashesAndStartsGyroCalibration(t *testing.T) {
	h := newHarness(t, rc.Step{Command: rc.CommandIdle, Reads: 1})

	if h.sim.GreenToggles != 20 || h.sim.RedToggles != 20 {
		t.Errorf("LED toggles = %d green / %d red, want 10 flashes each", h.sim.GreenToggles, h.sim.RedToggles)
	}
	if got := h.sim.Micros(); got != 1_100_000 {
		t.Errorf("startup took %d us, want 1.1 s", got)
	}
	v := h.c.Vehicle()
	if v.State() != flight.DisarmedCalibrating || v.CalibratingGyro() != 10 {
		t.Errorf("state after init = %s, gyro countdown %d", v.State(), v.CalibratingGyro())
	}
	if !v.HaveSmallAngle() {
		t.Error("small angle should be assumed at boot")
	}

	h.tick()
	if _, green := h.sim.LEDs(); !green {
		t.Error("green LED should be on while calibrating")
	}
}

func TestArmIsEdgeTriggeredAndGated(t *testing.T) {
	h := newHarness(t,
		rc.Step{Command: rc.CommandArm, Reads: 3},  // during gyro calibration, then held
		rc.Step{Command: rc.CommandIdle, Reads: 2}, // release
		rc.Step{Command: rc.CommandArm, Reads: 1},  // fresh gesture
	)

	h.runRCReads(3)
	v := h.c.Vehicle()
	if v.Armed() {
		t.Fatal("armed from a gesture made during gyro calibration")
	}
	if v.CalibratingGyro() != 0 || v.State() != flight.DisarmedReady {
		t.Fatalf("state = %s gyro=%d, want ready after calibration", v.State(), v.CalibratingGyro())
	}

	// Still holding arm: not a new gesture.
	h.runRCReads(2)
	if v.Armed() {
		t.Fatal("armed from a held stick position")
	}

	h.runRCReads(1)
	if !v.Armed() {
		t.Fatalf("not armed after a fresh gesture (state %s)", v.State())
	}

	h.runUntil("red LED", 100, func() bool { red, _ := h.sim.LEDs(); return red })
}

func armed(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t,
		rc.Step{Command: rc.CommandIdle, Reads: 3},
		rc.Step{Command: rc.CommandArm, Reads: 1},
		rc.Step{Command: rc.CommandIdle, Reads: 1},
	)
	h.runUntil("armed", 100_000, func() bool { return h.c.Vehicle().Armed() })
	return h
}

func TestMotorsFollowThrottleOnlyWhenArmed(t *testing.T) {
	h := newHarness(t, rc.Step{Command: rc.CommandVector{Throttle: 0, Aux: -1}, Reads: 1})
	h.runRCReads(5)
	for i, m := range h.sim.Motors() {
		if m != 0 {
			t.Fatalf("motor %d = %v while disarmed", i, m)
		}
	}

	h = armed(t)
	h.src.Set(rc.CommandVector{Throttle: 0, Aux: -1})
	h.runRCReads(2)
	h.runUntilIMU(100)
	for i, m := range h.sim.Motors() {
		if math.Abs(m-0.5) > 0.05 {
			t.Errorf("motor %d = %v at half throttle, want ~0.5", i, m)
		}
	}
}

func TestDisarmStopsMotors(t *testing.T) {
	h := armed(t)
	h.src.Set(rc.CommandDisarm)
	h.runRCReads(1)
	if h.c.Vehicle().Armed() {
		t.Fatal("still armed after disarm gesture")
	}
	h.runUntilIMU(100)
	for i, m := range h.sim.Motors() {
		if m != 0 {
			t.Errorf("motor %d = %v after disarm", i, m)
		}
	}
}

func TestThrottleDownResetsIntegral(t *testing.T) {
	h := armed(t)

	// Flying with a roll demand: the rate integral winds.
	h.src.Set(rc.CommandVector{Throttle: 0, Roll: 0.3, Aux: -1})
	h.runRCReads(3)
	gyro, _ := h.c.stab.Integrals()
	if gyro[0] == 0 {
		t.Fatal("roll integral did not accumulate in flight")
	}

	// Landed with the stick still deflected.
	h.src.Set(rc.CommandVector{Throttle: -1, Roll: 0.3, Aux: -1})
	h.runRCReads(1)
	for i := 0; i < 50; i++ {
		if !h.tick() {
			if gyro, angle := h.c.stab.Integrals(); gyro != ([3]float64{}) || angle != ([2]float64{}) {
				t.Fatalf("integrals %v / %v with throttle down", gyro, angle)
			}
		}
	}
}

func TestCalibrationGestureResetsIntegral(t *testing.T) {
	h := newHarness(t, rc.Step{Command: rc.CommandIdle, Reads: 1})
	h.runUntil("gyro calibrated", 100_000, func() bool { return h.c.Vehicle().State() == flight.DisarmedReady })

	// Disarmed with throttle mid and a roll demand: the stabilizer still runs.
	h.src.Set(rc.CommandVector{Throttle: 0, Roll: 0.3, Aux: -1})
	h.runRCReads(3)
	gyro, angle := h.c.stab.Integrals()
	if gyro[0] == 0 || angle[0] == 0 {
		t.Fatalf("roll integrals %v / %v did not accumulate", gyro, angle)
	}

	// Throttle high, so only the gesture can clear the accumulators.
	h.src.Set(rc.CommandCalibrateAccel)
	target := h.rx.updates + 1
	for i := 0; h.rx.updates < target; i++ {
		if i == 100_000 {
			t.Fatal("no RC read")
		}
		imuRan := h.tick()
		if h.rx.updates < target {
			continue
		}
		gyro, angle := h.c.stab.Integrals()
		if !imuRan && (gyro != ([3]float64{}) || angle != ([2]float64{})) {
			t.Fatalf("integrals %v / %v after calibration gesture", gyro, angle)
		}
		// Level and no roll demand: an IMU tick in the same iteration adds nothing on roll.
		if gyro[0] != 0 || angle[0] != 0 {
			t.Fatalf("roll integrals %v / %v after calibration gesture", gyro[0], angle[0])
		}
	}
	if n := h.c.Vehicle().CalibratingAccel(); n == 0 {
		t.Error("accel calibration did not start")
	}
	if h.c.Vehicle().State() != flight.DisarmedReady {
		t.Errorf("state = %s after accel calibration gesture", h.c.Vehicle().State())
	}
}

func TestAuxTasksRoundRobinOutsideRCIterations(t *testing.T) {
	h := newHarness(t, rc.Step{Command: rc.CommandIdle, Reads: 1})

	for i := 0; i < 2000; i++ {
		before := len(h.auxLog)
		rcBefore := h.rx.updates
		h.tick()
		ran := len(h.auxLog) - before
		if ran > 1 {
			t.Fatalf("iteration %d ran %d aux tasks", i, ran)
		}
		if h.rx.updates != rcBefore && ran != 0 {
			t.Fatalf("iteration %d ran an aux task alongside the RC task", i)
		}
	}
	if len(h.auxLog) < 100 {
		t.Fatalf("only %d aux calls", len(h.auxLog))
	}
	for i, name := range h.auxLog {
		want := "a"
		if i%2 == 1 {
			want = "b"
		}
		if name != want {
			t.Fatalf("aux call %d = %s, want %s", i, name, want)
		}
	}
}

func TestReceiverReadyForcesRCBranch(t *testing.T) {
	h := newHarness(t, rc.Step{Command: rc.CommandIdle, Reads: 1})
	h.rx.ready = true

	for i := 0; i < 200; i++ {
		before := h.rx.updates
		h.tick()
		if h.rx.updates != before+1 {
			t.Fatalf("iteration %d: receiver not updated while ready", i)
		}
	}
	if len(h.auxLog) != 0 {
		t.Errorf("aux tasks ran %d times while the receiver was always ready", len(h.auxLog))
	}
}

func TestAuxErrorsDoNotStopTheLoop(t *testing.T) {
	h := newHarness(t, rc.Step{Command: rc.CommandIdle, Reads: 1})
	h.c.deps.Aux[0].(*recordingAux).err = errors.New("i2c timeout")

	ticks := 0
	for i := 0; i < 400; i++ {
		if h.tick() {
			ticks++
		}
	}
	if ticks < 50 {
		t.Errorf("only %d IMU ticks with a failing aux task", ticks)
	}
}

func TestTelemetrySnapshot(t *testing.T) {
	h := armed(t)
	h.runUntilIMU(100)

	s, ok := h.store.Snapshot()
	if !ok {
		t.Fatal("no telemetry")
	}
	if !s.Armed || s.State != "ARMED" {
		t.Errorf("status = %s armed=%v", s.State, s.Armed)
	}
	if s.LoopMicros < testInfo.LoopTimeMicros || s.LoopMicros > testInfo.LoopTimeMicros+step+100 {
		t.Errorf("LoopMicros = %d, want about %d", s.LoopMicros, testInfo.LoopTimeMicros)
	}
	if len(s.Motors) != 4 {
		t.Errorf("motors = %v", s.Motors)
	}
}

func TestRunStopsMotorsOnCancel(t *testing.T) {
	h := armed(t)
	h.src.Set(rc.CommandVector{Throttle: 0.5, Aux: -1})
	h.runRCReads(1)
	h.runUntilIMU(100)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.c.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}
	for i, m := range h.sim.Motors() {
		if m != 0 {
			t.Errorf("motor %d = %v after Run returned", i, m)
		}
	}
}

func TestInitRejectsZeroLoopTime(t *testing.T) {
	sim := board.NewSim(board.Info{Acc1G: 4096}, 0)
	c := New(testConfig(), Deps{
		Board:    sim,
		Receiver: rc.NewReceiver(rc.DefaultConfig(), rc.NewScripted()),
		Mixer:    mixer.NewQuadX(),
	})
	if err := c.Init(); err == nil {
		t.Fatal("expected an error for a zero loop time")
	}
}
