// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package controller runs the flight control loop: it interleaves the RC
// task, the IMU task and the auxiliary tasks, feeds the flight state
// machine and drives the stabilizer and the mixer.
package controller

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/control"
	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/stabilizer"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
	"github.com/relabs-tech/flight_computer/internal/timing"
)

// Board is the hardware the loop runs on.
type Board interface {
	Init() (board.Info, error)
	Micros() uint32
	ReadIMU() (imu.Sample, error)
	WriteMotors(outputs []float64) error
	LEDRed(on bool)
	LEDGreen(on bool)
	DelayMillis(ms uint32)
}

// Receiver supplies pilot commands.
type Receiver interface {
	Init()
	Update() error
	Ready() bool
	Command() rc.CommandVector
	Sticks() rc.Sticks
	Changed() bool
	AuxState() int
	ThrottleIsDown() bool
	Demands() control.Demands
}

// IMU estimates attitude and body rates from raw samples.
type IMU interface {
	Update(s imu.Sample, now uint32, armed bool, calibratingAcc, calibratingGyro uint16)
	Angles() [3]float64
	Rates() [3]float64
}

// Mixer maps demands to motor outputs.
type Mixer interface {
	Update(armed bool, d control.Demands) []float64
}

// Telemetry receives a snapshot on every IMU tick. It must not block.
type Telemetry interface {
	Update(s telemetry.Status)
}

// AuxTask is an auxiliary duty (display, barometer, GPS) run in iterations
// that have no RC work. Perform must not block.
type AuxTask interface {
	Name() string
	Perform(now uint32) error
}

// Config holds the loop tuning.
type Config struct {
	Stabilizer stabilizer.Config

	RCPeriodMicros         uint32
	AccelCalibrationMillis uint32
	AccelWindowMicros      uint32
	SmallAngle             float64 // rad

	// IdleSleep is slept by Run when an iteration had nothing due. Zero
	// spins, which is what the flight board wants.
	IdleSleep time.Duration
}

// DefaultConfig returns the loop tuning of the reference quadcopter.
func DefaultConfig() Config {
	return Config{
		Stabilizer:             stabilizer.DefaultConfig(),
		RCPeriodMicros:         20_000,
		AccelCalibrationMillis: 500,
		AccelWindowMicros:      500_000,
		SmallAngle:             25 * math.Pi / 180,
	}
}

// Startup LED flash.
const (
	startupDelayMillis = 100
	startupFlashes     = 10
	flashMillis        = 50
)

// Deps are the collaborators of the loop. NewIMU may be nil, in which case
// the complementary-filter estimator is used.
type Deps struct {
	Board     Board
	Receiver  Receiver
	Mixer     Mixer
	Telemetry Telemetry
	Aux       []AuxTask
	NewIMU    func(board.Info) IMU
}

// Controller owns every piece of mutable flight state. All of it is
// touched only from the goroutine calling Update.
type Controller struct {
	cfg  Config
	deps Deps

	info    board.Info
	imu     IMU
	stab    *stabilizer.Stabilizer
	vehicle *flight.Vehicle

	imuTask *timing.PeriodicTask
	rcTask  *timing.PeriodicTask

	now        uint32
	lastIMU    uint32
	loopMicros uint32
	taskOrder  int

	sample  imu.Sample
	demands control.Demands
	motors  []float64

	ledsWritten bool
	red, green  bool

	rxOK     bool
	auxErrs  map[string]string
	motorErr bool
	imuErr   bool
}

// New returns a controller. Init must be called before Update.
func New(cfg Config, deps Deps) *Controller {
	return &Controller{
		cfg:     cfg,
		deps:    deps,
		auxErrs: make(map[string]string),
	}
}

// Init brings up the board, computes the calibration cycle counts from the
// board's loop period, flashes the LEDs and starts gyro calibration. The
// LED flash is the only delay the controller ever performs.
func (c *Controller) Init() error {
	info, err := c.deps.Board.Init()
	if err != nil {
		return fmt.Errorf("controller: board init: %w", err)
	}
	if info.LoopTimeMicros == 0 {
		return fmt.Errorf("controller: board reports a zero loop time")
	}
	c.info = info

	gyroCycles := uint16(1000 * uint64(info.GyroCalibrationMillis) / uint64(info.LoopTimeMicros))
	accCycles := uint16(1000 * uint64(c.cfg.AccelCalibrationMillis) / uint64(info.LoopTimeMicros))

	if c.deps.NewIMU != nil {
		c.imu = c.deps.NewIMU(info)
	} else {
		c.imu = imu.NewEstimator(imu.Config{Acc1G: info.Acc1G, GyroScale: info.GyroScale})
	}
	c.stab = stabilizer.New(c.cfg.Stabilizer)

	b := c.deps.Board
	b.DelayMillis(startupDelayMillis)
	b.LEDRed(false)
	b.LEDGreen(false)
	for i := 0; i < startupFlashes; i++ {
		b.LEDRed(true)
		b.LEDGreen(true)
		b.DelayMillis(flashMillis)
		b.LEDRed(false)
		b.LEDGreen(false)
		b.DelayMillis(flashMillis)
	}

	c.deps.Receiver.Init()

	c.vehicle = flight.NewVehicle(flight.Config{
		GyroCalibrationCycles:  gyroCycles,
		AccelCalibrationCycles: accCycles,
		SmallAngle:             c.cfg.SmallAngle,
		AccelWindowMicros:      c.cfg.AccelWindowMicros,
	})

	c.imuTask = timing.NewPeriodicTask(info.LoopTimeMicros)
	c.rcTask = timing.NewPeriodicTask(c.cfg.RCPeriodMicros)
	c.now = b.Micros()
	c.lastIMU = c.now

	log.Printf("controller: loop %d us, rc %d us, gyro calibration %d cycles, accel calibration %d cycles, %d aux tasks",
		info.LoopTimeMicros, c.cfg.RCPeriodMicros, gyroCycles, accCycles, len(c.deps.Aux))
	return nil
}

// Update runs one loop iteration and reports whether the IMU task ran.
func (c *Controller) Update() bool {
	rx := c.deps.Receiver

	if c.rcTask.CheckAndUpdate(c.now) || rx.Ready() {
		c.updateReceiver()
	} else if n := len(c.deps.Aux); n > 0 {
		// Never all extras in one iteration, to avoid delay spikes.
		c.performAux(c.deps.Aux[c.taskOrder])
		c.taskOrder = (c.taskOrder + 1) % n
	}

	// Landed: keep the integrators from winding up on the ground.
	if rx.ThrottleIsDown() {
		c.stab.ResetIntegral()
	}

	c.now = c.deps.Board.Micros()
	if !c.imuTask.CheckAndUpdate(c.now) {
		return false
	}
	c.imuTick()
	return true
}

func (c *Controller) updateReceiver() {
	rx := c.deps.Receiver
	if err := rx.Update(); err != nil {
		if c.rxOK {
			log.Printf("controller: %v", err)
		}
		c.rxOK = false
		return
	}
	if !c.rxOK {
		log.Printf("controller: receiver signal acquired")
		c.rxOK = true
	}

	if !rx.Changed() {
		return
	}
	switch c.vehicle.HandleSticks(rx.Sticks(), rx.AuxState()) {
	case flight.EventGyroCalibration, flight.EventAccelCalibration:
		c.stab.ResetIntegral()
	}
}

func (c *Controller) performAux(task AuxTask) {
	err := task.Perform(c.now)
	name := task.Name()
	if err == nil {
		delete(c.auxErrs, name)
		return
	}
	if msg := err.Error(); c.auxErrs[name] != msg {
		log.Printf("controller: aux task %s: %v", name, err)
		c.auxErrs[name] = msg
	}
}

func (c *Controller) imuTick() {
	b := c.deps.Board

	// On a failed read the last good sample is reused.
	sample, err := b.ReadIMU()
	if err != nil {
		if !c.imuErr {
			log.Printf("controller: %v", err)
		}
		c.imuErr = true
	} else {
		c.sample = sample
		c.imuErr = false
	}

	// Measure loop rate just after reading the sensors.
	c.now = b.Micros()
	c.loopMicros = c.now - c.lastIMU
	c.lastIMU = c.now

	armed := c.vehicle.Armed()
	c.imu.Update(c.sample, c.now, armed, c.vehicle.CalibratingAccel(), c.vehicle.CalibratingGyro())

	angles := c.imu.Angles()
	rates := c.imu.Rates()
	c.vehicle.Tick(angles[0], angles[1], c.now)
	armed = c.vehicle.Armed()

	c.writeLEDs()

	c.demands = c.stab.Update(angles, rates, c.deps.Receiver.Demands())
	c.motors = c.deps.Mixer.Update(armed, c.demands)
	if err := b.WriteMotors(c.motors); err != nil {
		if !c.motorErr {
			log.Printf("controller: %v", err)
		}
		c.motorErr = true
	} else {
		c.motorErr = false
	}

	if c.deps.Telemetry != nil {
		c.deps.Telemetry.Update(c.status(angles, rates))
	}
}

// writeLEDs shows green while calibrating or while the accelerometer is
// untrusted (blinking), and red while armed.
func (c *Controller) writeLEDs() {
	v := c.vehicle
	green := v.Calibrating() || (!v.AccelCalibrated() && v.Indicator())
	red := v.Armed()

	if !c.ledsWritten || green != c.green {
		c.deps.Board.LEDGreen(green)
	}
	if !c.ledsWritten || red != c.red {
		c.deps.Board.LEDRed(red)
	}
	c.green, c.red = green, red
	c.ledsWritten = true
}

func (c *Controller) status(angles, rates [3]float64) telemetry.Status {
	v := c.vehicle
	rx := c.deps.Receiver
	return telemetry.Status{
		Micros:           c.now,
		State:            v.State().String(),
		Armed:            v.Armed(),
		AuxState:         rx.AuxState(),
		CalibratingGyro:  v.CalibratingGyro(),
		CalibratingAccel: v.CalibratingAccel(),
		AccelCalibrated:  v.AccelCalibrated(),
		HaveSmallAngle:   v.HaveSmallAngle(),
		Attitude:         orientation.FromAngles(angles),
		Rates:            rates,
		Command:          rx.Command(),
		Demands:          c.demands,
		Motors:           c.motors,
		LoopMicros:       c.loopMicros,
	}
}

// Run loops Update until ctx is cancelled, then stops the motors.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.stopMotors()
			return ctx.Err()
		default:
		}
		if !c.Update() && c.cfg.IdleSleep > 0 {
			time.Sleep(c.cfg.IdleSleep)
		}
	}
}

func (c *Controller) stopMotors() {
	idle := c.deps.Mixer.Update(false, control.Demands{})
	if err := c.deps.Board.WriteMotors(idle); err != nil {
		log.Printf("controller: stopping motors: %v", err)
	}
}

// Vehicle exposes the flight state for read-only inspection from the loop
// goroutine.
func (c *Controller) Vehicle() *flight.Vehicle { return c.vehicle }

// LoopMicros returns the last measured IMU period.
func (c *Controller) LoopMicros() uint32 { return c.loopMicros }
