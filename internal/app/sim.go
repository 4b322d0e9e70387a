// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/controller"
	"github.com/relabs-tech/flight_computer/internal/mixer"
	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

// SimScript is a short flight: wait out gyro calibration, arm, hover, roll
// right, land and disarm. Step lengths are in RC reads.
func SimScript(rcPeriodMicros, gyroCalibrationMillis uint32) []rc.Step {
	reads := func(ms uint32) int {
		return max(1, int(ms*1000/rcPeriodMicros))
	}
	hover := rc.CommandVector{Throttle: 0, Aux: -1}
	roll := rc.CommandVector{Throttle: 0, Roll: 0.3, Aux: -1}
	return []rc.Step{
		{Command: rc.CommandIdle, Reads: reads(gyroCalibrationMillis + 1000)},
		{Command: rc.CommandArm, Reads: reads(200)},
		{Command: rc.CommandIdle, Reads: reads(500)},
		{Command: hover, Reads: reads(2000)},
		{Command: roll, Reads: reads(1000)},
		{Command: hover, Reads: reads(1000)},
		{Command: rc.CommandIdle, Reads: reads(500)},
		{Command: rc.CommandDisarm, Reads: reads(200)},
		{Command: rc.CommandIdle, Reads: 1},
	}
}

// newSimController wires a controller to a simulated board flying the
// scripted pilot.
func newSimController(cfg *config.Config, sim *board.Sim, store *telemetry.Store) (*controller.Controller, *rc.Scripted) {
	ccfg := cfg.ControllerConfig()
	ccfg.IdleSleep = cfg.SimIdleSleep()

	src := rc.NewScripted(SimScript(ccfg.RCPeriodMicros, uint32(cfg.GyroCalibrationMS))...)
	c := controller.New(ccfg, controller.Deps{
		Board:     sim,
		Receiver:  rc.NewReceiver(cfg.RCConfig(), src),
		Mixer:     mixer.NewQuadX(),
		Telemetry: store,
	})
	return c, src
}

// RunSim flies the scripted pilot on the simulated board in real time and
// prints the status every printEvery. It returns a second after the
// vehicle has flown and disarmed, or on SIGINT or SIGTERM.
func RunSim(printEvery time.Duration) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sim := board.NewRealtimeSim(cfg.SimInfo())
	store := telemetry.NewStore()
	c, _ := newSimController(cfg, sim, store)

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDFlight)
	if err != nil {
		log.Printf("sim: telemetry disabled: %v", err)
	} else {
		defer client.Disconnect(250)
		pub := telemetry.NewPublisher(client, store, cfg.TopicStatus,
			time.Duration(cfg.TelemetryInterval)*time.Millisecond)
		go pub.Run(ctx)
	}

	if err := c.Init(); err != nil {
		return err
	}

	// Only the loop goroutine touches the controller; the printer watches
	// the store.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sim: %v", err)
		}
	}()

	ticker := time.NewTicker(printEvery)
	defer ticker.Stop()
	var (
		flown      bool
		finishedAt time.Time
	)
	for {
		select {
		case <-done:
			log.Println("sim: shutting down")
			return nil
		case <-ticker.C:
		}
		s, ok := store.Snapshot()
		if !ok {
			continue
		}
		fmt.Println(formatStatus(s))

		if s.Armed {
			flown = true
		} else if flown && finishedAt.IsZero() {
			finishedAt = time.Now()
		}
		if !finishedAt.IsZero() && time.Since(finishedAt) > time.Second {
			cancel()
		}
	}
}
