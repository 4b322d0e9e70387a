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
	"github.com/relabs-tech/flight_computer/internal/gps"
	"github.com/relabs-tech/flight_computer/internal/mixer"
	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

// RunFlight flies the Raspberry Pi board until SIGINT or SIGTERM.
func RunFlight() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.MotorPins) != len(mixer.QuadX) {
		return fmt.Errorf("flight: %d motor pins configured, quad-X needs %d", len(cfg.MotorPins), len(mixer.QuadX))
	}
	if cfg.RCSerialPort == "" {
		return errors.New("flight: RC_SERIAL_PORT is required")
	}

	src, err := rc.OpenIBus(cfg.RCSerialPort)
	if err != nil {
		return err
	}
	defer src.Close()

	pi := board.NewPi(cfg.PiConfig())
	defer func() {
		if err := pi.Close(); err != nil {
			log.Printf("flight: %v", err)
		}
	}()

	store := telemetry.NewStore()
	aux, closeAux := startAuxTasks(ctx, cfg, store)
	defer closeAux()

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDFlight)
	if err != nil {
		// Flying without a ground link is allowed.
		log.Printf("flight: telemetry disabled: %v", err)
	} else {
		defer client.Disconnect(250)
		pub := telemetry.NewPublisher(client, store, cfg.TopicStatus,
			time.Duration(cfg.TelemetryInterval)*time.Millisecond)
		go pub.Run(ctx)
	}

	c := controller.New(cfg.ControllerConfig(), controller.Deps{
		Board:     pi,
		Receiver:  rc.NewReceiver(cfg.RCConfig(), src),
		Mixer:     mixer.NewQuadX(),
		Telemetry: store,
		Aux:       aux,
	})
	if err := c.Init(); err != nil {
		return err
	}

	log.Println("flight: control loop running")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("flight: shutting down")
	return nil
}

// startAuxTasks opens the optional peripherals. A peripheral that fails to
// open is logged and left out; the vehicle flies without it. The returned
// func releases the devices once the loop has stopped.
func startAuxTasks(ctx context.Context, cfg *config.Config, store *telemetry.Store) ([]controller.AuxTask, func()) {
	var (
		tasks   []controller.AuxTask
		closers []func()
	)

	if cfg.DisplayEnabled {
		dev, bus, err := OpenDisplay(cfg.DisplayI2CBus)
		if err != nil {
			log.Printf("flight: %v", err)
		} else {
			closers = append(closers, func() {
				if err := dev.Halt(); err != nil {
					log.Printf("display: halt: %v", err)
				}
				bus.Close()
			})
			t := NewDisplayTask(dev, uint32(cfg.DisplayUpdateInterval)*1000, store)
			t.Start(ctx)
			tasks = append(tasks, t)
		}
	}

	if cfg.BaroSPIDevice != "" {
		dev, port, err := OpenBaro(cfg.BaroSPIDevice)
		if err != nil {
			log.Printf("flight: %v", err)
		} else {
			closers = append(closers, func() {
				if err := dev.Halt(); err != nil {
					log.Printf("baro: halt: %v", err)
				}
				port.Close()
			})
			t := NewBaroTask(dev, time.Duration(cfg.BaroInterval)*time.Millisecond, store)
			t.Start(ctx)
			tasks = append(tasks, t)
		}
	}

	if cfg.GPSSerialPort != "" {
		port, err := gps.Open(cfg.GPSSerialPort, uint(cfg.GPSBaudRate))
		if err != nil {
			log.Printf("flight: %v", err)
		} else {
			log.Printf("gps: serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
			t := NewGPSTask(port, store)
			t.Start(ctx)
			tasks = append(tasks, t)
		}
	}

	log.Printf("flight: %d aux tasks", len(tasks))
	return tasks, func() {
		for _, c := range closers {
			c()
		}
	}
}
