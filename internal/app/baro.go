// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/flight_computer/internal/env"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// envSensor is satisfied by *bmxx80.Dev.
type envSensor interface {
	Sense(e *physic.Env) error
}

// BaroTask samples the barometer in its own goroutine and publishes the
// readings into the telemetry store from the control loop.
type BaroTask struct {
	dev      envSensor
	interval time.Duration
	store    *telemetry.Store
	box      *mailbox[reading[env.Sample]]
	err      error
}

// NewBaroTask returns a task reading dev every interval. Start must be
// called for readings to flow.
func NewBaroTask(dev envSensor, interval time.Duration, store *telemetry.Store) *BaroTask {
	return &BaroTask{
		dev:      dev,
		interval: interval,
		store:    store,
		box:      newMailbox[reading[env.Sample]](),
	}
}

// OpenBaro opens a BMP280/BME280 on an SPI device.
func OpenBaro(spiDevice string) (*bmxx80.Dev, spi.PortCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("baro: periph host init: %w", err)
	}
	port, err := spireg.Open(spiDevice)
	if err != nil {
		return nil, nil, fmt.Errorf("baro: SPI open %s: %w", spiDevice, err)
	}
	dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("baro: init: %w", err)
	}
	log.Printf("baro: %s on %s", dev, spiDevice)
	return dev, port, nil
}

// Start runs the sampling goroutine until ctx is cancelled.
func (t *BaroTask) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var e physic.Env
			if err := t.dev.Sense(&e); err != nil {
				t.box.Put(reading[env.Sample]{err: fmt.Errorf("baro: sense: %w", err)})
				continue
			}
			t.box.Put(reading[env.Sample]{value: env.FromPhysic(e)})
		}
	}()
}

func (t *BaroTask) Name() string { return "baro" }

// Perform moves the newest reading into the store. The last sensor error is
// reported until a good reading arrives.
func (t *BaroTask) Perform(uint32) error {
	r, ok := t.box.Take()
	if !ok {
		return t.err
	}
	t.err = r.err
	if r.err == nil {
		t.store.SetEnv(r.value)
	}
	return t.err
}
