// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
	"github.com/relabs-tech/flight_computer/internal/timing"
)

// screen is satisfied by *ssd1306.Dev.
type screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// DisplayTask shows the vehicle status on a 128x64 OLED. The loop only
// hands over a snapshot; the I2C transfer runs in the drawing goroutine.
type DisplayTask struct {
	dev     screen
	refresh *timing.PeriodicTask
	store   *telemetry.Store
	frames  chan telemetry.Status
	results *mailbox[error]
	err     error
}

// NewDisplayTask refreshes dev every periodMicros of loop time. Start must
// be called for frames to be drawn.
func NewDisplayTask(dev screen, periodMicros uint32, store *telemetry.Store) *DisplayTask {
	return &DisplayTask{
		dev:     dev,
		refresh: timing.NewPeriodicTask(periodMicros),
		store:   store,
		frames:  make(chan telemetry.Status, 1),
		results: newMailbox[error](),
	}
}

// OpenDisplay opens an SSD1306 on an I2C bus ("" for the first one).
func OpenDisplay(busName string) (*ssd1306.Dev, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("display: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("display: open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("display: init: %w", err)
	}
	log.Printf("display: initialized on %s", bus)
	return dev, bus, nil
}

// Start shows the splash screen and runs the drawing goroutine until ctx is
// cancelled.
func (t *DisplayTask) Start(ctx context.Context) {
	if err := t.dev.Draw(t.dev.Bounds(), renderLines(splashLines), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-t.frames:
				img := renderLines(statusLines(s))
				t.results.Put(t.dev.Draw(t.dev.Bounds(), img, image.Point{}))
			}
		}
	}()
}

func (t *DisplayTask) Name() string { return "display" }

// Perform collects the last draw result and, when a refresh is due, offers
// the newest snapshot to the drawing goroutine. A busy display skips the
// frame.
func (t *DisplayTask) Perform(now uint32) error {
	if err, ok := t.results.Take(); ok {
		t.err = err
	}
	if !t.refresh.CheckAndUpdate(now) {
		return t.err
	}
	s, ok := t.store.Snapshot()
	if !ok {
		return t.err
	}
	select {
	case t.frames <- s:
	default:
	}
	return t.err
}

var splashLines = []string{"", " Flight Pi", "  Hello pilot"}

// statusLines lays out a snapshot as four 18-column rows.
func statusLines(s telemetry.Status) []string {
	deg := s.Attitude.Degrees()
	lines := []string{
		fmt.Sprintf("%-8s %5dus", shortState(s), s.LoopMicros),
		fmt.Sprintf("R%6.1f P%6.1f", deg.Roll, deg.Pitch),
		fmt.Sprintf("Y%6.1f T%5.2f", deg.Yaw, s.Demands.Throttle),
	}
	switch {
	case s.GPS != nil && s.GPS.Valid():
		lines = append(lines, fmt.Sprintf("%.4f %.4f", s.GPS.Latitude, s.GPS.Longitude))
	case s.Env != nil:
		lines = append(lines, fmt.Sprintf("Alt: %.1fm", s.Env.AltitudeM))
	default:
		lines = append(lines, "No fix")
	}
	return lines
}

func shortState(s telemetry.Status) string {
	switch {
	case s.Armed:
		return "ARMED"
	case s.CalibratingGyro > 0:
		return "CAL GYRO"
	case s.CalibratingAccel > 0:
		return "CAL ACC"
	case s.State == flight.DisarmedReady.String():
		return "READY"
	default:
		return "NOT RDY"
	}
}

// renderLines draws text rows on a blank 128x64 frame.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}
