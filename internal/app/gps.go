// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"log"

	"github.com/relabs-tech/flight_computer/internal/gps"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

// GPSTask decodes NMEA from the receiver in its own goroutine and publishes
// fixes into the telemetry store from the control loop.
type GPSTask struct {
	r     io.ReadCloser
	store *telemetry.Store
	box   *mailbox[reading[gps.Fix]]
	err   error
}

// NewGPSTask returns a task decoding r. Start must be called for fixes to
// flow.
func NewGPSTask(r io.ReadCloser, store *telemetry.Store) *GPSTask {
	return &GPSTask{
		r:     r,
		store: store,
		box:   newMailbox[reading[gps.Fix]](),
	}
}

// Start runs the decoder until the port fails or ctx is cancelled, which
// closes the port.
func (t *GPSTask) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.r.Close()
	}()
	go func() {
		err := gps.ReadFixes(t.r, func(f gps.Fix) {
			t.box.Put(reading[gps.Fix]{value: f})
		})
		if ctx.Err() != nil {
			return
		}
		log.Printf("gps: decoder stopped: %v", err)
		t.box.Put(reading[gps.Fix]{err: err})
	}()
}

func (t *GPSTask) Name() string { return "gps" }

// Perform moves the newest fix into the store. Once the decoder stops its
// error is reported on every call.
func (t *GPSTask) Perform(uint32) error {
	r, ok := t.box.Take()
	if !ok {
		return t.err
	}
	t.err = r.err
	if r.err == nil {
		t.store.SetFix(r.value)
	}
	return t.err
}
