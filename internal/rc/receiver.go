// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rc

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/flight_computer/internal/control"
)

// ErrNoSignal is returned by a Source that has not decoded a frame yet.
var ErrNoSignal = errors.New("rc: no signal")

// Source is anything that can provide raw normalized channels: a serial
// receiver, a scripted sequence for the simulator, etc.
type Source interface {
	ReadChannels() (CommandVector, error)
}

// readySource is implemented by sources that can signal a fresh frame
// independently of the RC task period.
type readySource interface {
	Ready() bool
}

// Receiver turns a Source into the command snapshot consumed by the control
// loop. It keeps the last good snapshot when the source fails.
type Receiver struct {
	cfg Config
	src Source

	command    CommandVector
	sticks     Sticks
	haveSticks bool
	changed    bool
}

// NewReceiver wraps src with the given thresholds.
func NewReceiver(cfg Config, src Source) *Receiver {
	r := &Receiver{cfg: cfg, src: src}
	r.Init()
	return r
}

// Init puts the receiver in the idle position (throttle down, sticks
// centered, aux neutral) until the first frame arrives.
func (r *Receiver) Init() {
	r.command = CommandVector{Throttle: -1, Aux: -1}
	r.sticks = r.cfg.Classify(r.command)
	r.haveSticks = false
	r.changed = false
}

// Update pulls a fresh snapshot from the source. On error the previous
// snapshot is kept and Changed reports false.
func (r *Receiver) Update() error {
	cmd, err := r.src.ReadChannels()
	if err != nil {
		r.changed = false
		return fmt.Errorf("receiver update: %w", err)
	}

	r.command = cmd.Clamped()
	sticks := r.cfg.Classify(r.command)
	r.changed = !r.haveSticks || sticks != r.sticks
	r.sticks = sticks
	r.haveSticks = true
	return nil
}

// Ready reports a frame that arrived outside the RC task cadence.
func (r *Receiver) Ready() bool {
	if rs, ok := r.src.(readySource); ok {
		return rs.Ready()
	}
	return false
}

// Command returns the latest snapshot.
func (r *Receiver) Command() CommandVector {
	return r.command
}

// Sticks returns the stick classification of the latest snapshot.
func (r *Receiver) Sticks() Sticks {
	return r.sticks
}

// Changed reports whether the stick classification of the latest snapshot
// differs from the one before it.
func (r *Receiver) Changed() bool {
	return r.changed
}

// AuxState returns the auxiliary switch position (0, 1 or 2).
func (r *Receiver) AuxState() int {
	return r.cfg.AuxState(r.command.Aux)
}

// ThrottleIsDown reports the throttle stick in its LOW position.
func (r *Receiver) ThrottleIsDown() bool {
	return r.sticks.Throttle == StickLow
}

// Demands returns the stabilizer demands for the latest snapshot.
func (r *Receiver) Demands() control.Demands {
	return r.cfg.Demands(r.command)
}
