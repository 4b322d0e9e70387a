// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package timing provides the time gates used to interleave the
// differently-periodic duties of the control loop.
package timing

// PeriodicTask reports when its period has elapsed on a monotonic
// microsecond clock. The clock is a free-running uint32 counter, so all
// arithmetic is modular and survives the wrap every ~71 minutes.
type PeriodicTask struct {
	period uint32
	last   uint32
}

// NewPeriodicTask returns a task armed against time zero.
func NewPeriodicTask(periodMicros uint32) *PeriodicTask {
	t := &PeriodicTask{}
	t.Init(periodMicros)
	return t
}

// Init sets the period and arms the first check against time zero.
func (t *PeriodicTask) Init(periodMicros uint32) {
	t.period = periodMicros
	t.last = 0
}

// Period returns the configured period in microseconds.
func (t *PeriodicTask) Period() uint32 {
	return t.period
}

// LastExecuted returns the reference time of the last consumed due report.
func (t *PeriodicTask) LastExecuted() uint32 {
	return t.last
}

// Check reports whether the period has elapsed without consuming it.
func (t *PeriodicTask) Check(now uint32) bool {
	return now-t.last >= t.period
}

// Update re-arms the task against now.
func (t *PeriodicTask) Update(now uint32) {
	t.last = now
}

// CheckAndUpdate reports whether the task is due and, if so, re-arms it
// against now in the same step.
func (t *PeriodicTask) CheckAndUpdate(now uint32) bool {
	if !t.Check(now) {
		return false
	}
	t.last = now
	return true
}
