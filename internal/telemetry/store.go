// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"sync/atomic"

	"github.com/relabs-tech/flight_computer/internal/env"
	"github.com/relabs-tech/flight_computer/internal/gps"
)

// Store is a lock-free single-writer handoff. The control loop stores
// copies; readers on other goroutines load them.
type Store struct {
	status atomic.Pointer[Status]
	env    atomic.Pointer[env.Sample]
	fix    atomic.Pointer[gps.Fix]
	seq    uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Update stores a copy of s. It must only be called from the control loop.
func (st *Store) Update(s Status) {
	st.seq++
	s.Seq = st.seq
	s.Motors = append([]float64(nil), s.Motors...)
	st.status.Store(&s)
}

// SetEnv records the latest barometer sample.
func (st *Store) SetEnv(e env.Sample) {
	st.env.Store(&e)
}

// SetFix records the latest GPS fix.
func (st *Store) SetFix(f gps.Fix) {
	st.fix.Store(&f)
}

// Snapshot returns the latest status with the auxiliary readings attached.
// ok is false until the first Update.
func (st *Store) Snapshot() (s Status, ok bool) {
	p := st.status.Load()
	if p == nil {
		return Status{}, false
	}
	s = *p
	s.Env = st.env.Load()
	s.GPS = st.fix.Load()
	return s, true
}
