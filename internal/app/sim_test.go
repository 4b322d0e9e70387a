// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"strings"
	"testing"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/rc"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

func TestSimScriptFliesAndLands(t *testing.T) {
	cfg := config.Default()
	sim := board.NewSim(cfg.SimInfo(), 100)
	store := telemetry.NewStore()
	c, src := newSimController(cfg, sim, store)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	var (
		flown   bool
		highest float64
	)
	for i := 0; i < 200_000; i++ {
		sim.Advance(250)
		c.Update()
		if c.Vehicle().Armed() {
			flown = true
			for _, m := range sim.Motors() {
				highest = max(highest, m)
			}
		} else if flown && src.Done() {
			break
		}
	}
	if !flown {
		t.Fatalf("never armed (state %s)", c.Vehicle().State())
	}
	if c.Vehicle().Armed() {
		t.Fatal("still armed at the end of the script")
	}
	if highest < 0.4 {
		t.Errorf("highest motor output %v, want a hover", highest)
	}

	for !c.Update() {
		sim.Advance(250)
	}
	for i, m := range sim.Motors() {
		if m != 0 {
			t.Errorf("motor %d = %v after landing", i, m)
		}
	}

	s, ok := store.Snapshot()
	if !ok || s.Armed {
		t.Fatalf("final status = %+v", s)
	}
	if line := formatStatus(s); !strings.Contains(line, "DISARMED_READY") {
		t.Errorf("status line = %q", line)
	}
}

func TestSimScriptScalesWithRCPeriod(t *testing.T) {
	steps := SimScript(20_000, 3500)
	if steps[0].Command != rc.CommandIdle || steps[0].Reads != 225 {
		t.Errorf("first step = %+v, want idle for 4.5 s of reads", steps[0])
	}
	for i, s := range steps {
		if s.Reads < 1 {
			t.Errorf("step %d has %d reads", i, s.Reads)
		}
	}
	if last := steps[len(steps)-1]; last.Command != rc.CommandIdle {
		t.Errorf("script ends on %+v", last.Command)
	}
}
