// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rc

// Step holds one command for a number of reads.
type Step struct {
	Command CommandVector
	Reads   int
}

// Scripted is a deterministic Source. It plays its steps in order and then
// keeps returning the last command.
type Scripted struct {
	steps []Step
	idx   int
	reads int
}

// NewScripted returns a source that plays steps in order.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Set replaces the script with a single held command.
func (s *Scripted) Set(cmd CommandVector) {
	s.steps = []Step{{Command: cmd, Reads: 1}}
	s.idx = 0
	s.reads = 0
}

// Done reports that every step has been played.
func (s *Scripted) Done() bool {
	return s.idx >= len(s.steps)-1 && (len(s.steps) == 0 || s.reads >= s.steps[len(s.steps)-1].Reads)
}

func (s *Scripted) ReadChannels() (CommandVector, error) {
	if len(s.steps) == 0 {
		return CommandVector{}, ErrNoSignal
	}

	step := s.steps[s.idx]
	s.reads++
	if s.reads >= step.Reads && s.idx < len(s.steps)-1 {
		s.idx++
		s.reads = 0
	}
	return step.Command, nil
}

// Common stick commands for scripts and tests.
var (
	CommandIdle           = CommandVector{Throttle: -1, Aux: -1}
	CommandArm            = CommandVector{Throttle: -1, Yaw: 1, Aux: -1}
	CommandDisarm         = CommandVector{Throttle: -1, Yaw: -1, Aux: -1}
	CommandCalibrateGyro  = CommandVector{Throttle: -1, Yaw: -1, Pitch: -1, Aux: -1}
	CommandCalibrateAccel = CommandVector{Throttle: 1, Yaw: -1, Pitch: -1, Aux: -1}
)
