// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

// mailbox hands the newest value from a device goroutine to the control
// loop. Put never blocks and replaces an unread value; Take never blocks.
type mailbox[T any] struct {
	ch chan T
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ch: make(chan T, 1)}
}

// Put is called from a single producer goroutine.
func (m *mailbox[T]) Put(v T) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		// Full: drop the stale value and retry.
		select {
		case <-m.ch:
		default:
		}
	}
}

func (m *mailbox[T]) Take() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// reading is one device result.
type reading[T any] struct {
	value T
	err   error
}
