// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rc

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	serial "github.com/jacobsa/go-serial/serial"
)

// FlySky iBus framing: 0x20 0x40, 14 little-endian channels, then a
// little-endian checksum equal to 0xFFFF minus the sum of all prior bytes.
const (
	ibusHeader1     = 0x20
	ibusHeader2     = 0x40
	IBusChannels    = 14
	ibusFrameSize   = 2 + 2*IBusChannels + 2
	ibusPulseMin    = 1000
	ibusPulseMax    = 2000
	ibusPulseCenter = 1500
)

// Channel order on the wire (AETR plus aux on channel 5).
const (
	ibusRoll = iota
	ibusPitch
	ibusThrottle
	ibusYaw
	ibusAux
)

type ibusState int

const (
	waitingForHeader1 ibusState = iota
	waitingForHeader2
	readingPayload
)

// IBusDecoder is a byte-at-a-time iBus frame parser.
type IBusDecoder struct {
	state ibusState
	buf   [ibusFrameSize]byte
	n     int

	// BadFrames counts frames dropped on checksum mismatch.
	BadFrames int
}

// Feed consumes one byte and returns the channel pulses when it completes a
// valid frame.
func (d *IBusDecoder) Feed(b byte) ([IBusChannels]uint16, bool) {
	var ch [IBusChannels]uint16

	switch d.state {
	case waitingForHeader1:
		if b == ibusHeader1 {
			d.buf[0] = b
			d.state = waitingForHeader2
		}
	case waitingForHeader2:
		if b == ibusHeader2 {
			d.buf[1] = b
			d.n = 2
			d.state = readingPayload
		} else {
			d.state = waitingForHeader1
		}
	case readingPayload:
		d.buf[d.n] = b
		d.n++
		if d.n < ibusFrameSize {
			break
		}
		d.state = waitingForHeader1

		sum := uint16(0xFFFF)
		for _, v := range d.buf[:ibusFrameSize-2] {
			sum -= uint16(v)
		}
		want := uint16(d.buf[ibusFrameSize-2]) | uint16(d.buf[ibusFrameSize-1])<<8
		if sum != want {
			d.BadFrames++
			break
		}
		for i := 0; i < IBusChannels; i++ {
			ch[i] = uint16(d.buf[2+2*i]) | uint16(d.buf[3+2*i])<<8
		}
		return ch, true
	}
	return ch, false
}

// PulseToUnit maps a 1000-2000us pulse onto [-1,+1].
func PulseToUnit(us uint16) float64 {
	return clampUnit(float64(int(us)-ibusPulseCenter) / float64((ibusPulseMax-ibusPulseMin)/2))
}

// CommandFromIBus builds a command vector from decoded iBus channels.
func CommandFromIBus(ch [IBusChannels]uint16) CommandVector {
	return CommandVector{
		Throttle: PulseToUnit(ch[ibusThrottle]),
		Roll:     PulseToUnit(ch[ibusRoll]),
		Pitch:    PulseToUnit(ch[ibusPitch]),
		Yaw:      PulseToUnit(ch[ibusYaw]),
		Aux:      PulseToUnit(ch[ibusAux]),
	}
}

// IBusSource decodes iBus frames from a byte stream in a background
// goroutine and hands the latest command to the control loop.
type IBusSource struct {
	r io.ReadCloser

	mu      sync.Mutex
	latest  CommandVector
	haveCmd bool
	fresh   atomic.Bool
}

// OpenIBus opens the receiver UART at 115200 baud and starts decoding.
func OpenIBus(port string) (*IBusSource, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              115200,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ibus: open %s: %w", port, err)
	}
	log.Printf("ibus: serial port opened on %s at %d baud", opts.PortName, opts.BaudRate)

	return NewIBusSource(p), nil
}

// NewIBusSource starts decoding frames from r.
func NewIBusSource(r io.ReadCloser) *IBusSource {
	s := &IBusSource{r: r}
	go s.readLoop()
	return s
}

func (s *IBusSource) readLoop() {
	var dec IBusDecoder
	br := bufio.NewReader(s.r)

	for {
		b, err := br.ReadByte()
		if err != nil {
			if err != io.EOF {
				log.Printf("ibus: read error: %v", err)
			}
			return
		}
		ch, ok := dec.Feed(b)
		if !ok {
			continue
		}

		cmd := CommandFromIBus(ch)
		s.mu.Lock()
		s.latest = cmd
		s.haveCmd = true
		s.mu.Unlock()
		s.fresh.Store(true)
	}
}

// ReadChannels returns the most recently decoded command.
func (s *IBusSource) ReadChannels() (CommandVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveCmd {
		return CommandVector{}, ErrNoSignal
	}
	return s.latest, nil
}

// Ready reports, once, that a new frame arrived since the last call.
func (s *IBusSource) Ready() bool {
	return s.fresh.CompareAndSwap(true, false)
}

// Close closes the underlying port, which ends the read loop.
func (s *IBusSource) Close() error {
	return s.r.Close()
}
