// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Open opens the GPS UART.
func Open(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", port, err)
	}
	return p, nil
}

// Apply folds one parsed sentence into the current fix. It reports whether
// the sentence completed a fix worth publishing (RMC).
func (f *Fix) Apply(sentence nmea.Sentence) bool {
	switch m := sentence.(type) {
	case nmea.RMC:
		f.Time = m.Time.String()
		f.Date = m.Date.String()
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.SpeedKnots = m.Speed
		f.CourseDeg = m.Course
		f.Validity = m.Validity
		return true
	case nmea.GGA:
		f.AltitudeM = m.Altitude
		f.Quality = m.FixQuality
		f.Satellites = m.NumSatellites
	}
	return false
}

// ReadFixes reads NMEA lines from r and calls fn with every completed fix
// until r fails. Malformed sentences are skipped.
func ReadFixes(r io.Reader, fn func(Fix)) error {
	reader := bufio.NewReader(r)
	var current Fix
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("gps: read: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}
		if current.Apply(sentence) {
			fn(current)
		}
	}
}
