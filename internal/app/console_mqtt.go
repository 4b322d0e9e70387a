// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

// RunConsoleMQTT prints every status published by the flight computer.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s telemetry.Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		fmt.Println(formatStatus(s))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStatus)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// formatStatus renders one status line, angles in degrees.
func formatStatus(s telemetry.Status) string {
	deg := s.Attitude.Degrees()

	var b strings.Builder
	fmt.Fprintf(&b, "[%-21s] ROLL=%6.2f  PITCH=%6.2f  YAW=%7.2f  THR=%4.2f  LOOP=%4dus  MOTORS=",
		s.State, deg.Roll, deg.Pitch, deg.Yaw, s.Demands.Throttle, s.LoopMicros)
	for i, m := range s.Motors {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%4.2f", m)
	}
	if s.CalibratingGyro > 0 || s.CalibratingAccel > 0 {
		fmt.Fprintf(&b, "  CAL gyro=%d acc=%d", s.CalibratingGyro, s.CalibratingAccel)
	}
	if s.Env != nil {
		fmt.Fprintf(&b, "  ALT=%.1fm", s.Env.AltitudeM)
	}
	if s.GPS != nil && s.GPS.Valid() {
		fmt.Fprintf(&b, "  GPS=%.6f,%.6f", s.GPS.Latitude, s.GPS.Longitude)
	}
	return b.String()
}
