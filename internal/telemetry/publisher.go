// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttPublisher is the part of mqtt.Client the publisher uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends the latest Status to an MQTT topic at a fixed rate.
type Publisher struct {
	client   mqttPublisher
	store    *Store
	topic    string
	interval time.Duration
	lastSeq  uint64
}

// Connect dials the broker the way every tool in this repo does.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", broker, token.Error())
	}
	log.Printf("telemetry: connected to MQTT broker at %s", broker)
	return client, nil
}

// NewPublisher publishes snapshots of store to topic every interval.
func NewPublisher(client mqttPublisher, store *Store, topic string, interval time.Duration) *Publisher {
	return &Publisher{
		client:   client,
		store:    store,
		topic:    topic,
		interval: interval,
	}
}

// Run publishes until ctx is cancelled. Publish failures are logged and
// never stop the loop.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.PublishLatest(); err != nil {
				log.Printf("telemetry: %v", err)
			}
		}
	}
}

// PublishLatest publishes the current snapshot if it is newer than the one
// published last.
func (p *Publisher) PublishLatest() error {
	s, ok := p.store.Snapshot()
	if !ok || s.Seq == p.lastSeq {
		return nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("status marshal: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", p.topic, token.Error())
	}
	p.lastSeq = s.Seq
	return nil
}
