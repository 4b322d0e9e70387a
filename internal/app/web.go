// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

//go:embed static
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// statusHub keeps the latest status received over MQTT and fans it out to
// websocket clients.
type statusHub struct {
	mu      sync.RWMutex
	last    telemetry.Status
	have    bool
	clients map[chan telemetry.Status]struct{}
}

func newStatusHub() *statusHub {
	return &statusHub{clients: make(map[chan telemetry.Status]struct{})}
}

// publish decodes a status payload and forwards it. Slow clients miss
// updates rather than stall the MQTT callback.
func (h *statusHub) publish(payload []byte) error {
	var s telemetry.Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("status unmarshal: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = s
	h.have = true
	for ch := range h.clients {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

func (h *statusHub) subscribe() chan telemetry.Status {
	ch := make(chan telemetry.Status, 4)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.have {
		ch <- h.last
	}
	h.mu.Unlock()
	return ch
}

func (h *statusHub) unsubscribe(ch chan telemetry.Status) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// handleStatus serves the latest status as JSON.
func (h *statusHub) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.last); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// handleStatusWS streams every status to a websocket client until it
// disconnects.
func (h *statusHub) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// The client never sends; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case s := <-ch:
			if err := conn.WriteJSON(s); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

func (h *statusHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/ws/status", h.handleStatusWS)
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err) // embedded at build time
	}
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}

// RunWeb serves the flight status received over MQTT.
func RunWeb() error {
	cfg := config.Get()
	hub := newStatusHub()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := hub.publish(msg.Payload()); err != nil {
			log.Printf("web: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicStatus)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, hub.routes())
}
