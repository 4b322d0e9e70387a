// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

func statusPayload(t *testing.T, s telemetry.Status) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestStatusEndpoint(t *testing.T) {
	hub := newStatusHub()
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before data = %d", resp.StatusCode)
	}

	if err := hub.publish(statusPayload(t, telemetry.Status{Seq: 7, State: "ARMED", Armed: true})); err != nil {
		t.Fatal(err)
	}

	resp, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got telemetry.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 7 || !got.Armed {
		t.Errorf("status = %+v", got)
	}
}

func TestStatusPageServed(t *testing.T) {
	srv := httptest.NewServer(newStatusHub().routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/api/status", "/ws/status"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("status page does not reference %s", want)
		}
	}
}

func TestPublishRejectsGarbage(t *testing.T) {
	hub := newStatusHub()
	if err := hub.publish([]byte("{not json")); err == nil {
		t.Fatal("expected an error")
	}
	if hub.have {
		t.Error("garbage stored as a status")
	}
}

func TestStatusWebsocketStreams(t *testing.T) {
	hub := newStatusHub()
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	hub.publish(statusPayload(t, telemetry.Status{Seq: 1}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The latest status is sent on connect.
	var s telemetry.Status
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatal(err)
	}
	if s.Seq != 1 {
		t.Fatalf("first message seq = %d", s.Seq)
	}

	hub.publish(statusPayload(t, telemetry.Status{Seq: 2}))
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatal(err)
	}
	if s.Seq != 2 {
		t.Errorf("second message seq = %d", s.Seq)
	}
}
