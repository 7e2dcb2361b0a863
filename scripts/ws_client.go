// Package main runs a demo WebSocket client that submits an async solve and
// streams its progress.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// demoInstance scatters cities on a grid with one depot and random tasks.
func demoInstance(cities, tasks int) map[string]any {
	rng := rand.New(rand.NewSource(42))
	cs := []map[string]any{}
	for i := 0; i < cities; i++ {
		cs = append(cs, map[string]any{"name": fmt.Sprintf("c%02d", i), "x": rng.Float64() * 100, "y": rng.Float64() * 100})
	}
	ts := []map[string]any{}
	for i := 0; i < tasks; i++ {
		ts = append(ts, map[string]any{
			"id":       fmt.Sprintf("t%02d", i),
			"pickup":   fmt.Sprintf("c%02d", rng.Intn(cities)),
			"delivery": fmt.Sprintf("c%02d", rng.Intn(cities)),
			"weight":   1 + rng.Intn(5),
		})
	}
	return map[string]any{
		"network": map[string]any{"cities": cs},
		"vehicles": []map[string]any{
			{"id": "van", "capacity": 8, "costPerKm": 1.0, "start": "c00"},
			{"id": "truck", "capacity": 20, "costPerKm": 1.6, "start": "c00"},
		},
		"tasks":  ts,
		"solver": map[string]any{"strategy": "anneal", "maxIterations": 20000, "timeBudgetMs": 5000},
		"async":  true,
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	body, _ := json.Marshal(demoInstance(20, 15))
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var solveResp struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&solveResp); err != nil {
		log.Fatal(err)
	}
	if solveResp.RunID == "" {
		log.Fatalf("no run id returned (status %d)", resp.StatusCode)
	}
	log.Printf("Run ID: %s", solveResp.RunID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + solveResp.RunID + "/stream"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	select {
	case <-time.After(30 * time.Second):
	case <-done:
	}
}
