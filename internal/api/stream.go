package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pdproute/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage follows the graphql-transport-ws envelope: connection_init/ack,
// subscribe, next, complete, ping/pong.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// streamRun handles /v1/runs/{id}/stream. Each subscribe message gets the
// run's progress events as "next" messages and a "complete" after the run
// finishes. A run that already finished yields its final event at once.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, tenant, runID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	subs := map[string]chan Event{}
	var wg sync.WaitGroup
	done := make(chan struct{})
	defer func() {
		close(done)
		for id, ch := range subs {
			s.Broker.Unsubscribe(runID, ch)
			delete(subs, id)
		}
		wg.Wait()
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if _, dup := subs[msg.ID]; dup {
				continue
			}
			ch := s.Broker.Subscribe(runID)
			// The run may have finished before the subscription existed.
			if run, err := s.Store.GetRun(r.Context(), tenant, runID); err == nil && run.Status != model.RunRunning {
				s.Broker.Unsubscribe(runID, ch)
				_ = write(next(msg.ID, finalEvent(run)))
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			subs[msg.ID] = ch
			wg.Add(1)
			go func(id string, c chan Event) {
				defer wg.Done()
				for evt := range c {
					if err := write(next(id, evt)); err != nil {
						return
					}
					if evt.terminal() {
						break
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if ch, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(runID, ch)
				delete(subs, msg.ID)
			}
		}
	}
}

func next(id string, evt Event) wsMessage {
	payload, _ := json.Marshal(map[string]any{"data": map[string]any{"runEvents": evt}})
	return wsMessage{Type: "next", ID: id, Payload: payload}
}

func finalEvent(run model.Run) Event {
	if run.Status == model.RunFailed {
		return Event{Type: EventFailed, Data: map[string]any{"runId": run.ID, "error": run.Error}}
	}
	data := map[string]any{"runId": run.ID, "cost": run.Cost, "initialCost": run.InitialCost}
	if run.Metrics != nil {
		data["stopReason"] = run.Metrics.StopReason
	}
	return Event{Type: EventCompleted, Data: data}
}
