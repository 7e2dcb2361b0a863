package api

import (
    "sync"
)

// Event is one message on a run's progress stream.
type Event struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

// Event types.
const (
    EventProgress  = "run.progress"
    EventCompleted = "run.completed"
    EventFailed    = "run.failed"
)

func (e Event) terminal() bool { return e.Type == EventCompleted || e.Type == EventFailed }

type EventBroker interface {
    Subscribe(runID string) chan Event
    Unsubscribe(runID string, ch chan Event)
    Publish(runID string, evt Event)
}

// Broker is the in-process EventBroker.
type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan Event]struct{} // runID -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan Event {
    ch := make(chan Event, 16)
    b.mu.Lock()
    if b.subs[runID] == nil { b.subs[runID] = map[chan Event]struct{}{} }
    b.subs[runID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan Event) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[runID]
    if _, ok := m[ch]; !ok {
        return
    }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, runID) }
    close(ch)
}

// Publish never blocks: progress events are dropped for slow subscribers,
// terminal events wait for room only while the subscriber drains.
func (b *Broker) Publish(runID string, evt Event) {
    b.mu.Lock()
    defer b.mu.Unlock()
    for ch := range b.subs[runID] {
        select {
        case ch <- evt:
        default:
            if evt.terminal() {
                // make room for the final event
                select { case <-ch: default: }
                select { case ch <- evt: default: }
            }
        }
    }
}
