package server

import (
	"encoding/json"
	"sync"

	"github.com/storypath/checkin/internal/checkin"
)

// Broker is an in-process pub/sub for session notifications, keyed by
// session ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded notifications for
// the given session.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish delivers n to every subscriber of the session. It never blocks.
func (b *Broker) Publish(sessionID string, n checkin.Notification) {
	data, _ := json.Marshal(n)
	b.mu.RLock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Notifier returns a checkin.Notifier that publishes to the session.
func (b *Broker) Notifier(sessionID string) checkin.Notifier {
	return checkin.NotifierFunc(func(n checkin.Notification) {
		b.Publish(sessionID, n)
	})
}
