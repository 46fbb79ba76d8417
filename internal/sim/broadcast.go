package sim

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	go s.writePump()
	return s
}

func (s *subscriber) writePump() {
	defer s.conn.Close()
	for msg := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans telemetry out to every connected /ws client. A client
// that cannot keep up is dropped rather than slowing the simulation down.
type Broadcaster struct {
	log *logrus.Entry

	mu   sync.RWMutex
	subs map[*subscriber]bool
	seq  uint64
}

func NewBroadcaster(log *logrus.Entry) *Broadcaster {
	return &Broadcaster{log: log, subs: make(map[*subscriber]bool)}
}

func (b *Broadcaster) add(conn *websocket.Conn) *subscriber {
	s := newSubscriber(conn)
	b.mu.Lock()
	b.subs[s] = true
	b.mu.Unlock()
	return s
}

func (b *Broadcaster) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[s] {
		delete(b.subs, s)
		close(s.send)
	}
}

// Publish sends one message to all clients.
func (b *Broadcaster) Publish(typ client.MessageType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.WithError(err).Error("marshal telemetry payload")
		return
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	data, err := json.Marshal(client.WSMessage{Type: typ, Seq: seq, Payload: raw})
	if err != nil {
		b.log.WithError(err).Error("marshal telemetry message")
		return
	}

	// Sends happen under the read lock so remove cannot close a channel
	// mid-send.
	var slow []*subscriber
	b.mu.RLock()
	for s := range b.subs {
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		b.log.Warn("telemetry client too slow, disconnecting")
		b.remove(s)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		delete(b.subs, s)
		close(s.send)
	}
}
