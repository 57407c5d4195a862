// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/paddock/event"
	"github.com/gorilla/websocket"
)

const (
	// Outbound queue per connection; a client that falls this far behind is
	// dropped and expected to reconnect and re-fetch
	clientQueueSize = 16

	writeTimeout = 10 * time.Second
)

type BridgeConfig struct {
	EventBus *event.EventBus
	Logger   *slog.Logger
}

// Bridge connects the event bus to WebSocket clients. It registers itself
// on the bus for every live event type and fans each event out to all
// connected clients as a small JSON message carrying the type tag and
// relevant ids. Delivery is best-effort: the message is a cue to re-fetch,
// never a data transport.
type Bridge struct {
	eventBus *event.EventBus
	logger   *slog.Logger
	upgrader websocket.Upgrader
	clients  map[*client]struct{}
	subs     []busSubscription
	mu       sync.Mutex
	closed   bool
}

type busSubscription struct {
	eventType event.EventType
	subId     event.EventSubscriberId
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Bridge{
		eventBus: cfg.EventBus,
		logger:   logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			// The REST layer handles origin policy via CORS config; the
			// live channel carries no data beyond re-fetch cues
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start registers the bridge on the event bus for every live event type
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range event.LifecycleEventTypes() {
		subId := b.eventBus.RegisterSubscriber(eventType, b)
		b.subs = append(
			b.subs,
			busSubscription{eventType: eventType, subId: subId},
		)
	}
}

// Stop unregisters from the event bus and disconnects all clients
func (b *Bridge) Stop() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, sub := range subs {
		b.eventBus.Unsubscribe(sub.eventType, sub.subId)
	}
	// Unsubscribe calls Close, but only for registered subscriptions
	b.Close()
}

// wireMessage is the JSON shape broadcast to clients
type wireMessage struct {
	Type         string                   `json:"type"`
	Infringement *event.InfringementEvent `json:"infringement,omitempty"`
	Session      *event.SessionEvent      `json:"session,omitempty"`
}

// Deliver implements event.Subscriber. It marshals the event into the wire
// message and queues it to every connected client, dropping clients whose
// queues are full.
func (b *Bridge) Deliver(evt event.Event) error {
	msg := wireMessage{
		Type: string(evt.Type),
	}
	switch data := evt.Data.(type) {
	case event.InfringementEvent:
		msg.Infringement = &data
	case event.SessionEvent:
		msg.Session = &data
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		// Leave the subscription in place; only this event is lost
		b.logger.Error(
			"failed to marshal event",
			"type", evt.Type,
			"error", err,
		)
		return nil
	}
	b.mu.Lock()
	var stale []*client
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		delete(b.clients, c)
	}
	b.mu.Unlock()
	for _, c := range stale {
		b.logger.Debug("dropping slow client")
		c.close()
	}
	return nil
}

// Close implements event.Subscriber. Safe to call multiple times.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// ClientCount returns the number of connected clients
func (b *Bridge) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler upgrades an HTTP request to a WebSocket connection and keeps it
// subscribed until the client disconnects
func (b *Bridge) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug(
			"websocket upgrade failed",
			"error", err,
		)
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	b.logger.Debug(
		"client connected",
		"remote", conn.RemoteAddr().String(),
	)
	go c.writeLoop()
	// Read loop detects disconnects; inbound messages are ignored
	go func() {
		defer b.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Bridge) remove(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	c.close()
}

func (c *client) writeLoop() {
	for payload := range c.send {
		//nolint:errcheck
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(
			websocket.TextMessage,
			payload,
		); err != nil {
			break
		}
	}
	c.conn.Close()
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}
