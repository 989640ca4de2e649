package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub broadcasts events as JSON to websocket clients and turns a client's
// {"stop": true} message into a stop request.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex

	stop atomic.Bool
}

type envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

type control struct {
	Stop bool `json:"stop"`
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP upgrades the request and reads control messages until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()
	logrus.Debugf("progress client connected from %s", r.RemoteAddr)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg control
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Stop {
			logrus.Infof("stop requested by %s", r.RemoteAddr)
			h.stop.Store(true)
		}
	}
}

func (h *Hub) Report(e Event) {
	data, err := json.Marshal(envelope{Type: Kind(e), Data: e})
	if err != nil {
		logrus.Warnf("encoding %s event: %v", Kind(e), err)
		return
	}

	var failed []*websocket.Conn
	h.mu.RLock()
	for conn, mu := range h.clients {
		mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mu.Unlock()
		if err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			delete(h.clients, conn)
			conn.Close()
		}
		h.mu.Unlock()
	}
}

func (h *Hub) ShouldStop(int) bool { return h.stop.Load() }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
