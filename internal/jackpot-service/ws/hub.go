package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client serializa as escritas numa conexão (gorilla não aceita escritas concorrentes)
type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// write falha se o cliente não consumir dentro de wait
func (c *client) write(messageType int, b []byte, wait time.Duration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, b)
}

// Hub gerencia conexões WebSocket e assinaturas por jackpot
type Hub struct {
	upgrader  websocket.Upgrader
	log       *zap.Logger
	writeWait time.Duration
	mu        sync.RWMutex
	// jackpotID -> conexões inscritas
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader:  websocket.Upgrader{CheckOrigin: allowOrigin},
		log:       log,
		writeWait: 2 * time.Second,
		subs:      make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode acompanhar vários jackpots
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.JackpotID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.JackpotID]; !ok {
				h.subs[msg.JackpotID] = make(map[*client]struct{})
			}
			h.subs[msg.JackpotID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.unsubscribe(msg.JackpotID, c)
		case "ping":
			b, _ := json.Marshal(map[string]string{"type": "pong"})
			_ = c.write(websocket.TextMessage, b, h.writeWait)
		}
	}

	h.drop(c)
}

// drop remove a conexão de todas as assinaturas
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(jackpotID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[jackpotID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, jackpotID)
		}
	}
}

// Subscribers informa quantas conexões acompanham o jackpot
func (h *Hub) Subscribers(jackpotID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jackpotID])
}

// Broadcast envia a atualização para os clientes inscritos no jackpot
func (h *Hub) Broadcast(update PoolUpdate) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[update.JackpotID]))
	for c := range h.subs[update.JackpotID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range conns {
		if err := c.write(websocket.TextMessage, b, h.writeWait); err != nil {
			// cliente lento ou caído: sai do hub e a leitura em HandleWS encerra
			h.log.Debug("ws client dropped", zap.String("jackpot_id", update.JackpotID), zap.Error(err))
			h.drop(c)
			_ = c.conn.Close()
		}
	}
}
