package server

import (
	"context"
	"net/http"
	"time"

	"marketnexus/internal/engine"
	"marketnexus/internal/market"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const tickerPollInterval = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The ticker stream is public read-only data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// tickerUpdate is the message pushed to every websocket subscriber.
type tickerUpdate struct {
	Type      string               `json:"type"`
	Indices   []market.MarketIndex `json:"indices"`
	Timestamp int64                `json:"timestamp"`
}

// Hub fans the periodically refreshed index overview out to websocket
// clients. Slow consumers are disconnected instead of blocking the loop.
type Hub struct {
	engine *engine.Engine
	logger *zap.Logger

	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan tickerUpdate

	latest *tickerUpdate
}

func newHub(eng *engine.Engine, logger *zap.Logger) *Hub {
	return &Hub{
		engine:     eng,
		logger:     logger,
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan tickerUpdate, 1),
	}
}

// run drives the hub loop and the poll loop until ctx is cancelled.
func (h *Hub) run(ctx context.Context) {
	go h.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			// New subscribers get the last snapshot immediately.
			if h.latest != nil {
				client.send <- *h.latest
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case update := <-h.broadcast:
			h.latest = &update
			for client := range h.clients {
				select {
				case client.send <- update:
				default:
					// Client too slow, disconnect to keep the loop moving.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

func (h *Hub) poll(ctx context.Context) {
	ticker := time.NewTicker(tickerPollInterval)
	defer ticker.Stop()

	for {
		overview, err := h.engine.GetMarketIndices(ctx)
		if err != nil {
			h.logger.Warn("ticker poll failed", zap.Error(err))
		} else {
			h.broadcast <- tickerUpdate{
				Type:      "indices",
				Indices:   overview.Indices,
				Timestamp: time.Now().Unix(),
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Hub) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan tickerUpdate, 8),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
