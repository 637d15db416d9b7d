package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades laborer connections and binds them to the registry
type WSHandler struct {
	base
	registry *realtime.Registry
	cfg      WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler instance
func NewWSHandler(deps *Dependencies) *WSHandler {
	cfg := deps.WebSocket
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RegisterTimeout <= 0 {
		cfg.RegisterTimeout = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}

	h := &WSHandler{
		base:     newBase(deps),
		registry: deps.Registry,
		cfg:      cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.cfg.AllowedOrigins, origin)
}

// Serve handles GET /ws
// The client must send {"type":"register","userId":...} before it receives
// offers. A later register on the same connection rebinds it.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Debug("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ch := realtime.NewWSChannel(conn, h.cfg.WriteTimeout)
	defer func() {
		if identity, ok := h.registry.Unregister(ch); ok {
			h.logger.Info("Laborer disconnected", slog.String("laborer_id", identity))
		}
		ch.Close()
	}()

	// socket deadlines are wall-clock instants; the injected clock never applies
	conn.SetReadLimit(h.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.cfg.RegisterTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	registered := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		if registered {
			conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		}

		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			ch.Send(realtime.Message{Type: realtime.TypeError, Error: "malformed message"})
			continue
		}

		switch msg.Type {
		case realtime.TypeRegister:
			if msg.UserID == "" {
				ch.Send(realtime.Message{Type: realtime.TypeError, Error: "userId is required"})
				continue
			}
			if registered {
				h.registry.Unregister(ch)
			}
			h.registry.Register(msg.UserID, ch)
			if !registered {
				registered = true
				conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
				go ch.Keepalive(h.cfg.PingInterval)
			}
			h.logger.Info("Laborer connected", slog.String("laborer_id", msg.UserID))
			ch.Send(realtime.Message{Type: realtime.TypeRegistered, UserID: msg.UserID})
		case realtime.TypePing:
			ch.Send(realtime.Message{Type: realtime.TypePong})
		default:
			ch.Send(realtime.Message{Type: realtime.TypeError, Error: "unknown message type"})
		}
	}
}
