// internal/ws/hub.go
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"adboard-backend/internal/models"
	"adboard-backend/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origins are filtered by the CORS middleware in front of the upgrade.
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Event is the frame pushed to connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks websocket clients per user and delivers their notification
// records live. A user may hold several connections (one per device).
type Hub struct {
	clients map[primitive.ObjectID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	log *logrus.Logger

	mutex sync.RWMutex
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID primitive.ObjectID
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run processes client registrations; call it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mutex.Unlock()
			h.log.WithField("user_id", client.userID.Hex()).Debug("websocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if clients, ok := h.clients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mutex.Unlock()
			h.log.WithField("user_id", client.userID.Hex()).Debug("websocket client disconnected")
		}
	}
}

// NotifyUser pushes a delivery record to every open connection of the user.
// Slow clients are dropped rather than blocking the dispatcher.
func (h *Hub) NotifyUser(userID primitive.ObjectID, record *models.PushNotification) {
	h.mutex.RLock()
	clients := h.clients[userID]
	h.mutex.RUnlock()

	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(Event{Type: "notification", Data: record})
	if err != nil {
		h.log.WithError(err).Error("failed to marshal notification event")
		return
	}

	h.mutex.Lock()
	for client := range clients {
		select {
		case client.send <- payload:
		default:
			close(client.send)
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, userID)
			}
		}
	}
	h.mutex.Unlock()
}

// Handler upgrades authenticated requests into hub clients.
type Handler struct {
	hub        *Hub
	jwtManager *auth.JWTManager
	log        *logrus.Logger
}

func NewHandler(hub *Hub, jwtManager *auth.JWTManager, log *logrus.Logger) *Handler {
	return &Handler{hub: hub, jwtManager: jwtManager, log: log}
}

// HandleWebSocket authenticates via the token query parameter, since
// browsers cannot set headers on websocket upgrades.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is one-way; the only client frame handled is ping.
	for {
		var event Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("websocket read error")
			}
			break
		}

		if event.Type == "ping" {
			select {
			case c.send <- []byte(`{"type": "pong"}`):
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
