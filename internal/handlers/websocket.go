package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lucky-rounds-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the wire envelope for every push the hub sends.
type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
}

// WebSocketHub fans round events out to every connected spectator. It is the
// scheduler's notifier: phase transitions and multiplier ticks arrive here
// and leave as broadcast frames.
type WebSocketHub struct {
	clients    map[*websocket.Conn]int64
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

func NewWebSocketHub() *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[*websocket.Conn]int64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
	}

	go hub.run()

	return hub
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.Conn] = client.UserID

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.Conn]; ok {
				delete(hub.clients, client.Conn)
			}

		case message := <-hub.broadcast:
			for conn := range hub.clients {
				if err := conn.WriteJSON(message); err != nil {
					conn.Close()
					delete(hub.clients, conn)
				}
			}
		}
	}
}

// push never blocks the caller; when the buffer is full (a round event burst
// against slow clients) the frame is dropped rather than stalling the
// scheduler goroutine.
func (hub *WebSocketHub) push(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
	}
}

func (hub *WebSocketHub) RoundStarted(roundID string, number int64, bettingWindow time.Duration) {
	hub.push(&Message{
		Type: "ROUND_STARTED",
		Data: gin.H{
			"round_id":          roundID,
			"number":            number,
			"betting_window_ms": bettingWindow.Milliseconds(),
		},
	})
}

func (hub *WebSocketHub) FlightStarted(roundID string) {
	hub.push(&Message{
		Type: "FLIGHT_STARTED",
		Data: gin.H{
			"round_id": roundID,
		},
	})
}

func (hub *WebSocketHub) MultiplierTick(roundID string, multiplier float64) {
	hub.push(&Message{
		Type: "MULTIPLIER_TICK",
		Data: gin.H{
			"round_id":   roundID,
			"multiplier": multiplier,
		},
	})
}

func (hub *WebSocketHub) RoundEnded(roundID string, target float64, serverSeed string) {
	hub.push(&Message{
		Type: "ROUND_ENDED",
		Data: gin.H{
			"round_id":    roundID,
			"target":      target,
			"server_seed": serverSeed,
		},
	})
}

func (hub *WebSocketHub) PlayerBet(roundID string, userID int64, amount float64) {
	hub.push(&Message{
		Type:   "PLAYER_BET",
		UserID: userID,
		Data: gin.H{
			"round_id": roundID,
			"amount":   amount,
		},
	})
}

func (hub *WebSocketHub) PlayerCashout(roundID string, userID int64, multiplier, payout float64) {
	hub.push(&Message{
		Type:   "PLAYER_CASHOUT",
		UserID: userID,
		Data: gin.H{
			"round_id":   roundID,
			"multiplier": multiplier,
			"payout":     payout,
		},
	})
}

type WebSocketHandler struct {
	hub   *WebSocketHub
	redis *services.RedisService
}

func NewWebSocketHandler(hub *WebSocketHub, redis *services.RedisService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		redis: redis,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendBalance(c, client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if msg.Type == "PING" {
			conn.WriteJSON(Message{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

func (h *WebSocketHandler) sendBalance(c *gin.Context, client *Client) {
	wallet, err := h.redis.GetWallet(c.Request.Context(), client.UserID)
	if err != nil {
		log.Printf("Failed to get wallet for WS: %v", err)
		return
	}

	client.Conn.WriteJSON(Message{
		Type: "BALANCE_UPDATE",
		Data: gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
		},
	})
}
