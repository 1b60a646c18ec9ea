package brackets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	Hub        *Hub
	Conn       *websocket.Conn
	Send       chan []byte
	Room       string
	DivisionID int
	IsClosed   bool
	Mu         sync.Mutex
}

// RoomMessage is the envelope of every frame sent to a drawing room.
type RoomMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
	// Version is the drawing session version the message reflects.
	Version int `json:"version"`
}

// SnapshotFunc returns the current drawing state of a division. It is called
// from the hub loop for every joining client.
type SnapshotFunc func(ctx context.Context, divisionID int) (*RoomMessage, error)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 512
	snapshotTimeout = 3 * time.Second

	ClientBufferSize   = 64
	broadcastQueueSize = 1024
)

func DivisionRoom(divisionID int) string {
	return "division_" + strconv.Itoa(divisionID)
}

func ParseDivisionRoom(room string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(room, "division_"))
	if err != nil || !strings.HasPrefix(room, "division_") {
		return 0, fmt.Errorf("invalid room %q", room)
	}
	return id, nil
}

type roomBroadcast struct {
	room    string
	payload []byte
}

// Hub fans drawing events out to the clients of each division room. A single
// goroutine (Run) owns the rooms, so joins and broadcasts of one room are
// delivered in the order they were accepted.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan roomBroadcast
	rooms      map[string]map[*Client]bool
	snapshot   SnapshotFunc
	logger     *slog.Logger
	// done is closed when Run returns.
	done chan struct{}

	mu     sync.RWMutex
	counts map[string]int
}

func NewHub(snapshot SnapshotFunc, logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan roomBroadcast, broadcastQueueSize),
		rooms:      make(map[string]map[*Client]bool),
		snapshot:   snapshot,
		logger:     logger,
		done:       make(chan struct{}),
		counts:     make(map[string]int),
	}
}

// Done is closed once the hub loop has stopped. Nobody receives from
// Register or Unregister after that.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for room, clients := range h.rooms {
				for client := range clients {
					h.drop(room, client)
				}
			}
			return

		case client := <-h.Register:
			h.join(ctx, client)

		case client := <-h.Unregister:
			if _, ok := h.rooms[client.Room][client]; ok {
				h.drop(client.Room, client)
				h.logger.Debug("client left drawing room", slog.String("room", client.Room), slog.Int("clients", len(h.rooms[client.Room])))
			}

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.room] {
				if !client.trySend(msg.payload) {
					h.logger.Warn("dropping slow drawing client", slog.String("room", msg.room))
					h.drop(msg.room, client)
				}
			}
		}
	}
}

func (h *Hub) join(ctx context.Context, client *Client) {
	if h.snapshot != nil {
		sctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		msg, err := h.snapshot(sctx, client.DivisionID)
		cancel()
		if err != nil {
			h.logger.Error("failed to build drawing snapshot", slog.Int("division_id", client.DivisionID), slog.Any("error", err))
		} else if msg != nil {
			msg.RoomID = client.Room
			if b, err := json.Marshal(msg); err == nil {
				client.trySend(b)
			}
		}
	}

	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	h.setCount(client.Room)
	h.logger.Debug("client joined drawing room", slog.String("room", client.Room), slog.Int("clients", len(h.rooms[client.Room])))
}

func (h *Hub) drop(room string, client *Client) {
	client.close()
	delete(h.rooms[room], client)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	h.setCount(room)
}

func (h *Hub) setCount(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.rooms[room]); n > 0 {
		h.counts[room] = n
	} else {
		delete(h.counts, room)
	}
}

// ClientCount reports how many clients are currently in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[room]
}

// BroadcastToRoom queues message for every client of roomID. It never blocks;
// when the queue is full the message is dropped and logged.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.String("room", roomID), slog.Any("error", err))
		return
	}
	h.enqueue(roomID, messageBytes)
}

func (h *Hub) enqueue(roomID string, payload []byte) {
	select {
	case h.broadcast <- roomBroadcast{room: roomID, payload: payload}:
	default:
		h.logger.Warn("drawing broadcast queue full, message dropped", slog.String("room", roomID))
	}
}

// Publish delivers msg to the local clients of a division room.
func (h *Hub) Publish(_ context.Context, divisionID int, msg RoomMessage) {
	msg.RoomID = DivisionRoom(divisionID)
	h.BroadcastToRoom(msg.RoomID, msg)
}

func (c *Client) trySend(b []byte) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.IsClosed {
		return false
	}
	select {
	case c.Send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if !c.IsClosed {
		close(c.Send)
		c.IsClosed = true
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// ReadPump drains the connection so control frames are processed. Spectators
// never send anything meaningful.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("drawing client disconnected", slog.String("room", c.Room),
					slog.Any("error", fmt.Errorf("%w: %v", ErrConnectionLost, err)))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("drawing client write failed", slog.String("room", c.Room), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
