// Package chat runs websocket chat rooms. Every message is stored before it is
// broadcast to the members of its room.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	maxMessageLen  = 1000
	sendBufferSize = 64
)

var roomPattern = regexp.MustCompile(`^[a-z0-9_-]{1,50}$`)

// ValidRoom reports whether name can be used as a room.
func ValidRoom(name string) bool {
	return roomPattern.MatchString(name)
}

// Outbound is what members of a room receive.
type Outbound struct {
	ID        uint      `json:"id"`
	Room      string    `json:"room"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type inbound struct {
	Message string `json:"message"`
}

type sizeRequest struct {
	room  string
	reply chan int
}

type Hub struct {
	db       *gorm.DB
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader

	rooms     map[string]map[*client]struct{}
	join      chan *client
	leave     chan *client
	broadcast chan *Outbound
	sizes     chan sizeRequest
	stopped   chan struct{}
}

func NewHub(db *gorm.DB, m *metrics.Metrics, allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		db:        db,
		metrics:   m,
		logger:    logger.Named("chat"),
		rooms:     map[string]map[*client]struct{}{},
		join:      make(chan *client, 64),
		leave:     make(chan *client, 64),
		broadcast: make(chan *Outbound, 256),
		sizes:     make(chan sizeRequest),
		stopped:   make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Run owns room membership until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, members := range h.rooms {
				for c := range members {
					h.drop(c)
				}
			}
			return
		case c := <-h.join:
			members, ok := h.rooms[c.room]
			if !ok {
				members = map[*client]struct{}{}
				h.rooms[c.room] = members
			}
			members[c] = struct{}{}
			h.gauge(1)
			h.logger.Debug("Client joined room", zap.String("room", c.room), zap.Uint("user_id", c.user.ID))
		case c := <-h.leave:
			h.drop(c)
		case msg := <-h.broadcast:
			for c := range h.rooms[msg.Room] {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("Dropping slow chat client", zap.String("room", c.room), zap.Uint("user_id", c.user.ID))
					h.drop(c)
				}
			}
		case req := <-h.sizes:
			req.reply <- len(h.rooms[req.room])
		}
	}
}

func (h *Hub) drop(c *client) {
	members, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	close(c.send)
	h.gauge(-1)
}

func (h *Hub) gauge(delta float64) {
	if h.metrics != nil {
		h.metrics.ActiveConnections.Add(delta)
	}
}

// RoomSize returns the number of connected members of room.
func (h *Hub) RoomSize(room string) int {
	req := sizeRequest{room: room, reply: make(chan int, 1)}
	select {
	case h.sizes <- req:
		return <-req.reply
	case <-h.stopped:
		return 0
	}
}

// Serve upgrades the request and joins user to room. On upgrade failure the
// response has already been written.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, user *models.User, room string) error {
	if !ValidRoom(room) {
		return apperr.Invalid("invalid room name %q", room)
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}
	c := &client{hub: h, user: user, room: room, conn: conn, send: make(chan *Outbound, sendBufferSize)}
	select {
	case h.join <- c:
	case <-h.stopped:
		_ = conn.Close()
		return fmt.Errorf("chat hub is stopped")
	}
	go c.writeLoop()
	go c.readLoop()
	return nil
}

// Post stores a message and queues it for broadcast.
func (h *Hub) Post(ctx context.Context, user *models.User, room, text string) (*Outbound, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Invalid("message is empty")
	}
	if len(text) > maxMessageLen {
		return nil, apperr.Invalid("message exceeds %d characters", maxMessageLen)
	}
	row := &models.ChatMessage{UserID: user.ID, Room: room, Message: text}
	if err := h.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to store chat message: %w", err)
	}
	out := &Outbound{
		ID:        row.ID,
		Room:      room,
		UserID:    user.ID,
		UserName:  user.FullName,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
	}
	select {
	case h.broadcast <- out:
	case <-h.stopped:
	}
	return out, nil
}

// History returns up to limit of the latest messages in room, oldest first.
func (h *Hub) History(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.ChatMessage
	err := h.db.WithContext(ctx).Where("room = ?", room).
		Order("created_at DESC").Order("id DESC").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
