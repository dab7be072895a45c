package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/e2dconnect/e2d/internal/model"
)

// Entities announced over the socket.
const (
	EntityMember       = "member"
	EntityExercise     = "exercise"
	EntityContribution = "contribution"
	EntitySaving       = "saving"
	EntityLoan         = "loan"
	EntitySanction     = "sanction"
	EntityMeeting      = "meeting"
	EntityMatch        = "match"
	EntitySport        = "sport_transaction"
	EntityEvent        = "event"
	EntityDonation     = "donation"
	EntityAdhesion     = "adhesion"
	EntityUser         = "user"
	EntityRole         = "role"
	EntitySettings     = "settings"
	EntityBackup       = "backup"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// readPermission is the permission a client needs to hear about an entity.
// Unlisted entities require admin.
var readPermission = map[string]string{
	EntityMember:       model.PermMembersRead,
	EntityAdhesion:     model.PermMembersRead,
	EntityExercise:     model.PermFinanceRead,
	EntityContribution: model.PermFinanceRead,
	EntitySaving:       model.PermFinanceRead,
	EntityLoan:         model.PermFinanceRead,
	EntityDonation:     model.PermFinanceRead,
	EntitySanction:     model.PermFinanceRead,
	EntityMeeting:      model.PermMeetingsRead,
	EntityMatch:        model.PermSportRead,
	EntitySport:        model.PermSportRead,
	EntityEvent:        model.PermSiteWrite,
}

// Message is the change notification sent to dashboards.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
}

func NewMessage(entity, action string, id int64) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
	}
}

// Permission returns the permission required to receive m.
func (m Message) Permission() string {
	if p, ok := readPermission[m.Entity]; ok {
		return p
	}
	return model.PermAdmin
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every client allowed to see the entity.
func (h *Hub) Broadcast(msg Message) {
	if h == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}
	perm := msg.Permission()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.accepts(perm) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "user_id", c.auth.UserID, "type", msg.Type)
		}
	}
}

// Notify is shorthand for Broadcast(NewMessage(entity, action, id)).
func (h *Hub) Notify(entity, action string, id int64) {
	h.Broadcast(NewMessage(entity, action, id))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
