package rig

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/reframe/reframe/backend-go/internal/camera"
)

// Loader rebuilds a session's rig when the first client connects.
type Loader func(ctx context.Context, sessionID, userID string) (*Rig, error)

// Saver persists a session's live state when its last client disconnects.
type Saver func(ctx context.Context, sessionID, userID string, state camera.State) error

const saveTimeout = 5 * time.Second

// Room owns one session's rig. All operations on the rig go through the
// room's mutex, which is what lets the Rig itself stay single-threaded.
type Room struct {
	sessionID string
	ownerID   string

	mu      sync.Mutex
	rig     *Rig
	clients map[string]*Client // clientID -> client
}

func newRoom(sessionID, ownerID string, r *Rig) *Room {
	return &Room{
		sessionID: sessionID,
		ownerID:   ownerID,
		rig:       r,
		clients:   make(map[string]*Client),
	}
}

// Hub routes clients into per-session rooms and applies their rig operations.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sessionID -> room
	register   chan *Client
	unregister chan *Client
	load       Loader
	save       Saver
}

func NewHub(load Loader, save Saver) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		load:       load,
		save:       save,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SessionID]
	if !ok {
		r, err := h.load(context.Background(), client.SessionID, client.UserID)
		if err != nil {
			h.mu.Unlock()
			slog.Warn("load rig failed", "session", client.SessionID, "user", client.UserID, "error", err)
			client.Send(errorMessage(client.SessionID, "session unavailable"))
			close(client.send)
			return
		}
		room = newRoom(client.SessionID, client.UserID, r)
		h.rooms[client.SessionID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	client.Send(room.stateMessage(TypeWelcome))
	slog.Info("client joined", "user", client.UserID, "session", client.SessionID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SessionID]
	if !ok {
		h.mu.Unlock()
		return
	}

	if _, present := room.clients[client.ClientID]; !present {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ClientID)
	close(client.send)

	last := len(room.clients) == 0
	if last {
		delete(h.rooms, client.SessionID)
	}
	h.mu.Unlock()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		room.mu.Lock()
		state := room.rig.State().State
		room.mu.Unlock()
		if err := h.save(ctx, room.sessionID, room.ownerID, state); err != nil {
			slog.Error("persist live state failed", "session", room.sessionID, "error", err)
		}
	}

	slog.Info("client left", "user", client.UserID, "session", client.SessionID)
}

// Stop persists every open room's live state. Called on shutdown, after the
// HTTP listener has stopped accepting connections.
func (h *Hub) Stop() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for id, room := range h.rooms {
		rooms = append(rooms, room)
		delete(h.rooms, id)
	}
	h.mu.Unlock()

	for _, room := range rooms {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		room.mu.Lock()
		state := room.rig.State().State
		room.mu.Unlock()
		if err := h.save(ctx, room.sessionID, room.ownerID, state); err != nil {
			slog.Error("persist live state failed", "session", room.sessionID, "error", err)
		}
		cancel()
	}
}

// handleMessage applies one client operation to the room's rig. Every
// accepted operation re-broadcasts the full state, sender included, so all
// renderers converge on the same geometry.
func (h *Hub) handleMessage(sender *Client, msg *Message) {
	h.mu.RLock()
	room, ok := h.rooms[sender.SessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.Lock()
	switch msg.Type {
	case TypeUpdate:
		var u camera.Update
		if err := json.Unmarshal(msg.Payload, &u); err != nil {
			room.mu.Unlock()
			sender.Send(errorMessage(sender.SessionID, "invalid update payload"))
			return
		}
		room.rig.Update(u)

	case TypeReset:
		room.rig.Reset()

	case TypeAspect:
		var p AspectPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.AspectRatio <= 0 {
			room.mu.Unlock()
			sender.Send(errorMessage(sender.SessionID, "invalid aspect payload"))
			return
		}
		room.rig.SetAspectRatio(p.AspectRatio)

	case TypePlane:
		var p PlanePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Width <= 0 || p.Height <= 0 {
			room.mu.Unlock()
			sender.Send(errorMessage(sender.SessionID, "invalid plane payload"))
			return
		}
		room.rig.SetPlaneSize(p.Width, p.Height)

	default:
		room.mu.Unlock()
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(errorMessage(sender.SessionID, "unknown operation: "+msg.Type))
		return
	}
	out := room.stateMessageLocked(TypeState)
	room.mu.Unlock()

	h.broadcastToRoom(sender.SessionID, out)
}

func (h *Hub) broadcastToRoom(sessionID string, msg *Message) {
	h.mu.RLock()
	room, ok := h.rooms[sessionID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func (r *Room) stateMessage(msgType string) *Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateMessageLocked(msgType)
}

func (r *Room) stateMessageLocked(msgType string) *Message {
	payload, err := json.Marshal(StatePayload{
		State:    r.rig.State(),
		Original: r.rig.OriginalState(),
		Plane:    r.rig.Plane(),
		Geometry: r.rig.Derived(),
	})
	if err != nil {
		slog.Error("marshal state payload", "error", err)
		return errorMessage(r.sessionID, "internal error")
	}
	return &Message{Type: msgType, SessionID: r.sessionID, Payload: payload}
}

func errorMessage(sessionID, reason string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Reason: reason})
	return &Message{Type: TypeError, SessionID: sessionID, Payload: payload}
}
