package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"livequiz/metrics"
	"livequiz/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventPublisher mirrors channel events outside the process.
type EventPublisher interface {
	PublishRoomEvent(roomCode, event string, payload []byte) error
}

// RoomHooks lets the hub reach back into the game service without owning it.
type RoomHooks interface {
	RoomState(ctx context.Context, code string) (*RoomSnapshot, error)
	RoomEmpty(code string)
}

type HubOptions struct {
	Tick      time.Duration
	Publisher EventPublisher
	Metrics   *metrics.Metrics
}

// Hub keeps one channel per room code and owns each room's countdown.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex

	countdowns map[string]*Countdown
	cdMutex    sync.Mutex

	hooks     RoomHooks
	tick      time.Duration
	publisher EventPublisher
	metrics   *metrics.Metrics
}

func NewHub(opts HubOptions) *Hub {
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		countdowns: make(map[string]*Countdown),
		tick:       tick,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
	}
}

func (h *Hub) SetHooks(hooks RoomHooks) {
	h.hooks = hooks
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
			go h.sendState(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Serve attaches an upgraded socket to a room channel and starts its pumps.
// It returns nil once the hub has shut down.
func (h *Hub) Serve(conn *websocket.Conn, roomCode string, participantID uint, displayName string) *Client {
	client := &Client{
		hub:           h,
		id:            uuid.NewString(),
		socket:        conn,
		send:          make(chan []byte, 256),
		roomCode:      roomCode,
		participantID: participantID,
		displayName:   displayName,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) addClient(client *Client) int {
	h.mutex.Lock()
	room, ok := h.rooms[client.roomCode]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[client.roomCode] = room
	}
	room[client] = true
	count := len(room)
	h.updateGauges()
	h.mutex.Unlock()

	logger.Info("Client subscribed",
		"room_code", client.roomCode,
		"participant_id", client.participantID,
		"client_id", client.id,
		"subscribers", count)

	return count
}

// removeClient drops a subscriber. The last subscriber leaving tears the
// room down: its countdown is cancelled and the hooks are told.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	room, ok := h.rooms[client.roomCode]
	if !ok || !room[client] {
		h.mutex.Unlock()
		return
	}
	delete(room, client)
	close(client.send)
	remaining := len(room)
	if remaining == 0 {
		delete(h.rooms, client.roomCode)
	}
	h.updateGauges()
	h.mutex.Unlock()

	logger.Info("Client unsubscribed",
		"room_code", client.roomCode,
		"participant_id", client.participantID,
		"client_id", client.id,
		"subscribers", remaining)

	if remaining > 0 {
		h.Broadcast(client.roomCode, EventParticipantLeft, ParticipantLeftPayload{
			ParticipantID: client.participantID,
			Remaining:     remaining,
		})
		return
	}

	h.StopCountdown(client.roomCode)
	if h.hooks != nil {
		h.hooks.RoomEmpty(client.roomCode)
	}
}

// updateGauges expects h.mutex to be held.
func (h *Hub) updateGauges() {
	subscribers := 0
	for _, room := range h.rooms {
		subscribers += len(room)
	}
	h.metrics.SetChannels(len(h.rooms), subscribers)
}

// leave unregisters a client unless the hub has already shut down.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.cdMutex.Lock()
	for code, cd := range h.countdowns {
		cd.Stop()
		delete(h.countdowns, code)
	}
	h.cdMutex.Unlock()

	h.mutex.Lock()
	for code, room := range h.rooms {
		for client := range room {
			close(client.send)
		}
		delete(h.rooms, code)
	}
	h.updateGauges()
	h.mutex.Unlock()
}

func encode(roomCode string, eventType EventType, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      eventType,
		RoomCode:  roomCode,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// Broadcast delivers an event to every subscriber of the room. Delivery is
// fire-and-forget: a subscriber whose buffer is full is dropped.
func (h *Hub) Broadcast(roomCode string, eventType EventType, payload interface{}) {
	data, err := encode(roomCode, eventType, payload)
	if err != nil {
		logger.Error("Failed to marshal event", "room_code", roomCode, "event", eventType, "error", err)
		return
	}

	h.deliver(roomCode, data, nil)
	h.metrics.Broadcast(string(eventType))

	if eventType != EventTimerTick {
		logger.Debug("Broadcast event", "room_code", roomCode, "event", eventType)
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRoomEvent(roomCode, string(eventType), data); err != nil {
			logger.Warn("Failed to mirror event", "room_code", roomCode, "event", eventType, "error", err)
		}
	}
}

// SendTo delivers an event only to the sockets of one participant.
func (h *Hub) SendTo(roomCode string, participantID uint, eventType EventType, payload interface{}) {
	data, err := encode(roomCode, eventType, payload)
	if err != nil {
		logger.Error("Failed to marshal event", "room_code", roomCode, "event", eventType, "error", err)
		return
	}

	h.deliver(roomCode, data, func(c *Client) bool {
		return c.participantID == participantID
	})
}

func (h *Hub) sendClient(client *Client, eventType EventType, payload interface{}) {
	data, err := encode(client.roomCode, eventType, payload)
	if err != nil {
		logger.Error("Failed to marshal event", "room_code", client.roomCode, "event", eventType, "error", err)
		return
	}

	h.deliver(client.roomCode, data, func(c *Client) bool {
		return c == client
	})
}

func (h *Hub) deliver(roomCode string, data []byte, match func(*Client) bool) {
	var slow []*Client

	h.mutex.RLock()
	for client := range h.rooms[roomCode] {
		if match != nil && !match(client) {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		logger.Warn("Subscriber buffer full, dropping", "room_code", roomCode, "client_id", client.id)
		h.metrics.Dropped()
		h.removeClient(client)
	}
}

func (h *Hub) sendState(client *Client) {
	if h.hooks == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot, err := h.hooks.RoomState(ctx, client.roomCode)
	if err != nil {
		logger.Warn("Failed to load room state", "room_code", client.roomCode, "error", err)
		h.sendClient(client, EventError, ErrorPayload{Message: "room state unavailable"})
		return
	}
	h.sendClient(client, EventGameState, snapshot)
}

func (h *Hub) SubscriberCount(roomCode string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomCode])
}

func (h *Hub) IsConnected(roomCode string, participantID uint) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[roomCode] {
		if client.participantID == participantID {
			return true
		}
	}
	return false
}

// StartCountdown replaces any running countdown for the room. Every tick is
// broadcast as timer-tick; reaching zero broadcasts timer-expired and then
// calls onExpire from the countdown's goroutine.
func (h *Hub) StartCountdown(roomCode, label string, seconds int, onExpire func()) {
	ctx, cancel := context.WithCancel(context.Background())
	cd := newCountdown(label, seconds, cancel)

	h.cdMutex.Lock()
	if old, ok := h.countdowns[roomCode]; ok {
		old.Stop()
	}
	h.countdowns[roomCode] = cd
	h.cdMutex.Unlock()

	h.metrics.CountdownStarted()
	logger.Info("Countdown started", "room_code", roomCode, "label", label, "seconds", seconds)

	go func() {
		defer h.metrics.CountdownStopped()

		expired := cd.run(ctx, h.tick, func(remaining int) {
			h.Broadcast(roomCode, EventTimerTick, TimerPayload{Label: label, Remaining: remaining})
		})
		if !expired {
			return
		}

		h.cdMutex.Lock()
		if h.countdowns[roomCode] == cd {
			delete(h.countdowns, roomCode)
		}
		h.cdMutex.Unlock()

		logger.Info("Countdown expired", "room_code", roomCode, "label", label)
		h.Broadcast(roomCode, EventTimerExpired, TimerPayload{Label: label})
		if onExpire != nil {
			onExpire()
		}
	}()
}

func (h *Hub) StopCountdown(roomCode string) {
	h.cdMutex.Lock()
	defer h.cdMutex.Unlock()

	if cd, ok := h.countdowns[roomCode]; ok {
		cd.Stop()
		delete(h.countdowns, roomCode)
	}
}

// CountdownRemaining reports the seconds left on the room's countdown if it
// carries the given label.
func (h *Hub) CountdownRemaining(roomCode, label string) (int, bool) {
	h.cdMutex.Lock()
	defer h.cdMutex.Unlock()

	cd, ok := h.countdowns[roomCode]
	if !ok || cd.Label != label {
		return 0, false
	}
	return cd.Remaining(), true
}

// ActiveCountdown returns the label and seconds left of whatever countdown
// the room is running.
func (h *Hub) ActiveCountdown(roomCode string) (string, int, bool) {
	h.cdMutex.Lock()
	defer h.cdMutex.Unlock()

	cd, ok := h.countdowns[roomCode]
	if !ok {
		return "", 0, false
	}
	return cd.Label, cd.Remaining(), true
}
