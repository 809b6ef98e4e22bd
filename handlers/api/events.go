package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"feedcompose/utils"
)

// Event is one real-time composer event delivered to a user's open tabs.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Time    time.Time   `json:"time"`
}

type subscriber struct {
	userID string
	ch     chan Event
}

// EventHub fans composer events out to a user's SSE and WebSocket
// subscribers. It satisfies compose.Publisher.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]subscriber
	log         *utils.Logger
}

// NewEventHub creates an empty hub.
func NewEventHub(log *utils.Logger) *EventHub {
	return &EventHub{
		subscribers: make(map[string]subscriber),
		log:         log,
	}
}

// Publish delivers an event to every subscriber belonging to userID.
// Subscribers with full channels are skipped.
func (h *EventHub) Publish(userID, event string, payload interface{}) {
	ev := Event{
		ID:      uuid.New().String(),
		Type:    event,
		Payload: payload,
		Time:    time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("Event channel full for subscriber %s", id)
		}
	}
}

func (h *EventHub) subscribe(userID string) (string, chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, 10)
	h.mu.Lock()
	h.subscribers[id] = subscriber{userID: userID, ch: ch}
	h.mu.Unlock()
	return id, ch
}

func (h *EventHub) unsubscribe(id string) {
	h.mu.Lock()
	if sub, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// HandleSSE streams composer events over Server-Sent Events.
func (h *EventHub) HandleSSE(c *fiber.Ctx) error {
	userID := CurrentUserID(c)
	if userID == "" {
		return utils.UnauthorizedError(nil)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	subscriberID, messageChan := h.subscribe(userID)
	h.log.Info("SSE subscriber connected: %s", subscriberID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unsubscribe(subscriberID)
			h.log.Info("SSE subscriber disconnected: %s", subscriberID)
		}()

		// Keep-alive ticker
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-messageChan:
				if !ok {
					return
				}
				data, _ := json.Marshal(ev)
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// HandleWebSocket streams composer events over a WebSocket connection.
// The user id is resolved before the upgrade and stashed in Locals.
func (h *EventHub) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		c.Close()
		return
	}

	subscriberID, messageChan := h.subscribe(userID)
	defer func() {
		h.unsubscribe(subscriberID)
		c.Close()
		h.log.Info("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	h.log.Info("WebSocket subscriber connected: %s", subscriberID)

	for ev := range messageChan {
		if err := c.WriteJSON(ev); err != nil {
			h.log.Error("Failed to send WebSocket event: %v", err)
			break
		}
	}
}
