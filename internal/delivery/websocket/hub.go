package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"story-zine/internal/messaging"
	"story-zine/internal/models"

	"go.uber.org/zap"
)

const (
	// EventRoomJoined подтверждает подписку клиента на комнату.
	EventRoomJoined = "room:joined"
	// EventRoomLeft подтверждает отписку.
	EventRoomLeft = "room:left"
	// EventError сообщает клиенту о некорректной команде.
	EventError = "error"

	sendBufferSize = 256
)

// ErrHubStopped возвращается Publish после остановки хаба.
var ErrHubStopped = errors.New("websocket hub stopped")

// Message - сообщение, отправляемое клиенту.
type Message struct {
	Event   string `json:"event"`
	Room    string `json:"room,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type subscription struct {
	client *Client
	room   string
	join   bool
}

var _ messaging.EventPublisher = (*Hub)(nil)

// Hub раздает события клиентам, подписанным на комнаты.
// Набор клиентов и их комнаты меняются только в горутине run.
type Hub struct {
	clients       map[*Client]struct{}
	register      chan *Client
	unregister    chan *Client
	subscriptions chan subscription
	broadcast     chan Message
	stop          chan struct{}
	done          chan struct{}
	logger        *zap.Logger
}

// NewHub создает хаб. Для работы нужно вызвать Start.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]struct{}),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(chan subscription),
		broadcast:     make(chan Message, sendBufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        logger.Named("WebSocketHub"),
	}
}

// Start запускает цикл хаба в отдельной горутине.
func (h *Hub) Start() {
	go h.run()
}

// Stop закрывает все соединения и останавливает цикл.
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.done
}

// Publish ставит событие в очередь рассылки.
func (h *Hub) Publish(ctx context.Context, event models.StoryEvent) error {
	select {
	case <-h.stop:
		return ErrHubStopped
	default:
	}
	msg := Message{Event: event.Event, Room: event.Room, Payload: event.Payload}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.stop:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run() {
	defer close(h.done)
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			connectionsActive.Inc()
			client.logger.Info("Client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				client.logger.Info("Client disconnected")
			}

		case sub := <-h.subscriptions:
			h.subscribe(sub)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.stop:
			for client := range h.clients {
				h.remove(client)
			}
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	connectionsActive.Dec()
}

func (h *Hub) subscribe(sub subscription) {
	client := sub.client
	if _, ok := h.clients[client]; !ok {
		return
	}
	if !validRoom(sub.room) {
		h.sendTo(client, Message{Event: EventError, Room: sub.room, Payload: map[string]string{"message": "unknown room"}})
		return
	}
	if sub.join {
		client.rooms[sub.room] = struct{}{}
		h.sendTo(client, Message{Event: EventRoomJoined, Room: sub.room})
		return
	}
	delete(client.rooms, sub.room)
	h.sendTo(client, Message{Event: EventRoomLeft, Room: sub.room})
}

func (h *Hub) deliver(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	for client := range h.clients {
		if _, ok := client.rooms[msg.Room]; !ok {
			continue
		}
		if h.queue(client, data) {
			messagesSentTotal.WithLabelValues(msg.Event).Inc()
		}
	}
}

func (h *Hub) sendTo(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	h.queue(client, data)
}

// queue кладет сообщение в буфер клиента; клиента с полным буфером отключает.
func (h *Hub) queue(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		return true
	default:
		client.logger.Warn("Send buffer full, dropping client")
		slowClientsDroppedTotal.Inc()
		h.remove(client)
		return false
	}
}

// validRoom допускает лобби и комнаты историй вида story:<id>.
func validRoom(room string) bool {
	if room == models.LobbyRoom {
		return true
	}
	id, ok := strings.CutPrefix(room, "story:")
	return ok && id != ""
}
