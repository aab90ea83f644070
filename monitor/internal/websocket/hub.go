package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Krimson/posture-monitory/monitor/internal/session"
)

const writeWait = 10 * time.Second

// Hub управляет WebSocket соединениями и рассылает события мониторов
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для отмены регистрации клиентов
	unregister chan *Client

	// Канал исходящих сообщений
	broadcast chan envelope

	// Закрывается при остановке Run
	done chan struct{}

	// Мютекс для безопасной работы с картой клиентов
	mu sync.RWMutex

	// Последний вердикт каждого монитора (monitor_id -> сообщение) для новых клиентов
	lastVerdicts map[string][]byte
	verdictMu    sync.RWMutex
}

// envelope сообщение с адресатом
type envelope struct {
	monitorID string
	message   []byte
}

// Client представляет WebSocket клиента
type Client struct {
	hub *Hub

	// WebSocket соединение
	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// ID монитора для фильтрации событий, пустой - все мониторы
	monitorID string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене следует проверять домен
		return true
	},
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan envelope, 256),
		done:         make(chan struct{}),
		lastVerdicts: make(map[string][]byte),
	}
}

// Run запускает Hub до отмены контекста
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client registered: %p, monitor: %q", client, client.monitorID)
			h.sendSnapshot(client)

		case client := <-h.unregister:
			h.remove(client)
			log.Printf("[WEBSOCKET] Client unregistered: %p", client)

		case env := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				if client.monitorID != "" && client.monitorID != env.monitorID {
					continue
				}
				select {
				case client.send <- env.message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				log.Printf("[WARN] Client %p too slow, disconnecting", client)
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// sendSnapshot отправляет новому клиенту последние вердикты
func (h *Hub) sendSnapshot(client *Client) {
	h.verdictMu.RLock()
	defer h.verdictMu.RUnlock()

	for monitorID, message := range h.lastVerdicts {
		if client.monitorID != "" && client.monitorID != monitorID {
			continue
		}
		select {
		case client.send <- message:
		default:
		}
	}
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnEvent рассылает событие монитора подписанным клиентам (реализует session.Observer)
func (h *Hub) OnEvent(ev session.Event) {
	// Изображение не отправляем, клиент получает его через /evidence
	if ev.Evidence != nil {
		evidence := *ev.Evidence
		evidence.Image = nil
		ev.Evidence = &evidence
	}

	message, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal event: %v", err)
		return
	}

	if ev.Type == session.EventVerdictChanged {
		h.verdictMu.Lock()
		h.lastVerdicts[ev.MonitorID] = message
		h.verdictMu.Unlock()
	}

	select {
	case h.broadcast <- envelope{monitorID: ev.MonitorID, message: message}:
	default:
		log.Printf("[WARN] Broadcast channel full, dropping %s event for monitor %s", ev.Type, ev.MonitorID)
	}
}

// HandleWebSocket обрабатывает WebSocket соединения: /ws?monitor_id=...
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		monitorID: r.URL.Query().Get("monitor_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Запускаем горутины для клиента
	go client.writePump()
	go client.readPump()
}

// readPump читает входящие сообщения до закрытия соединения
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ERROR] WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[ERROR] Failed to write message: %v", err)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
