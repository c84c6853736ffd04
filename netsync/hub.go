package netsync

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/snower/physync/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ErrHubStopped is returned by ServeWS once Run has returned.
var ErrHubStopped = errors.New("netsync: hub stopped")

// InboundKind tells joins, leaves and messages apart on the hub's inbound channel.
type InboundKind uint8

const (
	Joined InboundKind = iota
	Left
	Received
)

// Inbound is delivered to the single consumer of Hub.Inbound, in arrival order.
type Inbound struct {
	Kind     InboundKind
	Client   *Client
	Envelope Envelope
}

// Client is one websocket connection.
type Client struct {
	ID string
	// ObjectID is the object the client asked for, 0 to let the server pick
	ObjectID int

	hub  *Hub
	conn *websocket.Conn

	// mu guards send against a close racing with a queued write
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Send queues data for the client. It returns false when the client is gone or its queue
// is full; a full client is then dropped by the hub.
func (c *Client) Send(data []byte) bool {
	if !c.trySend(data) {
		c.hub.drop(c)
		return false
	}
	return true
}

func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub keeps the set of connected clients and fans broadcasts out to them.
// Run must be running for clients to connect.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	inbound    chan Inbound
	// done is closed when Run returns; nothing waits on the hub's channels after that
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	logger *log.Logger

	bytesIn  *telemetry.Counter
	bytesOut *telemetry.Counter
	packets  *telemetry.Counter
}

func NewHub(logger *log.Logger, registry *telemetry.Registry) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 64),
		inbound:    make(chan Inbound, 256),
		done:       make(chan struct{}),
		logger:     logger.WithPrefix("hub"),
		bytesIn:    registry.Counter(telemetry.NetBytesIn),
		bytesOut:   registry.Counter(telemetry.NetBytesOut),
		packets:    registry.Counter(telemetry.NetPackets),
	}
}

// Inbound delivers joins, leaves and client messages.
func (h *Hub) Inbound() <-chan Inbound {
	return h.inbound
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues data for every connected client. The frame is dropped when the hub
// is too far behind.
func (h *Hub) Broadcast(data []byte) bool {
	select {
	case h.broadcast <- data:
		return true
	default:
		h.logger.Warn("broadcast queue full, frame dropped", "bytes", len(data))
		return false
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.ID, "object", client.ObjectID)
			h.deliver(ctx, Inbound{Kind: Joined, Client: client})

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			if ok {
				h.logger.Info("client disconnected", "client", client.ID)
				h.deliver(ctx, Inbound{Kind: Left, Client: client})
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.trySend(message) {
					h.logger.Warn("send buffer full, dropping client", "client", client.ID)
					h.drop(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) deliver(ctx context.Context, in Inbound) {
	select {
	case h.inbound <- in:
	case <-ctx.Done():
	}
}

// drop schedules the client for removal without blocking the caller.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	default:
		go func() {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
		}()
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
// A stopped hub answers 503 without upgrading.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, clientID string, objectID int) error {
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return ErrHubStopped
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:       clientID,
		ObjectID: objectID,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		// Run stopped between the check and the upgrade
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return ErrHubStopped
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("read failed", "client", c.ID, "err", err)
			}
			return
		}
		c.hub.bytesIn.Add(int64(len(message)))

		env, err := Decode(message)
		if err != nil {
			c.hub.logger.Warn("bad message", "client", c.ID, "err", err)
			continue
		}
		select {
		case c.hub.inbound <- Inbound{Kind: Received, Client: c, Envelope: env}:
		case <-c.hub.done:
			return
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

			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.hub.logger.Warn("write failed", "client", c.ID, "err", err)
				return
			}
			c.hub.bytesOut.Add(int64(len(message)))
			c.hub.packets.Inc()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
