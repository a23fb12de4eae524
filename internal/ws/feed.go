package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/playmatrix/backend/internal/crash"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// client is one connected feed consumer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed fans the crash round event stream out to websocket clients. Events
// arrive over Redis pub/sub so every server instance sees the same stream
// regardless of which one runs the scheduler.
type Feed struct {
	rdb     *redis.Client
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewFeed(rdb *redis.Client) *Feed {
	return &Feed{
		rdb:     rdb,
		clients: make(map[*client]struct{}),
	}
}

// Run subscribes to the round event channel and broadcasts until ctx is
// cancelled. Call in a goroutine from main.
func (f *Feed) Run(ctx context.Context) {
	if f.rdb == nil {
		log.Println("[WS] Redis client not set; crash feed not started")
		return
	}
	pubsub := f.rdb.Subscribe(ctx, crash.Channel)
	defer pubsub.Close()
	log.Println("[WS] Crash feed subscriber started")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, okc := <-ch:
			if !okc {
				return
			}
			f.broadcast([]byte(msg.Payload))
		}
	}
}

func (f *Feed) broadcast(data []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for cl := range f.clients {
		select {
		case cl.send <- data:
		default:
			// Slow consumer; the snapshot endpoint lets it catch up.
		}
	}
}

func (f *Feed) add(cl *client) {
	f.mu.Lock()
	f.clients[cl] = struct{}{}
	f.mu.Unlock()
}

func (f *Feed) remove(cl *client) {
	f.mu.Lock()
	delete(f.clients, cl)
	f.mu.Unlock()
	close(cl.send)
}

// Handler upgrades the request and streams round events until the client
// disconnects.
func (f *Feed) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}
		cl := &client{conn: conn, send: make(chan []byte, 64)}
		f.add(cl)

		go cl.writePump()

		// Read loop only drains control frames; the feed is one-way.
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		f.remove(cl)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, okc := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !okc {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
