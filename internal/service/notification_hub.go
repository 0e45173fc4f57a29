package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"school_portal_backend/internal/model"
	"school_portal_backend/pkg/logger"
	"school_portal_backend/pkg/monitoring"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 32
	onlineTTL      = 2 * time.Minute

	notifyChannel = "notify_channel"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	Hub     *NotificationHub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	Role    model.UserRole
	Limiter *rate.Limiter
}

// readPump only watches for close and pongs; notification clients are
// receive-only, so inbound frames are rate limited and dropped.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}
		if !c.Limiter.Allow() {
			continue
		}
	}
}

func (c *Client) writePump() {
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

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(c.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-c.Send)
				}
			}

			if err := w.Close(); err != nil {
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

type shard struct {
	clients map[uint][]*Client
	mu      sync.RWMutex
}

// NotificationHub is the live connection registry: a persistent multiplexed
// channel per active identity, grouped by role for broadcast. Delivery is
// fire-and-forget; the persisted notification is the source of truth.
type NotificationHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	Redis      *redis.Client
	ctx        context.Context
}

func NewNotificationHub(rdb *redis.Client) *NotificationHub {
	h := &NotificationHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Redis:      rdb,
		ctx:        context.Background(),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			clients: make(map[uint][]*Client),
		}
	}
	return h
}

func (h *NotificationHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

// PubSubMessage crosses instances via redis: either explicit target users or
// a role tag ("all" reaches everyone).
type PubSubMessage struct {
	TargetUsers []uint          `json:"targetUsers,omitempty"`
	Role        string          `json:"role,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func (h *NotificationHub) Run() {
	pubsub := h.Redis.Subscribe(h.ctx, notifyChannel)
	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var psMsg PubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.deliverLocal(&psMsg)
		}
	}()

	// Presence writes are batched; a heartbeat renews the TTL keys so other
	// instances can answer IsUserOnline.
	ticker := time.NewTicker(500 * time.Millisecond)
	heartbeatTicker := time.NewTicker(1 * time.Minute)
	defer func() {
		ticker.Stop()
		heartbeatTicker.Stop()
	}()

	type presenceUpdate struct {
		userID uint
		online bool
	}
	var pending []presenceUpdate

	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			s.clients[client.UserID] = append(s.clients[client.UserID], client)
			s.mu.Unlock()
			pending = append(pending, presenceUpdate{client.UserID, true})
			monitoring.OnlineConnections.Inc()

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			conns := s.clients[client.UserID]
			for i, c := range conns {
				if c == client {
					s.clients[client.UserID] = append(conns[:i], conns[i+1:]...)
					close(client.Send)
					monitoring.OnlineConnections.Dec()
					break
				}
			}
			if len(s.clients[client.UserID]) == 0 {
				delete(s.clients, client.UserID)
				pending = append(pending, presenceUpdate{client.UserID, false})
			}
			s.mu.Unlock()

		case <-heartbeatTicker.C:
			h.refreshOnlineStatus()

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}

			pipe := h.Redis.Pipeline()
			for _, update := range pending {
				key := fmt.Sprintf("user:online:%d", update.userID)
				if update.online {
					pipe.Set(h.ctx, key, "true", onlineTTL)
				} else {
					pipe.Del(h.ctx, key)
				}
			}
			if _, err := pipe.Exec(h.ctx); err != nil {
				logger.Log.Error("Redis pipeline error", zap.Error(err))
			}
			pending = pending[:0]
		}
	}
}

func (h *NotificationHub) refreshOnlineStatus() {
	pipe := h.Redis.Pipeline()
	count := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for userID := range s.clients {
			pipe.Expire(h.ctx, fmt.Sprintf("user:online:%d", userID), onlineTTL)
			count++
		}
		s.mu.RUnlock()
	}
	if count > 0 {
		pipe.Exec(h.ctx)
		logger.Log.Debug("Refreshed online status", zap.Int("count", count))
	}
}

// Stop closes every connection and clears presence keys.
func (h *NotificationHub) Stop() {
	logger.Log.Info("NotificationHub stopping: clearing online status and closing connections...")

	var allUserIDs []uint
	closed := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for userID, conns := range s.clients {
			allUserIDs = append(allUserIDs, userID)
			for _, client := range conns {
				close(client.Send)
				closed++
			}
			delete(s.clients, userID)
		}
		s.mu.Unlock()
	}

	if len(allUserIDs) > 0 {
		pipe := h.Redis.Pipeline()
		for _, userID := range allUserIDs {
			pipe.Del(h.ctx, fmt.Sprintf("user:online:%d", userID))
		}
		pipe.Exec(h.ctx)
	}

	monitoring.OnlineConnections.Set(0)
	logger.Log.Info("NotificationHub stopped", zap.Int("closedConnections", closed))
}

func (h *NotificationHub) publish(psMsg PubSubMessage) {
	payload, _ := json.Marshal(psMsg)
	if err := h.Redis.Publish(h.ctx, notifyChannel, payload).Err(); err != nil {
		// Cross-instance fan-out failed; deliver to local connections anyway.
		logger.Log.Error("Notification publish failed, falling back to local delivery", zap.Error(err))
		h.deliverLocal(&psMsg)
	}
}

func (h *NotificationHub) PushToUsers(userIDs []uint, msg WSMessage) {
	if len(userIDs) == 0 {
		return
	}
	payload, _ := json.Marshal(msg)
	h.publish(PubSubMessage{TargetUsers: userIDs, Payload: payload})
}

func (h *NotificationHub) PushToRole(role model.UserRole, msg WSMessage) {
	payload, _ := json.Marshal(msg)
	h.publish(PubSubMessage{Role: string(role), Payload: payload})
}

func (h *NotificationHub) PushToAll(msg WSMessage) {
	h.PushToRole(model.RoleAll, msg)
}

func (h *NotificationHub) deliverLocal(psMsg *PubSubMessage) {
	if psMsg.Role != "" {
		role := model.UserRole(psMsg.Role)
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.RLock()
			for _, conns := range s.clients {
				for _, client := range conns {
					if role != model.RoleAll && client.Role != role {
						continue
					}
					h.send(client, psMsg.Payload)
				}
			}
			s.mu.RUnlock()
		}
		return
	}

	for _, id := range psMsg.TargetUsers {
		s := h.getShard(id)
		s.mu.RLock()
		for _, client := range s.clients[id] {
			h.send(client, psMsg.Payload)
		}
		s.mu.RUnlock()
	}
}

// send never blocks; a full client buffer counts as a delivery failure and the
// message is dropped for that connection.
func (h *NotificationHub) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		monitoring.DeliveryFailures.Inc()
		logger.Log.Warn("Dropped notification for slow client", zap.Uint("userId", client.UserID))
	}
}

func (h *NotificationHub) IsUserOnline(userID uint) bool {
	s := h.getShard(userID)
	s.mu.RLock()
	_, ok := s.clients[userID]
	s.mu.RUnlock()
	if ok {
		return true
	}

	// Other instances publish presence to redis.
	val, err := h.Redis.Get(h.ctx, fmt.Sprintf("user:online:%d", userID)).Result()
	return err == nil && val == "true"
}

func ServeWs(hub *NotificationHub, w http.ResponseWriter, r *http.Request, userID uint, role model.UserRole) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		UserID:  userID,
		Role:    role,
		Limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
