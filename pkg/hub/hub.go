// Package hub pushes live events to open portal pages over websockets and
// dispatches the actions those pages send back.
package hub

import (
	"log"
	"sync"

	"navportal/pkg/envelope"

	"github.com/gofiber/contrib/websocket"
)

const (
	ActionToast          = "toast"
	ActionRefresh        = "portal.refresh"
	ActionRedirect       = "redirect"
	ActionOrdersRestored = "orders.restored"
)

// ActionHandler answers one page action. A nil reply sends nothing back.
type ActionHandler func(env envelope.Envelope) (reply any, err error)

type clientConn struct {
	conn *websocket.Conn
	page string
	mu   sync.Mutex
}

func (cc *clientConn) send(data []byte) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if err := cc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[HUB] send error page=%s: %v", cc.page, err)
	}
}

func (cc *clientConn) sendEnvelope(env envelope.Envelope) {
	raw, err := env.Marshal()
	if err != nil {
		log.Printf("[HUB] marshal %s: %v", env.Action, err)
		return
	}
	cc.send(raw)
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*clientConn
	handlers map[string]ActionHandler
}

func New() *Hub {
	return &Hub{
		clients:  make(map[*websocket.Conn]*clientConn),
		handlers: make(map[string]ActionHandler),
	}
}

// On registers fn for action. Register before serving connections.
func (h *Hub) On(action string, fn ActionHandler) {
	h.mu.Lock()
	h.handlers[action] = fn
	h.mu.Unlock()
}

// Handler upgrades /ws requests. The page query parameter names the
// connecting page for logs.
func (h *Hub) Handler() func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		h.HandleConn(c, c.Query("page", "newtab"))
	}
}

func (h *Hub) HandleConn(c *websocket.Conn, page string) {
	cc := &clientConn{conn: c, page: page}

	h.mu.Lock()
	h.clients[c] = cc
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("[HUB] Page connected: page=%s total=%d", page, total)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		total := len(h.clients)
		h.mu.Unlock()
		c.Close()
		log.Printf("[HUB] Page disconnected: page=%s total=%d", page, total)
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		env, err := envelope.Unmarshal(raw)
		if err != nil {
			cc.sendEnvelope(envelope.NewError(envelope.Envelope{}, 400, "invalid JSON"))
			continue
		}

		if env.Action == "ping" {
			pong := envelope.New("pong")
			pong.ReplyTo = env.ID
			cc.sendEnvelope(pong)
			continue
		}

		h.mu.RLock()
		handler, ok := h.handlers[env.Action]
		h.mu.RUnlock()
		if !ok {
			cc.sendEnvelope(envelope.NewError(env, 404, "unknown action: "+env.Action))
			continue
		}

		go h.dispatch(cc, env, handler)
	}
}

func (h *Hub) dispatch(cc *clientConn, env envelope.Envelope, handler ActionHandler) {
	reply, err := handler(env)
	if err != nil {
		cc.sendEnvelope(envelope.NewError(env, 500, err.Error()))
		return
	}
	if reply == nil {
		return
	}
	out, err := envelope.NewReply(env, reply)
	if err != nil {
		log.Printf("[HUB] Reply marshal error: %v", err)
		return
	}
	cc.sendEnvelope(out)
}

// Publish sends an event to every connected page.
func (h *Hub) Publish(action string, data any) {
	env, err := envelope.NewEvent(action, data)
	if err != nil {
		log.Printf("[HUB] Publish %s: %v", action, err)
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cc := range h.clients {
		cc.send(raw)
	}
}

func (h *Hub) Toast(level, message string) {
	h.Publish(ActionToast, map[string]string{"level": level, "message": message})
}

func (h *Hub) Redirect(path string) {
	h.Publish(ActionRedirect, map[string]string{"to": path})
}

// Refresh tells pages that the data behind key changed and should be
// re-rendered.
func (h *Hub) Refresh(key string) {
	h.Publish(ActionRefresh, map[string]string{"key": key})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
