package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// client is one websocket connection; writes are serialized per socket.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks connections and their channel memberships. Round channels are
// public; user channels deliver only to sockets that bound an identity.
// Delivery is at most once: a failed write drops the message, never blocks.
type Hub struct {
	mu sync.RWMutex

	conns map[string]*client

	// roundID -> socketIds subscribed to that round channel
	roundSubs map[int64]map[string]struct{}
	// socketId -> gameID -> roundIDs, so unsubscribing a game can detach
	// every round sub-channel under it
	socketGames map[string]map[int64]map[int64]struct{}

	// identity bindings, both directions
	socketUser map[string]int64
	userSubs   map[int64]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:       make(map[string]*client),
		roundSubs:   make(map[int64]map[string]struct{}),
		socketGames: make(map[string]map[int64]map[int64]struct{}),
		socketUser:  make(map[string]int64),
		userSubs:    make(map[int64]map[string]struct{}),
	}
}

func (h *Hub) AddConnection(socketID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[socketID] = &client{conn: conn}
}

// RemoveConnection releases every membership the socket held.
func (h *Hub) RemoveConnection(socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, socketID)

	for _, rounds := range h.socketGames[socketID] {
		for roundID := range rounds {
			h.dropRoundSubLocked(socketID, roundID)
		}
	}
	delete(h.socketGames, socketID)

	if userID, ok := h.socketUser[socketID]; ok {
		delete(h.socketUser, socketID)
		if subs := h.userSubs[userID]; subs != nil {
			delete(subs, socketID)
			if len(subs) == 0 {
				delete(h.userSubs, userID)
			}
		}
	}
}

// Bind attaches a verified identity to the socket, enabling user-channel
// delivery.
func (h *Hub) Bind(socketID string, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.socketUser[socketID] = userID
	if h.userSubs[userID] == nil {
		h.userSubs[userID] = make(map[string]struct{})
	}
	h.userSubs[userID][socketID] = struct{}{}
}

func (h *Hub) SubscribeRound(socketID string, gameID, roundID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.roundSubs[roundID] == nil {
		h.roundSubs[roundID] = make(map[string]struct{})
	}
	h.roundSubs[roundID][socketID] = struct{}{}

	if h.socketGames[socketID] == nil {
		h.socketGames[socketID] = make(map[int64]map[int64]struct{})
	}
	if h.socketGames[socketID][gameID] == nil {
		h.socketGames[socketID][gameID] = make(map[int64]struct{})
	}
	h.socketGames[socketID][gameID][roundID] = struct{}{}
}

// UnsubscribeGame detaches the socket from every round channel under the game.
func (h *Hub) UnsubscribeGame(socketID string, gameID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roundID := range h.socketGames[socketID][gameID] {
		h.dropRoundSubLocked(socketID, roundID)
	}
	delete(h.socketGames[socketID], gameID)
}

func (h *Hub) dropRoundSubLocked(socketID string, roundID int64) {
	if subs := h.roundSubs[roundID]; subs != nil {
		delete(subs, socketID)
		if len(subs) == 0 {
			delete(h.roundSubs, roundID)
		}
	}
}

// DeliverRound fans a payload out to the round channel.
func (h *Hub) DeliverRound(roundID int64, payload []byte) {
	h.deliver(h.snapshot(func() map[string]struct{} { return h.roundSubs[roundID] }), payload)
}

// DeliverUser fans a payload out to every socket bound to the user.
func (h *Hub) DeliverUser(userID int64, payload []byte) {
	h.deliver(h.snapshot(func() map[string]struct{} { return h.userSubs[userID] }), payload)
}

func (h *Hub) snapshot(pick func() map[string]struct{}) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets []*client
	for socketID := range pick() {
		if c, ok := h.conns[socketID]; ok {
			targets = append(targets, c)
		}
	}
	return targets
}

func (h *Hub) deliver(targets []*client, payload []byte) {
	for _, c := range targets {
		if err := c.send(payload); err != nil {
			log.Warnf("socket write failed, dropping message: %v", err)
		}
	}
}

// BoundUser reports the socket's bound identity, if any.
func (h *Hub) BoundUser(socketID string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.socketUser[socketID]
	return userID, ok
}
