package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/avvvet/sweeps-services/internal/comm"
	"github.com/avvvet/sweeps-services/internal/socketsvc/ws"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	upgrader  websocket.Upgrader
	hub       *ws.Hub
	tokenAuth *jwtauth.JWTAuth
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func NewHandler(hub *ws.Hub, tokenAuth *jwtauth.JWTAuth) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:       hub,
		tokenAuth: tokenAuth,
	}
	return h
}

// HandleWebSocket upgrades the connection and starts the read loop.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		http.Error(w, "Failed to upgrade to WebSocket", http.StatusInternalServerError)
		return
	}

	socketId := uuid.New().String()
	h.hub.AddConnection(socketId, conn)

	log.Infof("New WebSocket connection established: %s", socketId)

	go h.handleConnection(conn, socketId)
}

func (h *Handler) handleConnection(conn *websocket.Conn, socketId string) {
	// connection teardown releases every channel membership
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		conn.Close()
		h.hub.RemoveConnection(socketId)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			} else {
				log.Infof("WebSocket connection closed normally for socket: %s", socketId)
			}
			break
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			log.Errorf("Failed to unmarshal message from socket %s: %v", socketId, err)
			h.sendErrorToClient(conn, "Invalid message format")
			continue
		}

		h.socketMessage(socketId, conn, message)
	}
}

func (h *Handler) socketMessage(socketId string, conn *websocket.Conn, message *comm.WSMessage) {
	switch message.Type {
	case "bind":
		h.handleBind(socketId, conn, message)
	case "subscribe_round":
		var sub comm.SubscribeRound
		if err := json.Unmarshal(message.Data, &sub); err != nil {
			h.sendErrorToClient(conn, "Invalid subscribe_round payload")
			return
		}
		// round channels are public, no identity needed
		h.hub.SubscribeRound(socketId, sub.GameID, sub.RoundID)
	case "unsubscribe_game":
		var unsub comm.UnsubscribeGame
		if err := json.Unmarshal(message.Data, &unsub); err != nil {
			h.sendErrorToClient(conn, "Invalid unsubscribe_game payload")
			return
		}
		h.hub.UnsubscribeGame(socketId, unsub.GameID)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

// handleBind verifies the client's token and attaches the identity to the
// socket. User-channel events only flow after a successful bind.
func (h *Handler) handleBind(socketId string, conn *websocket.Conn, message *comm.WSMessage) {
	var bind comm.BindRequest
	if err := json.Unmarshal(message.Data, &bind); err != nil || bind.UserID == 0 {
		h.sendErrorToClient(conn, "Invalid bind payload")
		return
	}

	token, err := h.tokenAuth.Decode(bind.Token)
	if err != nil {
		log.Warnf("bind rejected for socket %s: %v", socketId, err)
		h.sendErrorToClient(conn, "Invalid token")
		return
	}
	claim, ok := token.Get("user_id")
	if !ok || !claimMatches(claim, bind.UserID) {
		log.Warnf("bind rejected for socket %s: token user mismatch", socketId)
		h.sendErrorToClient(conn, "Token does not match user")
		return
	}

	h.hub.Bind(socketId, bind.UserID)
	log.Infof("socket %s bound to user %d", socketId, bind.UserID)
}

func claimMatches(claim interface{}, userID int64) bool {
	switch v := claim.(type) {
	case float64:
		return int64(v) == userID
	case int64:
		return v == userID
	case json.Number:
		n, err := v.Int64()
		return err == nil && n == userID
	default:
		return false
	}
}

// sendErrorToClient sends an error message back to the WebSocket client
func (h *Handler) sendErrorToClient(conn *websocket.Conn, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if data, err := json.Marshal(errorResponse); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Errorf("Failed to send error message to client: %v", err)
		}
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "socket service is running at port " + os.Getenv("SOCKET_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}
