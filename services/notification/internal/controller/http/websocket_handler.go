package http

import (
	"context"
	"net/http"
	"strings"

	"opsdash/pkg/jwt"
	"opsdash/pkg/logger"
	"opsdash/pkg/realtime"
	"opsdash/services/notification/internal/presence"
	"opsdash/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler owns the realtime channel: it registers connections in the
// presence registry and forwards sendNotification events.
type WebSocketHandler struct {
	registry   *presence.Registry
	dispatcher *presence.Dispatcher
	sender     usecase.RealtimeSender
	jwtService *jwt.Service
	logger     *logger.Logger
}

func NewWebSocketHandler(registry *presence.Registry, dispatcher *presence.Dispatcher, sender usecase.RealtimeSender, jwtService *jwt.Service, logger *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		registry:   registry,
		dispatcher: dispatcher,
		sender:     sender,
		jwtService: jwtService,
		logger:     logger,
	}
}

// session is the per-connection state. It is only touched by the read loop.
type session struct {
	conn     *presence.WSConn
	claims   *jwt.Claims
	identity *realtime.Identity
}

// HandleWebSocket godoc
// @Summary      Realtime websocket
// @Description  Upgrade to a websocket. Send a register event first, then sendNotification events; newNotification events are pushed to the client
// @Tags         realtime
// @Produce      json
// @Param        token query string false "JWT, alternatively sent as a Bearer header"
// @Success      101  {string}  string  "Switching Protocols"
// @Failure      401  {object}  map[string]string
// @Router       /notifications/ws [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	ws := presence.NewWSConn(conn, presence.DefaultSendBuffer, h.logger)
	go ws.WritePump()
	h.logger.Info("[WS] Connection %s opened for %s", ws.ID(), claims.UserID)

	s := &session{conn: ws, claims: claims}
	ctx := context.Background()
	if err := ws.ReadPump(func(evt realtime.Event) { h.handleEvent(ctx, s, evt) }); err != nil {
		h.logger.Warn("[WS] Connection %s closed unexpectedly: %v", ws.ID(), err)
	}

	h.registry.Unregister(ws.ID())
	_ = ws.Close()
	h.logger.Info("[WS] Connection %s closed for %s", ws.ID(), claims.UserID)
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, s *session, evt realtime.Event) {
	switch evt.Event {
	case realtime.EventRegister:
		h.register(s, evt)
	case realtime.EventSendNotification:
		h.forward(ctx, s, evt)
	default:
		h.reject(s, "unknown event "+strings.TrimSpace(evt.Event))
	}
}

// register binds the connection to the identity it announces. The user id
// must match the token; the role always comes from the token.
func (h *WebSocketHandler) register(s *session, evt realtime.Event) {
	var identity realtime.Identity
	if err := evt.Decode(&identity); err != nil {
		h.reject(s, "invalid register payload")
		return
	}
	if identity.UserID != s.claims.UserID {
		h.reject(s, "identity does not match token")
		return
	}
	if identity.Name == "" {
		identity.Name = s.claims.Name
	}
	identity.Role = s.claims.Role

	if err := h.registry.Register(identity, s.conn); err != nil {
		h.reject(s, err.Error())
		return
	}
	s.identity = &identity

	_ = s.conn.Send(realtime.MustEvent(realtime.EventRegistered, realtime.Registered{
		ConnectionID: s.conn.ID(),
		UserID:       identity.UserID,
	}))
}

// forward relays a message to every live connection of the target. It does
// not store anything.
func (h *WebSocketHandler) forward(ctx context.Context, s *session, evt realtime.Event) {
	if s.identity == nil {
		h.reject(s, "register before sending")
		return
	}

	var req realtime.SendNotification
	if err := evt.Decode(&req); err != nil {
		h.reject(s, "invalid sendNotification payload")
		return
	}
	req.TargetUserID = strings.TrimSpace(req.TargetUserID)
	if req.TargetUserID == "" || strings.TrimSpace(req.Message) == "" {
		h.reject(s, "targetUserId and message are required")
		return
	}

	senderName := req.SenderName
	if senderName == "" {
		senderName = s.identity.Name
	}
	delivered := h.sender.SendToUser(ctx, req.TargetUserID, realtime.MustEvent(realtime.EventNewNotification, realtime.NewNotification{
		SenderID:   s.identity.UserID,
		SenderName: senderName,
		Message:    req.Message,
	}))
	if delivered == 0 {
		h.logger.Info("[DISPATCH] %s is not connected here, message from %s not delivered locally", req.TargetUserID, s.identity.UserID)
	}
}

func (h *WebSocketHandler) reject(s *session, message string) {
	_ = s.conn.Send(realtime.MustEvent(realtime.EventError, realtime.ErrorPayload{Message: message}))
}

// GetPresence reports registry counters and, with ?user_id=, whether that user is online.
// @Summary      Get presence
// @Description  Presence counters and, with user_id, whether that user is online
// @Tags         realtime
// @Produce      json
// @Security     BearerAuth
// @Param        user_id query string false "User ID to check"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /notifications/presence [get]
func (h *WebSocketHandler) GetPresence(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	response := gin.H{"stats": h.dispatcher.Stats()}
	if userID := c.Query("user_id"); userID != "" {
		response["user_id"] = userID
		response["online"] = h.registry.IsOnline(userID)
	}
	c.JSON(http.StatusOK, response)
}
