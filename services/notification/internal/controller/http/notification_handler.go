package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsdash/pkg/logger"
	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationUseCase usecase.NotificationUseCase
	notifier            *usecase.Notifier
	templates           *usecase.TemplateEngine
	logger              *logger.Logger
}

func NewNotificationHandler(notificationUseCase usecase.NotificationUseCase, notifier *usecase.Notifier, templates *usecase.TemplateEngine, logger *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
		notifier:            notifier,
		templates:           templates,
		logger:              logger,
	}
}

type SendNotificationRequest struct {
	RecipientID string                 `json:"recipient_id"`
	SenderID    string                 `json:"sender_id"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Kind        string                 `json:"kind"`
	Category    string                 `json:"category"`
	ExtraData   map[string]interface{} `json:"extra_data"`
	ActionURL   string                 `json:"action_url"`
	Icon        string                 `json:"icon"`
	Priority    string                 `json:"priority"`
	ExpiresAt   *time.Time             `json:"expires_at"`
}

func (r SendNotificationRequest) toInput() entity.CreateNotificationInput {
	return entity.CreateNotificationInput{
		RecipientID: r.RecipientID,
		SenderID:    r.SenderID,
		Title:       r.Title,
		Body:        r.Body,
		Kind:        entity.NotificationKind(r.Kind),
		Category:    r.Category,
		ExtraData:   r.ExtraData,
		ActionURL:   r.ActionURL,
		Icon:        r.Icon,
		Priority:    entity.Priority(r.Priority),
		ExpiresAt:   r.ExpiresAt,
	}
}

type RenderNotificationRequest struct {
	TemplateCode string                 `json:"template_code" binding:"required"`
	RecipientID  string                 `json:"recipient_id"`
	Variables    map[string]interface{} `json:"variables"`
	SenderID     string                 `json:"sender_id"`
	ActionURL    string                 `json:"action_url"`
	Priority     string                 `json:"priority"`
	ExpiresAt    *time.Time             `json:"expires_at"`
}

type BroadcastRequest struct {
	Role       string `json:"role" binding:"required"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Message    string `json:"message" binding:"required"`
}

type SaveTemplateRequest struct {
	Code          string `json:"code"`
	TitleTemplate string `json:"title_template"`
	BodyTemplate  string `json:"body_template"`
	DefaultKind   string `json:"default_kind"`
	DefaultIcon   string `json:"default_icon"`
	Category      string `json:"category"`
	Active        *bool  `json:"active"`
}

// GetNotifications lists the caller's active notifications, newest first.
// @Summary      Get user notifications
// @Description  List the caller's active notifications, newest first
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of notifications to return (1-100, default 50)"
// @Param        offset query int false "Offset for pagination"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	limit := usecase.DefaultListLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > usecase.MaxListLimit {
		limit = usecase.MaxListLimit
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	notifications, total, err := h.notificationUseCase.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, h.logger, "get notifications", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetStats godoc
// @Summary      Get notification stats
// @Description  Total, read and unread counts of the caller's active notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/stats [get]
func (h *NotificationHandler) GetStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.notificationUseCase.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "get notification stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetNotification godoc
// @Summary      Get notification
// @Description  Get one of the caller's notifications by ID, including deleted ones
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/{id} [get]
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	notification, err := h.notificationUseCase.GetForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, h.logger, "get notification", err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// MarkRead answers 200 with changed=false for unknown, foreign or already read ids.
// @Summary      Mark notification as read
// @Description  Mark one notification as read; changed is false when nothing was updated
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	changed, err := h.notificationUseCase.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, h.logger, "mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// MarkAllRead godoc
// @Summary      Mark all notifications as read
// @Description  Mark every active unread notification of the caller as read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.notificationUseCase.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "mark notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// DeleteNotification godoc
// @Summary      Delete notification
// @Description  Soft delete one of the caller's notifications
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	changed, err := h.notificationUseCase.SoftDelete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, h.logger, "delete notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// SendNotification stores a notification and pushes it to the recipient's live connections.
// @Summary      Send notification
// @Description  Store a notification and push it to the recipient's live connections
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        request body SendNotificationRequest true "Notification"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/send [post]
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification, delivered, err := h.notifier.Notify(c.Request.Context(), req.toInput())
	if err != nil {
		writeError(c, h.logger, "send notification", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"notification": notification,
		"delivered":    delivered,
	})
}

// RenderNotification godoc
// @Summary      Send notification from template
// @Description  Render an active template, store the result and push it to the recipient
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        request body RenderNotificationRequest true "Template code and variables"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/render [post]
func (h *NotificationHandler) RenderNotification(c *gin.Context) {
	var req RenderNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	overrides := entity.CreateNotificationInput{
		SenderID:  req.SenderID,
		ActionURL: req.ActionURL,
		Priority:  entity.Priority(req.Priority),
		ExpiresAt: req.ExpiresAt,
	}
	notification, delivered, err := h.notifier.NotifyFromTemplate(c.Request.Context(), req.TemplateCode, req.RecipientID, req.Variables, overrides)
	if err != nil {
		writeError(c, h.logger, "render notification", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"notification": notification,
		"delivered":    delivered,
	})
}

// BroadcastNotification pushes a message to every connected user with a role. Nothing is stored.
// @Summary      Broadcast to a role
// @Description  Push a message to every connected user with the given role; nothing is stored
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        request body BroadcastRequest true "Role and message"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /notifications/broadcast [post]
func (h *NotificationHandler) BroadcastNotification(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required", "field": "role"})
		return
	}

	delivered := h.notifier.BroadcastByRole(c.Request.Context(), role, req.SenderID, req.SenderName, req.Message)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// GetGlobalStats godoc
// @Summary      Get global notification stats
// @Description  Counts across all recipients
// @Tags         internal
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/admin/stats [get]
func (h *NotificationHandler) GetGlobalStats(c *gin.Context) {
	stats, err := h.notificationUseCase.Stats(c.Request.Context(), "")
	if err != nil {
		writeError(c, h.logger, "get notification stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SaveTemplate godoc
// @Summary      Save template
// @Description  Create or replace a notification template by code
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        request body SaveTemplateRequest true "Template"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/templates [put]
func (h *NotificationHandler) SaveTemplate(c *gin.Context) {
	var req SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl := &entity.Template{
		Code:          req.Code,
		TitleTemplate: req.TitleTemplate,
		BodyTemplate:  req.BodyTemplate,
		DefaultKind:   entity.NotificationKind(req.DefaultKind),
		DefaultIcon:   req.DefaultIcon,
		Category:      req.Category,
		Active:        req.Active == nil || *req.Active,
	}
	if err := h.templates.SaveTemplate(c.Request.Context(), tmpl); err != nil {
		writeError(c, h.logger, "save template", err)
		return
	}

	h.logger.Info("Template %s saved (active=%t)", tmpl.Code, tmpl.Active)
	c.JSON(http.StatusOK, tmpl)
}
