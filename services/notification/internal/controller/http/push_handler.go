package http

import (
	"net/http"

	"opsdash/pkg/logger"
	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
)

type PushHandler struct {
	pushUseCase usecase.PushUseCase
	logger      *logger.Logger
}

func NewPushHandler(pushUseCase usecase.PushUseCase, logger *logger.Logger) *PushHandler {
	return &PushHandler{
		pushUseCase: pushUseCase,
		logger:      logger,
	}
}

type SubscribeRequest struct {
	Endpoint     string          `json:"endpoint" binding:"required"`
	Keys         entity.PushKeys `json:"keys"`
	DeviceLabel  string          `json:"device_label"`
	BrowserLabel string          `json:"browser_label"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// Subscribe godoc
// @Summary      Subscribe to push
// @Description  Create or refresh a browser push subscription for the caller
// @Tags         push
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SubscribeRequest true "Push subscription"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/push-subscriptions [post]
func (h *PushHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.pushUseCase.UpsertPushSubscription(c.Request.Context(), userID, req.Endpoint, req.Keys, req.DeviceLabel, req.BrowserLabel)
	if err != nil {
		writeError(c, h.logger, "store push subscription", err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// ListSubscriptions godoc
// @Summary      List push subscriptions
// @Description  List the caller's active push subscriptions
// @Tags         push
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/push-subscriptions [get]
func (h *PushHandler) ListSubscriptions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	subs, err := h.pushUseCase.ListActive(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "list push subscriptions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// Unsubscribe godoc
// @Summary      Unsubscribe from push
// @Description  Deactivate the caller's push subscription for an endpoint
// @Tags         push
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UnsubscribeRequest true "Endpoint"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/push-subscriptions [delete]
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changed, err := h.pushUseCase.Unsubscribe(c.Request.Context(), userID, req.Endpoint)
	if err != nil {
		writeError(c, h.logger, "remove push subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}
