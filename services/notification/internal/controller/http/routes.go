package http

import (
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Notifications *NotificationHandler
	Push          *PushHandler
	WebSocket     *WebSocketHandler
	Queue         *QueueHandler
}

// RegisterRoutes mounts the notification API under api. auth guards the user
// routes and internal guards the service-to-service routes.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth, internal gin.HandlerFunc) {
	notifications := api.Group("/notifications")

	// WebSocket endpoint - handles authentication internally via query parameter
	notifications.GET("/ws", h.WebSocket.HandleWebSocket)

	protected := notifications.Group("")
	protected.Use(auth)
	{
		protected.GET("", h.Notifications.GetNotifications)
		protected.GET("/stats", h.Notifications.GetStats)
		protected.GET("/presence", h.WebSocket.GetPresence)
		protected.PUT("/read-all", h.Notifications.MarkAllRead)
		protected.POST("/push-subscriptions", h.Push.Subscribe)
		protected.GET("/push-subscriptions", h.Push.ListSubscriptions)
		protected.DELETE("/push-subscriptions", h.Push.Unsubscribe)
		protected.GET("/:id", h.Notifications.GetNotification)
		protected.PUT("/:id/read", h.Notifications.MarkRead)
		protected.DELETE("/:id", h.Notifications.DeleteNotification)
	}

	// Internal routes - called by other services, rate limited
	service := notifications.Group("")
	service.Use(internal)
	{
		service.POST("/send", h.Notifications.SendNotification)
		service.POST("/render", h.Notifications.RenderNotification)
		service.POST("/broadcast", h.Notifications.BroadcastNotification)
		service.GET("/admin/stats", h.Notifications.GetGlobalStats)
		service.PUT("/templates", h.Notifications.SaveTemplate)
		if h.Queue != nil {
			service.POST("/enqueue", h.Queue.Enqueue)
			service.GET("/admin/queue", h.Queue.QueueStatus)
		}
	}
}
