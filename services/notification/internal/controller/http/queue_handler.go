package http

import (
	"net/http"

	"opsdash/pkg/logger"
	"opsdash/pkg/queue"

	"github.com/gin-gonic/gin"
)

// TaskQueue is the producer side of the notification queue.
type TaskQueue interface {
	PublishNotificationTask(task queue.Task) error
	GetQueueLength() (int, error)
}

type QueueHandler struct {
	queue  TaskQueue
	logger *logger.Logger
}

func NewQueueHandler(queue TaskQueue, logger *logger.Logger) *QueueHandler {
	return &QueueHandler{
		queue:  queue,
		logger: logger,
	}
}

// Enqueue accepts a task for asynchronous processing by the queue consumer.
// @Summary      Enqueue notification task
// @Description  Publish a create or template task for the queue consumer
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        task body queue.Task true "Task"
// @Success      202  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /notifications/enqueue [post]
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var task queue.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if task.Type == "" {
		task.Type = queue.TaskTypeCreate
	}
	if task.Type != queue.TaskTypeCreate && task.Type != queue.TaskTypeTemplate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be create or template"})
		return
	}
	if task.RecipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required", "field": "recipient_id"})
		return
	}

	if err := h.queue.PublishNotificationTask(task); err != nil {
		h.logger.Error("Failed to enqueue notification task: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue notification"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Notification queued"})
}

// QueueStatus godoc
// @Summary      Get queue length
// @Description  Number of tasks waiting in the notification queue
// @Tags         internal
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /notifications/admin/queue [get]
func (h *QueueHandler) QueueStatus(c *gin.Context) {
	length, err := h.queue.GetQueueLength()
	if err != nil {
		h.logger.Error("Failed to get queue length: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get queue length"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue_length": length})
}
