package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"opsdash/pkg/config"
	"opsdash/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	NotificationQueueName  = "notification_queue"
	NotificationExchange   = "notifications"
	NotificationRoutingKey = "notification.create"
)

const (
	TaskTypeCreate   = "create"
	TaskTypeTemplate = "template"
)

// ErrMalformedTask marks a task that can never succeed; it is dropped instead of requeued.
var ErrMalformedTask = errors.New("malformed notification task")

// Task is a request from a producer to persist and deliver one notification.
type Task struct {
	Type         string                 `json:"type"`
	RecipientID  string                 `json:"recipient_id"`
	SenderID     string                 `json:"sender_id,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Body         string                 `json:"body,omitempty"`
	Kind         string                 `json:"kind,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Icon         string                 `json:"icon,omitempty"`
	Priority     string                 `json:"priority,omitempty"`
	ActionURL    string                 `json:"action_url,omitempty"`
	ExpiresAt    *time.Time             `json:"expires_at,omitempty"`
	ExtraData    map[string]interface{} `json:"extra_data,omitempty"`
	TemplateCode string                 `json:"template_code,omitempty"`
	Variables    map[string]interface{} `json:"variables,omitempty"`
}

// TaskHandler processes one decoded task.
type TaskHandler func(task Task) error

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
}

func NewRabbitMQClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQUser,
		cfg.RabbitMQPassword,
		cfg.RabbitMQHost,
		cfg.RabbitMQPort,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		NotificationExchange, // name
		"direct",             // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		NotificationQueueName, // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		amqp.Table{
			"x-max-priority": 10,
		},
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		NotificationQueueName,  // queue name
		NotificationRoutingKey, // routing key
		NotificationExchange,   // exchange
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	log.Info("[QUEUE] Connected to RabbitMQ at %s:%s", cfg.RabbitMQHost, cfg.RabbitMQPort)

	return &Client{
		conn:    conn,
		channel: channel,
		logger:  log,
	}, nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// MessagePriority maps a notification priority onto the 0-10 queue priority range.
func MessagePriority(priority string) uint8 {
	switch priority {
	case "high":
		return 9
	case "low":
		return 1
	default:
		return 5
	}
}

// PublishNotificationTask publishes a task to the notification queue.
func (c *Client) PublishNotificationTask(task Task) error {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = c.channel.Publish(
		NotificationExchange,   // exchange
		NotificationRoutingKey, // routing key
		false,                  // mandatory
		false,                  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         taskJSON,
			Priority:     MessagePriority(task.Priority),
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("[QUEUE] Failed to publish task to exchange=%s: %v", NotificationExchange, err)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Info("[QUEUE] Published %s task for recipient %s", task.Type, task.RecipientID)
	return nil
}

// ConsumeNotificationTasks starts a goroutine handling deliveries until the channel closes.
func (c *Client) ConsumeNotificationTasks(handler TaskHandler) error {
	msgs, err := c.channel.Consume(
		NotificationQueueName, // queue
		"",                    // consumer
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,                   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[QUEUE] Started consuming from %s", NotificationQueueName)

	go func() {
		for msg := range msgs {
			HandleDelivery(msg, handler, c.logger)
		}
		c.logger.Warn("[QUEUE] Delivery channel closed, consumer stopped")
	}()

	return nil
}

// RequeueDelay is how long a failed task waits before it goes back on the queue.
var RequeueDelay = 2 * time.Second

// HandleDelivery decodes one delivery, runs handler and acks or nacks it.
// Malformed tasks are dropped. Other handler failures are requeued once after
// RequeueDelay; a redelivered task that fails again is dropped.
func HandleDelivery(msg amqp.Delivery, handler TaskHandler, log *logger.Logger) {
	task, err := DecodeTask(msg.Body)
	if err != nil {
		log.Error("[QUEUE] Dropping undecodable task: %v, body=%s", err, string(msg.Body))
		_ = msg.Nack(false, false)
		return
	}

	if err := handler(task); err != nil {
		if errors.Is(err, ErrMalformedTask) {
			log.Error("[QUEUE] Dropping task for recipient %s: %v", task.RecipientID, err)
			_ = msg.Nack(false, false)
			return
		}
		if msg.Redelivered {
			log.Error("[QUEUE] Dropping task for recipient %s after redelivery: %v", task.RecipientID, err)
			_ = msg.Nack(false, false)
			return
		}
		log.Error("[QUEUE] Handler failed for recipient %s, requeueing in %s: %v", task.RecipientID, RequeueDelay, err)
		time.Sleep(RequeueDelay)
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}

// DecodeTask parses a task body; type defaults to create.
func DecodeTask(body []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if task.Type == "" {
		task.Type = TaskTypeCreate
	}
	switch task.Type {
	case TaskTypeCreate, TaskTypeTemplate:
	default:
		return Task{}, fmt.Errorf("%w: unknown type %q", ErrMalformedTask, task.Type)
	}
	return task, nil
}

// GetQueueLength returns the number of messages in the queue
func (c *Client) GetQueueLength() (int, error) {
	queue, err := c.channel.QueueInspect(NotificationQueueName)
	if err != nil {
		return 0, err
	}
	return queue.Messages, nil
}
