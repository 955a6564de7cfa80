package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opsdash/pkg/config"
	"opsdash/pkg/database"
	"opsdash/pkg/logger"
	"opsdash/pkg/queue"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedUser struct {
	ID       string `gorm:"column:id"`
	Username string `gorm:"column:username"`
	Role     string `gorm:"column:role"`
}

var testUsers = []seedUser{
	{ID: "11111111-1111-4111-8111-111111111111", Username: "alice", Role: "operator"},
	{ID: "22222222-2222-4222-8222-222222222222", Username: "bob", Role: "operator"},
	{ID: "33333333-3333-4333-8333-333333333333", Username: "carla", Role: "supervisor"},
}

var testTemplates = []map[string]interface{}{
	{
		"code":           "shift_start",
		"title_template": "Hola {{nombre}}",
		"body_template":  "Tu turno en {{sala}} empieza a las {{hora}}",
		"default_kind":   "info",
		"default_icon":   "clock",
		"category":       "shifts",
	},
	{
		"code":           "incident_opened",
		"title_template": "Incident {{ticket}} opened",
		"body_template":  "{{service}} reported: {{summary}}",
		"default_kind":   "error",
		"default_icon":   "alert",
		"category":       "incidents",
	},
	{
		"code":           "report_ready",
		"title_template": "{{report}} is ready",
		"body_template":  "Your {{report}} report finished in {{duration}}",
		"default_kind":   "success",
		"default_icon":   "file",
		"category":       "reports",
	},
}

func main() {
	var withQueue bool
	flag.BoolVar(&withQueue, "queue", false, "also publish sample tasks to RabbitMQ")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	if err := seedUsers(db, log); err != nil {
		log.Error("Failed to seed users: %v", err)
		panic(err)
	}

	api := &apiClient{
		baseURL:    strings.TrimRight(cfg.NotificationServiceURL, "/") + "/api/v1/notifications",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if err := seedThroughAPI(api, log); err != nil {
		log.Error("Failed to seed notifications: %v", err)
		panic(err)
	}

	if withQueue {
		queueClient, err := queue.NewRabbitMQClient(cfg, log)
		if err != nil {
			log.Error("Failed to connect to RabbitMQ: %v", err)
			panic(err)
		}
		defer queueClient.Close()

		if err := seedQueue(queueClient, log); err != nil {
			log.Error("Failed to publish sample tasks: %v", err)
			panic(err)
		}
	}

	log.Info("Notification data seeded successfully!")
}

// seedUsers fills the users table so sender names resolve. Existing rows are kept.
func seedUsers(db *gorm.DB, log *logger.Logger) error {
	for _, user := range testUsers {
		res := db.Table("users").Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
		if res.Error != nil {
			return fmt.Errorf("failed to create user %s: %w", user.Username, res.Error)
		}
		if res.RowsAffected == 0 {
			log.Info("User %s already exists, skipping", user.Username)
			continue
		}
		log.Info("Created user: %s (%s)", user.Username, user.Role)
	}
	return nil
}

func seedThroughAPI(api *apiClient, log *logger.Logger) error {
	for _, tmpl := range testTemplates {
		if err := api.call(http.MethodPut, "/templates", tmpl, http.StatusOK); err != nil {
			return fmt.Errorf("failed to save template %s: %w", tmpl["code"], err)
		}
		log.Info("Saved template %s", tmpl["code"])
	}

	alice, bob, carla := testUsers[0], testUsers[1], testUsers[2]
	sends := []map[string]interface{}{
		{"recipient_id": alice.ID, "sender_id": carla.ID, "title": "Welcome", "body": "Your dashboard is ready", "kind": "success"},
		{"recipient_id": alice.ID, "title": "Disk usage", "body": "db-1 is at 85% capacity", "kind": "warning", "priority": "high"},
		{"recipient_id": bob.ID, "sender_id": alice.ID, "title": "Handover", "body": "Night shift notes are in the wiki", "action_url": "/wiki/handover"},
	}
	for _, body := range sends {
		if err := api.call(http.MethodPost, "/send", body, http.StatusCreated); err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
	}
	log.Info("Created %d notifications", len(sends))

	renders := []map[string]interface{}{
		{"template_code": "shift_start", "recipient_id": alice.ID, "variables": map[string]interface{}{"nombre": "Alice", "sala": "B", "hora": "08:00"}},
		{"template_code": "incident_opened", "recipient_id": carla.ID, "sender_id": bob.ID, "priority": "high",
			"variables": map[string]interface{}{"ticket": "INC-42", "service": "billing-api", "summary": "p99 latency above 2s"}},
	}
	for _, body := range renders {
		if err := api.call(http.MethodPost, "/render", body, http.StatusCreated); err != nil {
			return fmt.Errorf("failed to render %s: %w", body["template_code"], err)
		}
	}
	log.Info("Rendered %d templated notifications", len(renders))
	return nil
}

func seedQueue(queueClient *queue.Client, log *logger.Logger) error {
	tasks := []queue.Task{
		{
			Type:         queue.TaskTypeTemplate,
			RecipientID:  testUsers[1].ID,
			TemplateCode: "report_ready",
			Variables:    map[string]interface{}{"report": "Weekly uptime", "duration": "42s"},
		},
		{
			Type:        queue.TaskTypeCreate,
			RecipientID: testUsers[2].ID,
			Title:       "Backup finished",
			Body:        "Nightly backup completed without errors",
			Kind:        "success",
			Priority:    "low",
		},
	}
	for _, task := range tasks {
		if err := queueClient.PublishNotificationTask(task); err != nil {
			return err
		}
	}
	log.Info("Published %d tasks to %s", len(tasks), queue.NotificationQueueName)
	return nil
}

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func (c *apiClient) call(method, path string, body interface{}, wantStatus int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return nil
}
