package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BroadcastQueue is the queue name carrying broadcast jobs from the API
// to the headless worker
const BroadcastQueue = "broadcast_jobs"

// BroadcastJob describes one complete broadcast run to be executed by a
// worker: which students, which template, whether receipts ride along
type BroadcastJob struct {
	BroadcastID    string `json:"broadcast_id"`
	Template       string `json:"template"`
	StudentIDs     []int  `json:"student_ids"`
	AttachReceipts bool   `json:"attach_receipts"`
}

// Publisher publishes broadcast jobs to RabbitMQ
type Publisher struct {
	conn      *Connection
	queueName string
}

// NewPublisher creates a new publisher instance
func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	// Declare queue (durable, non-auto-delete, non-exclusive).
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}, nil
}

// PublishBroadcast publishes a broadcast job to the queue
func (p *Publisher) PublishBroadcast(job BroadcastJob) error {
	if job.BroadcastID == "" {
		return errors.New("broadcast ID cannot be empty")
	}
	if len(job.StudentIDs) == 0 {
		return errors.New("broadcast job must carry at least one student")
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast job: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.Publish(
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish broadcast job: %w", err)
	}

	return nil
}

// Close closes the publisher (no-op, connection managed externally)
func (p *Publisher) Close() error {
	return nil
}
