package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer consumes broadcast jobs from RabbitMQ
type Consumer struct {
	conn      *Connection
	queueName string
	handler   JobHandler
	log       zerolog.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// JobHandler processes one broadcast job. A returned error nack-requeues
// the job; nil acks it.
type JobHandler func(job *BroadcastJob) error

// NewConsumer creates a new consumer instance
func NewConsumer(conn *Connection, queueName string, handler JobHandler, log zerolog.Logger) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	// Same declare settings as the publisher: durable, non-auto-delete.
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

	return &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		log:       log.With().Str("component", "queue.consumer").Logger(),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}, nil
}

// Start starts consuming broadcast jobs from the queue
func (c *Consumer) Start() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	// One broadcast at a time: a run can take minutes, so prefetching
	// more would only hold jobs hostage.
	err = ch.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual acknowledgement)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		defer close(c.doneChan)

		for {
			select {
			case <-c.stopChan:
				c.log.Info().Msg("consumer stopping")
				return
			case d, ok := <-msgs:
				if !ok {
					c.log.Warn().Msg("delivery channel closed")
					return
				}

				c.processDelivery(d)
			}
		}
	}()

	c.log.Info().Str("queue", c.queueName).Msg("consumer started")
	return nil
}

// Stop stops consuming gracefully
func (c *Consumer) Stop() error {
	close(c.stopChan)
	<-c.doneChan
	c.log.Info().Msg("consumer stopped")
	return nil
}

func (c *Consumer) processDelivery(d amqp.Delivery) {
	job, err := decodeJob(d.Body)
	if err != nil {
		// A payload that cannot be decoded will never succeed;
		// requeueing it would poison the queue.
		c.log.Error().Err(err).Msg("dropping malformed broadcast job")
		d.Nack(false, false)
		return
	}

	if err := c.handler(job); err != nil {
		c.log.Error().Err(err).Msg("error processing broadcast job, requeueing")
		d.Nack(false, true)
		return
	}

	d.Ack(false)
}

func decodeJob(body []byte) (*BroadcastJob, error) {
	var job BroadcastJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal broadcast job: %w", err)
	}
	return &job, nil
}
