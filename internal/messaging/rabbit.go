// internal/messaging/rabbit.go
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"roomsync/internal/model"
)

const (
	RequestQueue    = "roomsync_requests"
	RequestDLQ      = "roomsync_requests_dlq"
	ReportQueue     = "roomsync_reports"
	jsonContentType = "application/json"
)

// RunRequest asks the service to start a reconciliation run.
type RunRequest struct {
	DryRun      bool   `json:"dry_run"`
	RequestedBy string `json:"requested_by"`
}

type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

func NewRabbitClient(url string, logger *zap.Logger) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitClient{
		conn:    conn,
		channel: ch,
		logger:  logger.Named("rabbit"),
	}, nil
}

// DeclareQueues creates the durable request queue (dead-lettering into
// RequestDLQ) and the report queue.
func (r *RabbitClient) DeclareQueues() error {
	_, err := r.channel.QueueDeclare(
		RequestDLQ,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": RequestDLQ,
	}
	_, err = r.channel.QueueDeclare(
		RequestQueue,
		true, false, false, false,
		args,
	)
	if err != nil {
		return fmt.Errorf("declare request queue: %w", err)
	}

	_, err = r.channel.QueueDeclare(
		ReportQueue,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare report queue: %w", err)
	}

	r.logger.Info("queues declared",
		zap.String("requests", RequestQueue),
		zap.String("dlq", RequestDLQ),
		zap.String("reports", ReportQueue))
	return nil
}

// Publish sends body to queue through the default exchange.
func (r *RabbitClient) Publish(queue string, body []byte) error {
	err := r.channel.Publish(
		"",    // default exchange
		queue, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType:  jsonContentType,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	return nil
}

// PublishReport announces a finished run on ReportQueue.
func (r *RabbitClient) PublishReport(report *model.Report) error {
	body, err := EncodeReport(report)
	if err != nil {
		return err
	}
	return r.Publish(ReportQueue, body)
}

func (r *RabbitClient) PublishRequest(req RunRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode run request: %w", err)
	}
	return r.Publish(RequestQueue, body)
}

// Consume opens a dedicated channel with prefetch 1 and starts a manual-ack
// consumer on queue.
func (r *RabbitClient) Consume(queue, consumerTag string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck: false to handle manually
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}
	return ch, msgs, nil
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	if err := r.conn.Close(); err != nil {
		return err
	}
	return nil
}

// EncodeReport strips per-room decisions for kept rooms, which carry no
// information for report consumers.
func EncodeReport(report *model.Report) ([]byte, error) {
	out := *report
	out.Repair.Decisions = make([]model.Decision, 0, len(report.Repair.Decisions))
	for _, d := range report.Repair.Decisions {
		if d.Action != model.ActionKept {
			out.Repair.Decisions = append(out.Repair.Decisions, d)
		}
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return body, nil
}

// DecodeRunRequest parses a request body. An empty body is a plain run.
func DecodeRunRequest(body []byte) (RunRequest, error) {
	var req RunRequest
	if len(body) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("decode run request: %w", err)
	}
	return req, nil
}
