package external

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"aml-monitor/internal/config"
	"aml-monitor/internal/models"
)

// Notifier delivers alert events to downstream consumers.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert *models.Alert) error
	Close() error
}

// AlertEvent is the wire format published for each new alert.
type AlertEvent struct {
	EventID       string    `json:"event_id"`
	AlertID       string    `json:"alert_id"`
	UserID        int64     `json:"user_id"`
	WalletID      string    `json:"wallet_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
}

// rabbitNotifier publishes alert events to a durable topic exchange. The
// routing key is alert.<severity>, so consumers can bind to only the bands
// they care about.
type rabbitNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
	retries  int
	delay    time.Duration
}

// NewRabbitNotifier connects to RabbitMQ and declares the alert exchange.
func NewRabbitNotifier(cfg config.RabbitMQConfig) (Notifier, error) {
	retries := cfg.RetryAttempts
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	n := &rabbitNotifier{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		retries:  retries,
		delay:    delay,
	}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *rabbitNotifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		n.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", n.exchange, err)
	}

	n.conn = conn
	n.channel = channel
	return nil
}

// NotifyAlert publishes the alert event, reconnecting once per attempt when
// the connection has been lost.
func (n *rabbitNotifier) NotifyAlert(ctx context.Context, alert *models.Alert) error {
	event := AlertEvent{
		EventID:     uuid.New().String(),
		AlertID:     alert.ID.Hex(),
		UserID:      alert.UserID,
		WalletID:    alert.WalletID.Hex(),
		Type:        string(alert.Type),
		Severity:    string(alert.Severity),
		Title:       alert.Title,
		Description: alert.Description,
		Timestamp:   time.Now().UTC(),
	}
	if alert.TransactionID != nil {
		event.TransactionID = alert.TransactionID.Hex()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	routingKey := fmt.Sprintf("alert.%s", alert.Severity)
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		MessageId:    event.EventID,
		DeliveryMode: amqp.Persistent,
	}

	var lastErr error
	for attempt := 0; attempt < n.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.delay):
			}
		}

		lastErr = n.publish(ctx, routingKey, publishing)
		if lastErr == nil {
			return nil
		}
		logrus.WithError(lastErr).WithField("attempt", attempt+1).
			Warn("Alert publish failed, retrying")
		n.reconnect()
	}
	return fmt.Errorf("failed to publish alert after %d attempts: %w", n.retries, lastErr)
}

func (n *rabbitNotifier) publish(ctx context.Context, routingKey string, publishing amqp.Publishing) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel == nil {
		return fmt.Errorf("channel is not open")
	}
	return n.channel.PublishWithContext(ctx, n.exchange, routingKey, false, false, publishing)
}

func (n *rabbitNotifier) reconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil && !n.conn.IsClosed() && n.channel != nil {
		return
	}
	if n.channel != nil {
		n.channel.Close()
		n.channel = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	if err := n.connect(); err != nil {
		logrus.WithError(err).Error("Failed to reconnect to RabbitMQ")
	}
}

func (n *rabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// nopNotifier drops every event. Used when the sink is disabled and in tests.
type nopNotifier struct{}

func NewNopNotifier() Notifier { return nopNotifier{} }

func (nopNotifier) NotifyAlert(context.Context, *models.Alert) error { return nil }
func (nopNotifier) Close() error                                     { return nil }
