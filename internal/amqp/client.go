package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 60 * time.Second
)

// ErrCircuitOpen is returned when publishing is suspended after repeated
// broker failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes and consumes budget alert messages over a durable direct
// exchange. Publishing is guarded by a small circuit breaker so a dead
// broker degrades alert delivery without stalling request handling.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	log          *applog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  int64 // unix nanos, accessed atomically
}

func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          logger.WithComponent(applog.ComponentAMQP),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("bind queue: %w", err)
	}

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = conn, channel
	return nil
}

// PublishAlert sends one alert message, reconnecting once on connection
// errors. When the circuit is open the message is dropped with ErrCircuitOpen.
func (c *Client) PublishAlert(ctx context.Context, msg *AlertMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal alert message: %w", err)
	}

	err = c.publish(ctx, body)
	if err != nil && isConnectionError(err) {
		if rerr := c.connect(); rerr == nil {
			err = c.publish(ctx, body)
		}
	}
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish alert: %w", err)
	}
	c.recordSuccess()

	c.log.InfoContext(ctx, "alert published",
		applog.FieldMessageID, msg.MessageID,
		applog.FieldUserID, msg.UserID,
		applog.FieldAlertType, msg.AlertType)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errors.New("connection closed")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
}

// ConsumeAlerts delivers queued alert messages to handler until the context
// ends. Malformed messages are dropped; handler failures requeue.
func (c *Client) ConsumeAlerts(ctx context.Context, handler func(context.Context, *AlertMessage) error) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.InfoContext(ctx, "consuming alert messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.log.InfoContext(ctx, "stopping alert consumption", applog.FieldError, ctx.Err().Error())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			msg, err := AlertMessageFromJSON(delivery.Body)
			if err != nil {
				c.log.ErrorContext(ctx, "unmarshal alert message failed", applog.FieldError, err.Error())
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				c.log.ErrorContext(ctx, "alert handler failed",
					applog.FieldError, err.Error(),
					applog.FieldMessageID, msg.MessageID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
			c.log.InfoContext(ctx, "alert processed", applog.FieldMessageID, msg.MessageID)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	state := atomic.LoadInt32(&c.state)
	if state != StateOpen {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&c.lastFailure))
	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	atomic.StoreInt64(&c.lastFailure, time.Now().UnixNano())
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns the reconnect delay for the given attempt,
// capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	return time.Duration(1<<attempt) * time.Second
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Reconnect dials the broker again with exponential backoff, for workers
// that must survive broker restarts.
func (c *Client) Reconnect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.connect(); err == nil {
			c.recordSuccess()
			return nil
		} else {
			c.log.WarnContext(ctx, "reconnect failed",
				applog.FieldError, err.Error(), "attempt", attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
	}
}
