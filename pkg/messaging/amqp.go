package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"drivethru-server/pkg/metrics"
)

// AMQPMessage represents a message sent via AMQP
type AMQPMessage struct {
	ConversationID string                 `json:"conversation_id"`
	Payload        string                 `json:"payload"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Durable      bool
	AutoDelete   bool
}

// AMQPClient handles AMQP connections and message publishing
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	config.Durable = true
	config.AutoDelete = false

	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes a connection to the AMQP server
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, AMQP functionality will be disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
			return
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}

	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	c.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	c.channel = channel

	_, err = channel.QueueDeclare(
		c.config.QueueName,
		c.config.Durable,
		c.config.AutoDelete,
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	if err := channel.Qos(10, 0, false); err != nil {
		c.logger.WithError(err).Warn("Failed to set QoS on AMQP channel, continuing anyway")
	}

	c.connected = true
	metrics.SetAMQPConnectionStatus(true)
	c.logger.WithFields(logrus.Fields{
		"url":   c.config.URL,
		"queue": c.config.QueueName,
	}).Info("Connected to AMQP server")

	// Fresh stop channel in case this is a reconnect
	c.stopChan = make(chan struct{})

	go c.monitorConnection()

	return nil
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	c.connected = false
	metrics.SetAMQPConnectionStatus(false)
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishConversationPayload publishes a conversation payload to the AMQP queue
func (c *AMQPClient) PublishConversationPayload(payload, conversationID string, metadata map[string]interface{}) error {
	// Recover from any panics so AMQP issues never take down session handling
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"conversation_id": conversationID,
				"recover":         r,
			}).Error("Recovered from panic in AMQP publish")
		}
	}()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to AMQP server")
	}

	message := AMQPMessage{
		ConversationID: conversationID,
		Payload:        payload,
		Timestamp:      time.Now(),
		Metadata:       metadata,
	}

	bodyBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation message to JSON: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	publishChan := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			select {
			case <-ctx.Done():
				return
			case publishChan <- fmt.Errorf("lost AMQP connection before publishing"):
			}
			return
		}

		err := c.channel.Publish(
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // Mandatory
			false, // Immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         bodyBytes,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				// Expire stale analytics messages instead of letting the
				// queue build up when no consumer is attached
				Expiration: "43200000",
			},
		)

		select {
		case <-ctx.Done():
			return
		case publishChan <- err:
		}
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			metrics.RecordAMQPPublish("error")
			return fmt.Errorf("failed to publish conversation to AMQP: %w", err)
		}
	case <-ctx.Done():
		metrics.RecordAMQPPublish("timeout")
		return fmt.Errorf("publishing to AMQP timed out after 200ms")
	}

	metrics.RecordAMQPPublish("success")
	c.logger.WithField("conversation_id", conversationID).Debug("Successfully published conversation to AMQP")
	return nil
}

// monitorConnection monitors the AMQP connection and attempts to reconnect if it closes
func (c *AMQPClient) monitorConnection() {
	closeChan := make(chan *amqp.Error)

	c.connMutex.RLock()
	if c.conn != nil {
		c.conn.NotifyClose(closeChan)
	}
	c.connMutex.RUnlock()

	for {
		select {
		case <-c.stopChan:
			return
		case closeErr := <-closeChan:
			c.connMutex.Lock()
			c.connected = false
			c.connMutex.Unlock()
			metrics.SetAMQPConnectionStatus(false)

			c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

			for attempt := 1; attempt <= 10; attempt++ {
				c.logger.WithField("attempt", attempt).Info("Reconnecting to AMQP server")

				err := c.Connect()
				if err == nil {
					c.logger.Info("Successfully reconnected to AMQP server")
					break
				}

				c.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")

				backoff := time.Duration(1<<uint(attempt-1)) * time.Second
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}

				time.Sleep(backoff)
			}
		}
	}
}
