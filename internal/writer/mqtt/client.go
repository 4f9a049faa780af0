// internal/writer/mqtt/client.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timeout waiting for broker")

type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// Last will, published by the broker when the connection drops.
	WillTopic   string
	WillPayload string
	WillQoS     byte

	KeepAlive      time.Duration
	PublishTimeout time.Duration

	// OnConnect runs after every (re)connect.
	OnConnect func()
}

// Client is a single broker connection with automatic reconnect.
// Publishes block until acknowledged or PublishTimeout elapses.
type Client struct {
	c       paho.Client
	timeout time.Duration
	log     zerolog.Logger
}

// New builds an unconnected client.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt client: broker required")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetCleanSession(true)

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, cfg.WillQoS, true)
	}

	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info().Str("broker", cfg.BrokerURL).Msg("connected to MQTT broker")
		if cfg.OnConnect != nil {
			cfg.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	timeout := cfg.PublishTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		c:       paho.NewClient(opts),
		timeout: timeout,
		log:     log,
	}, nil
}

// Connect waits for the first connection until ctx is done.
// With connect-retry enabled paho keeps trying in the background.
func (c *Client) Connect(ctx context.Context) error {
	token := c.c.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	}
}

// Publish sends one message and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, qos byte, retain bool, payload []byte) error {
	token := c.c.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Connected reports the current broker connection state.
func (c *Client) Connected() bool {
	return c.c.IsConnectionOpen()
}

// Close disconnects, waiting up to quiesce for in-flight work.
func (c *Client) Close(quiesce time.Duration) {
	c.c.Disconnect(uint(quiesce / time.Millisecond))
}
