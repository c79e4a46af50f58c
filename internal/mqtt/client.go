package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/metrics"
)

// client implements the Client interface.
type client struct {
	config         Config
	internalClient paho.Client
	metrics        *metrics.Metrics
	log            *logrus.Entry

	mu            sync.Mutex
	subscriptions map[string]MessageHandler

	newPaho    func(*paho.ClientOptions) paho.Client
	lookupHost func(ctx context.Context, host string) ([]string, error)
}

// NewClient creates a new MQTT client with the provided configuration.
// metrics may be nil.
func NewClient(cfg Config, m *metrics.Metrics) Client {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	return &client{
		config:        cfg,
		metrics:       m,
		log:           logging.Component("mqtt"),
		subscriptions: make(map[string]MessageHandler),
		newPaho:       paho.NewClient,
		lookupHost:    net.DefaultResolver.LookupHost,
	}
}

// Connect starts connecting to the broker. The paho client is always created,
// so when the broker cannot be reached yet, paho keeps retrying in the
// background and the returned error only reports the first attempt.
func (c *client) Connect(ctx context.Context) error {
	if err := c.checkBroker(ctx); err != nil {
		c.log.WithError(err).Warn("MQTT broker check failed, connecting anyway")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetMaxReconnectInterval(5 * time.Minute)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.mu.Lock()
	if c.internalClient != nil {
		c.mu.Unlock()
		return fmt.Errorf("MQTT client already started")
	}
	c.internalClient = c.newPaho(opts)
	internal := c.internalClient
	c.mu.Unlock()

	token := internal.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return fmt.Errorf("connection timeout, retrying in background")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	return nil
}

// checkBroker reports an unparsable broker URL or an unresolvable host early.
func (c *client) checkBroker(ctx context.Context) error {
	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}
	if _, err := c.lookupHost(ctx, host); err != nil {
		return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
	}
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	token := internal.Publish(topic, 1, false, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		c.observePublish(false)
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		c.observePublish(false)
		return err
	}
	c.observePublish(true)
	return nil
}

// Subscribe registers handler and subscribes right away when connected.
func (c *client) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return nil
	}
	return c.subscribe(ctx, internal, topic, handler)
}

func (c *client) subscribe(ctx context.Context, internal paho.Client, topic string, handler MessageHandler) error {
	token := internal.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	return token.Error()
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()
	// Also stops a connect retry loop that never succeeded.
	if internal != nil {
		internal.Disconnect(250)
	}
	c.setConnected(false)
}

// onConnect restores subscriptions; with a clean session the broker forgets
// them on every reconnect.
func (c *client) onConnect(internal paho.Client) {
	c.log.Infof("Connected to MQTT broker: %s", c.config.Broker)
	c.setConnected(true)

	c.mu.Lock()
	subs := make(map[string]MessageHandler, len(c.subscriptions))
	for topic, h := range c.subscriptions {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		if err := c.subscribe(context.Background(), internal, topic, h); err != nil {
			c.log.WithError(err).Errorf("Failed to subscribe to %s", topic)
		}
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.WithError(err).Warnf("Connection to MQTT broker lost: %s", c.config.Broker)
	c.setConnected(false)
}

func (c *client) setConnected(up bool) {
	if c.metrics == nil {
		return
	}
	if up {
		c.metrics.MQTTConnected.Set(1)
	} else {
		c.metrics.MQTTConnected.Set(0)
	}
}

func (c *client) observePublish(ok bool) {
	if c.metrics == nil {
		return
	}
	if ok {
		c.metrics.MQTTPublishes.Inc()
	} else {
		c.metrics.MQTTPublishErr.Inc()
	}
}

// waitToken waits for token until timeout or ctx ends.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
