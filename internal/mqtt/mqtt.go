// Package mqtt connects the service to an MQTT broker: device events come in
// on it and occupancy notifications go out on it.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client defines the broker operations the service needs.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic. Subscriptions survive reconnects.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// MessageHandler receives one message. It runs on the client's goroutine.
type MessageHandler func(topic string, payload []byte)

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// DefaultTopicPrefix roots every topic of the service.
const DefaultTopicPrefix = "geofence"

// NotificationTopic is where notifications for deviceID are published.
func NotificationTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/notifications", prefix, deviceID)
}

// EventTopicFilter matches the event topic of every device.
func EventTopicFilter(prefix string) string {
	return prefix + "/+/events"
}

// DeviceFromEventTopic extracts the device id from "<prefix>/<device>/events".
func DeviceFromEventTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	device, ok := strings.CutSuffix(rest, "/events")
	if !ok || device == "" || strings.Contains(device, "/") {
		return "", false
	}
	return device, true
}
