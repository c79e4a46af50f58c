package mqtt

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/metrics"
	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
)

// EventRouter applies device events received on "<prefix>/<device>/events"
// to the device's occupancy session.
type EventRouter struct {
	manager *occupancy.Manager
	prefix  string
	metrics *metrics.Metrics
	log     *logrus.Entry
}

func NewEventRouter(manager *occupancy.Manager, prefix string, m *metrics.Metrics) *EventRouter {
	return &EventRouter{
		manager: manager,
		prefix:  prefix,
		metrics: m,
		log:     logging.Component("mqtt-events"),
	}
}

// Subscribe registers the router for every device's event topic.
func (r *EventRouter) Subscribe(ctx context.Context, client Client) error {
	return client.Subscribe(ctx, EventTopicFilter(r.prefix), r.Handle)
}

// Handle is the MessageHandler for event topics. Bad messages are logged
// and dropped; MQTT has no way to report them back.
func (r *EventRouter) Handle(topic string, payload []byte) {
	device, ok := DeviceFromEventTopic(r.prefix, topic)
	if !ok {
		r.log.WithField("topic", topic).Warn("event on unexpected topic")
		r.metrics.ObserveEvent("mqtt", occupancy.EventInvalid, occupancy.ErrInvalidEvent)
		return
	}

	var ev occupancy.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.log.WithError(err).WithField("device", device).Warn("undecodable event")
		r.metrics.ObserveEvent("mqtt", occupancy.EventInvalid, err)
		return
	}

	err := r.manager.Session(device).Apply(ev)
	r.metrics.ObserveEvent("mqtt", occupancy.EventLabel(ev.Type), err)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{"device": device, "type": ev.Type}).Warn("event rejected")
	}
}
