// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Notifications  *prometheus.CounterVec
	Events         *prometheus.CounterVec
	EventErrors    *prometheus.CounterVec
	Regions        prometheus.Gauge
	MQTTConnected  prometheus.Gauge
	MQTTPublishes  prometheus.Counter
	MQTTPublishErr prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geofence",
			Name:      "notifications_total",
			Help:      "Occupancy and connectivity notifications emitted, by kind.",
		}, []string{"kind"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geofence",
			Name:      "events_total",
			Help:      "Device events received, by source and type.",
		}, []string{"source", "type"}),
		EventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geofence",
			Name:      "event_errors_total",
			Help:      "Device events rejected, by source.",
		}, []string{"source"}),
		Regions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geofence",
			Name:      "regions",
			Help:      "Regions currently defined.",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geofence",
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 while connected to the MQTT broker.",
		}),
		MQTTPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geofence",
			Subsystem: "mqtt",
			Name:      "publishes_total",
			Help:      "Messages published to the MQTT broker.",
		}),
		MQTTPublishErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geofence",
			Subsystem: "mqtt",
			Name:      "publish_errors_total",
			Help:      "Failed MQTT publishes.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.Notifications, m.Events, m.EventErrors, m.Regions,
		m.MQTTConnected, m.MQTTPublishes, m.MQTTPublishErr,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveEvent counts one device event and, when err is set, one rejection.
func (m *Metrics) ObserveEvent(source, eventType string, err error) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(source, eventType).Inc()
	if err != nil {
		m.EventErrors.WithLabelValues(source).Inc()
	}
}
