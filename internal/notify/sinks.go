package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/EmpoweredVote/geofence-backend/internal/metrics"
)

// LogSink writes every notification to a logrus entry.
type LogSink struct {
	Log *logrus.Entry
}

func (s LogSink) Deliver(n Notification) {
	s.Log.WithFields(logrus.Fields{
		"device": n.DeviceID,
		"kind":   n.Kind,
		"name":   n.Name,
	}).Info("occupancy notification")
}

// MetricsSink counts notifications by kind.
type MetricsSink struct {
	Metrics *metrics.Metrics
}

func (s MetricsSink) Deliver(n Notification) {
	s.Metrics.Notifications.WithLabelValues(string(n.Kind)).Inc()
}
