package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/notify"
)

// Publisher is a notify.Sink that forwards notifications to the broker from
// its own goroutine. When the queue is full, or after Close, notifications are
// dropped.
type Publisher struct {
	client Client
	prefix string
	log    *logrus.Entry

	mu     sync.RWMutex
	closed bool
	queue  chan notify.Notification
	done   chan struct{}
}

// NewPublisher starts the publishing goroutine. Close stops it.
func NewPublisher(client Client, prefix string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &Publisher{
		client: client,
		prefix: prefix,
		log:    logging.Component("mqtt-publisher"),
		queue:  make(chan notify.Notification, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) Deliver(n notify.Notification) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- n:
	default:
		p.log.WithField("device", n.DeviceID).Warn("notification queue full, dropping")
	}
}

// Close drains the queue and stops the goroutine.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for n := range p.queue {
		if !p.client.IsConnected() {
			continue
		}
		payload, err := json.Marshal(n)
		if err != nil {
			p.log.WithError(err).Error("encode notification")
			continue
		}
		if err := p.client.Publish(context.Background(), NotificationTopic(p.prefix, n.DeviceID), payload); err != nil {
			p.log.WithError(err).WithField("device", n.DeviceID).Warn("publish notification")
		}
	}
}
