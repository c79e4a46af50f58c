package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubToken is a paho.Token that is either finished or never finishes.
type stubToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *stubToken {
	t := &stubToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *stubToken { return &stubToken{done: make(chan struct{})} }

func (t *stubToken) Wait() bool {
	<-t.done
	return true
}

func (t *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *stubToken) Done() <-chan struct{} { return t.done }
func (t *stubToken) Error() error { return t.err }

type stubMessage struct {
	topic   string
	payload []byte
}

func (m stubMessage) Duplicate() bool { return false }
func (m stubMessage) Qos() byte { return 1 }
func (m stubMessage) Retained() bool { return false }
func (m stubMessage) Topic() string { return m.topic }
func (m stubMessage) MessageID() uint16 { return 1 }
func (m stubMessage) Payload() []byte { return m.payload }
func (m stubMessage) Ack() {}

// pahoStub stands in for a paho client whose broker is not reachable until
// the test says so.
type pahoStub struct {
	mu           sync.Mutex
	opts         *paho.ClientOptions
	connected    bool
	disconnected bool
	routes       map[string]paho.MessageHandler
}

func (p *pahoStub) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
func (p *pahoStub) IsConnectionOpen() bool { return p.IsConnected() }
func (p *pahoStub) Connect() paho.Token { return pendingToken() }
func (p *pahoStub) Disconnect(uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	p.disconnected = true
}
func (p *pahoStub) Publish(string, byte, bool, interface{}) paho.Token { return doneToken(nil) }
func (p *pahoStub) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[topic] = cb
	return doneToken(nil)
}
func (p *pahoStub) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return doneToken(errors.New("not supported"))
}
func (p *pahoStub) Unsubscribe(...string) paho.Token { return doneToken(nil) }
func (p *pahoStub) AddRoute(string, paho.MessageHandler) {}
func (p *pahoStub) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func newTestClient(broker string, lookupErr error) (*client, *pahoStub) {
	stub := &pahoStub{routes: make(map[string]paho.MessageHandler)}
	c := NewClient(Config{Broker: broker, ClientID: "test", ConnectTimeout: 20 * time.Millisecond}, nil).(*client)
	c.newPaho = func(opts *paho.ClientOptions) paho.Client {
		stub.opts = opts
		return stub
	}
	c.lookupHost = func(context.Context, string) ([]string, error) {
		return nil, lookupErr
	}
	return c, stub
}

func TestConnectKeepsRetryingWhenHostDoesNotResolve(t *testing.T) {
	c, stub := newTestClient("tcp://no-such-broker.invalid:1883", errors.New("no such host"))

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrying")
	require.NotNil(t, stub.opts)
	assert.True(t, stub.opts.ConnectRetry)
	assert.True(t, stub.opts.AutoReconnect)
	assert.False(t, c.IsConnected())

	var got []string
	require.NoError(t, c.Subscribe(context.Background(), "geofence/+/events", func(topic string, _ []byte) {
		got = append(got, topic)
	}))
	assert.Empty(t, stub.routes)

	// The broker becomes reachable and paho reports the connection.
	stub.mu.Lock()
	stub.connected = true
	stub.mu.Unlock()
	c.onConnect(stub)

	assert.True(t, c.IsConnected())
	cb, ok := stub.routes["geofence/+/events"]
	require.True(t, ok)
	cb(stub, stubMessage{topic: "geofence/phone-1/events"})
	assert.Equal(t, []string{"geofence/phone-1/events"}, got)

	c.Disconnect()
	assert.True(t, stub.disconnected)
}

func TestConnectWithUnparsableBrokerStillStartsClient(t *testing.T) {
	c, stub := newTestClient("tcp://%zz", nil)

	assert.Error(t, c.Connect(context.Background()))
	assert.NotNil(t, stub.opts)

	assert.Error(t, c.Connect(context.Background()), "a second Connect must not replace the client")
}

func TestDisconnectStopsClientThatNeverConnected(t *testing.T) {
	c, stub := newTestClient("tcp://127.0.0.1:1883", nil)
	require.Error(t, c.Connect(context.Background()))

	c.Disconnect()

	assert.True(t, stub.disconnected)
}
