package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Manager keeps one connection per endpoint url and drops connections that
// have been idle too long.
type Manager struct {
	mu        sync.Mutex
	conns     map[string]Conn
	endpoints []string
	dial      func(ep Endpoint) Conn
}

// NewManager validates the endpoints that Broadcast sends to.
func NewManager(endpoints []string) (*Manager, error) {
	var errs error
	for _, s := range endpoints {
		if _, err := Parse(s); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("endpoint %s: %w", s, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return &Manager{
		conns:     make(map[string]Conn),
		endpoints: append([]string(nil), endpoints...),
		dial:      dial,
	}, nil
}

func dial(ep Endpoint) Conn {
	switch ep.Protocol {
	case Redis:
		return newRedisConn(ep)
	case NATS:
		return newNATSConn(ep)
	case Kafka:
		return newKafkaConn(ep)
	case MQTT:
		return newMQTTConn(ep)
	case AMQP:
		return newAMQPConn(ep)
	case SQS:
		return newSQSConn(ep)
	case PubSub:
		return newPubSubConn(ep)
	case EventHub:
		return newEventHubConn(ep)
	}
	return newHTTPConn(ep)
}

// Endpoints returns the broadcast endpoints.
func (m *Manager) Endpoints() []string {
	return append([]string(nil), m.endpoints...)
}

// Run drops expired connections every second until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for endpoint, conn := range m.conns {
		if conn.Expired() {
			delete(m.conns, endpoint)
		}
	}
}

// Send sends msg to a single endpoint.
func (m *Manager) Send(endpoint, msg string) error {
	for {
		m.mu.Lock()
		conn, exists := m.conns[endpoint]
		if !exists || conn.Expired() {
			ep, err := Parse(endpoint)
			if err != nil {
				m.mu.Unlock()
				return err
			}
			conn = m.dial(ep)
			m.conns[endpoint] = conn
		}
		m.mu.Unlock()
		err := conn.Send(msg)
		if err == errExpired {
			// expired between the check and the send
			continue
		}
		return err
	}
}

// Broadcast sends msg to every endpoint concurrently. Failures are collected
// into one error.
func (m *Manager) Broadcast(msg string) error {
	errs := make([]error, len(m.endpoints))
	var wg sync.WaitGroup
	for i, endpoint := range m.endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			if err := m.Send(endpoint, msg); err != nil {
				errs[i] = fmt.Errorf("%s: %w", endpoint, err)
			}
		}(i, endpoint)
	}
	wg.Wait()
	var result error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
