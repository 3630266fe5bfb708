package notify

import (
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConn publishes to a NATS subject.
type NATSConn struct {
	idle
	ep   Endpoint
	conn *nats.Conn
}

func newNATSConn(ep Endpoint) *NATSConn {
	return &NATSConn{idle: idle{t: time.Now()}, ep: ep}
}

// Expired returns true if the connection has expired.
func (conn *NATSConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *NATSConn) close() {
	if conn.conn != nil {
		conn.conn.Close()
		conn.conn = nil
	}
}

// Send publishes msg on the subject.
func (conn *NATSConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if conn.conn == nil {
		opts := []nats.Option{nats.Timeout(time.Second), nats.Name("gwclose")}
		if conn.ep.NATS.User != "" && conn.ep.NATS.Pass != "" {
			opts = append(opts, nats.UserInfo(conn.ep.NATS.User, conn.ep.NATS.Pass))
		}
		if conn.ep.NATS.Token != "" {
			opts = append(opts, nats.Token(conn.ep.NATS.Token))
		}
		c, err := nats.Connect("nats://"+conn.ep.Addr(), opts...)
		if err != nil {
			return err
		}
		conn.conn = c
	}
	if err := conn.conn.Publish(conn.ep.Topic, []byte(msg)); err != nil {
		conn.close()
		return err
	}
	return nil
}
