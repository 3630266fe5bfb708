package notify

import (
	"net"
	"time"

	"github.com/streadway/amqp"
)

// AMQPConn publishes to an AMQP exchange bound to a queue of the same name.
type AMQPConn struct {
	idle
	ep      Endpoint
	conn    *amqp.Connection
	channel *amqp.Channel
}

func newAMQPConn(ep Endpoint) *AMQPConn {
	return &AMQPConn{idle: idle{t: time.Now()}, ep: ep}
}

// Expired returns true if the connection has expired.
func (conn *AMQPConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *AMQPConn) close() {
	if conn.conn != nil {
		conn.conn.Close()
		conn.conn = nil
		conn.channel = nil
	}
}

func (conn *AMQPConn) dial() error {
	prefix := "amqp://"
	if conn.ep.AMQP.SSL {
		prefix = "amqps://"
	}
	var cfg amqp.Config
	cfg.Dial = func(network, addr string) (net.Conn, error) {
		return net.DialTimeout(network, addr, time.Second)
	}
	c, err := amqp.DialConfig(prefix+conn.ep.AMQP.URI, cfg)
	if err != nil {
		return err
	}
	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return err
	}
	a := conn.ep.AMQP
	if err := ch.ExchangeDeclare(conn.ep.Topic, a.Type, a.Durable,
		a.AutoDelete, a.Internal, a.NoWait, nil); err != nil {
		c.Close()
		return err
	}
	if _, err := ch.QueueDeclare(conn.ep.Topic, a.Durable, a.AutoDelete,
		false, a.NoWait, nil); err != nil {
		c.Close()
		return err
	}
	if err := ch.QueueBind(conn.ep.Topic, a.RouteKey, conn.ep.Topic,
		a.NoWait, nil); err != nil {
		c.Close()
		return err
	}
	conn.conn = c
	conn.channel = ch
	return nil
}

// Send publishes msg with the configured routing key.
func (conn *AMQPConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if conn.conn == nil {
		if err := conn.dial(); err != nil {
			return err
		}
	}
	err := conn.channel.Publish(conn.ep.Topic, conn.ep.AMQP.RouteKey,
		conn.ep.AMQP.Mandatory, conn.ep.AMQP.Immediate,
		amqp.Publishing{
			Headers:      amqp.Table{},
			ContentType:  "application/json",
			Body:         []byte(msg),
			DeliveryMode: conn.ep.AMQP.DeliveryMode,
		},
	)
	if err != nil {
		conn.close()
	}
	return err
}
