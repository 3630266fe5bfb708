package notify

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const mqttPublishTimeout = time.Second * 5

// MQTTConn publishes to an MQTT topic.
type MQTTConn struct {
	idle
	ep   Endpoint
	conn paho.Client
}

func newMQTTConn(ep Endpoint) *MQTTConn {
	return &MQTTConn{idle: idle{t: time.Now()}, ep: ep}
}

// Expired returns true if the connection has expired.
func (conn *MQTTConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *MQTTConn) close() {
	if conn.conn != nil {
		if conn.conn.IsConnected() {
			conn.conn.Disconnect(250)
		}
		conn.conn = nil
	}
}

// Send publishes msg on the topic.
func (conn *MQTTConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if conn.conn == nil {
		ops := paho.NewClientOptions()
		scheme := "tcp"
		tc, err := tlsConfig(conn.ep.MQTT.CACertFile, conn.ep.MQTT.CertFile, conn.ep.MQTT.KeyFile)
		if err != nil {
			return err
		}
		if tc != nil {
			scheme = "ssl"
			ops = ops.SetTLSConfig(tc)
		}
		ops = ops.SetClientID("gwclose-" + uuid.NewString()).
			AddBroker(fmt.Sprintf("%s://%s", scheme, conn.ep.Addr())).
			SetConnectTimeout(time.Second)
		c := paho.NewClient(ops)
		if token := c.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		conn.conn = c
	}
	t := conn.conn.Publish(conn.ep.Topic, conn.ep.MQTT.Qos, conn.ep.MQTT.Retained, msg)
	if !t.WaitTimeout(mqttPublishTimeout) {
		conn.close()
		return errors.New("mqtt publish timeout")
	}
	if err := t.Error(); err != nil {
		conn.close()
		return err
	}
	return nil
}
