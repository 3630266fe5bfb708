package notify

import (
	"errors"
	lg "log"
	"os"
	"time"

	"github.com/Shopify/sarama"
	"github.com/gwclose/gwclose/internal/log"
	"github.com/tidwall/gjson"
)

// KafkaConn produces to a kafka topic.
type KafkaConn struct {
	idle
	ep   Endpoint
	conn sarama.SyncProducer
	cfg  *sarama.Config
}

func newKafkaConn(ep Endpoint) *KafkaConn {
	return &KafkaConn{idle: idle{t: time.Now()}, ep: ep}
}

// Expired returns true if the connection has expired.
func (conn *KafkaConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *KafkaConn) close() {
	if conn.conn != nil {
		conn.conn.Close()
		conn.conn = nil
		conn.cfg.MetricRegistry.UnregisterAll()
		conn.cfg = nil
	}
}

func (conn *KafkaConn) config() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = time.Second
	cfg.Net.ReadTimeout = time.Second * 5
	cfg.Net.WriteTimeout = time.Second * 5
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V0_10_0_0

	tc, err := tlsConfig(conn.ep.Kafka.CACertFile, conn.ep.Kafka.CertFile, conn.ep.Kafka.KeyFile)
	if err != nil {
		return nil, err
	}
	switch conn.ep.Kafka.Auth {
	case "sasl":
		if conn.ep.Kafka.SSL || tc != nil {
			cfg.Net.TLS.Enable = true
			cfg.Net.TLS.Config = tc
		}
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.User = os.Getenv("KAFKA_USERNAME")
		cfg.Net.SASL.Password = os.Getenv("KAFKA_PASSWORD")
		cfg.Net.SASL.Handshake = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case "tls":
		if tc == nil {
			return nil, errors.New("kafka tls requires cert and key")
		}
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = tc
	}
	return cfg, nil
}

// Send produces msg keyed by the closure object id.
func (conn *KafkaConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if log.Level > 2 {
		sarama.Logger = lg.New(log.Output(), "[sarama] ", 0)
	}
	if conn.conn == nil {
		cfg, err := conn.config()
		if err != nil {
			return err
		}
		c, err := sarama.NewSyncProducer([]string{conn.ep.Addr()}, cfg)
		if err != nil {
			cfg.MetricRegistry.UnregisterAll()
			return err
		}
		conn.conn = c
		conn.cfg = cfg
	}
	key := gjson.Get(msg, "event").String() + "-" + gjson.Get(msg, "object_id").String()
	_, offset, err := conn.conn.SendMessage(&sarama.ProducerMessage{
		Topic: conn.ep.Topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(msg),
	})
	if err != nil {
		conn.close()
		return err
	}
	if offset < 0 {
		conn.close()
		return errors.New("invalid kafka reply")
	}
	return nil
}
