package notify

import (
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisConn publishes to a redis channel.
type RedisConn struct {
	idle
	ep   Endpoint
	conn redis.Conn
}

func newRedisConn(ep Endpoint) *RedisConn {
	return &RedisConn{idle: idle{t: time.Now()}, ep: ep}
}

// Expired returns true if the connection has expired.
func (conn *RedisConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *RedisConn) close() {
	if conn.conn != nil {
		conn.conn.Close()
		conn.conn = nil
	}
}

// Send publishes msg on the channel.
func (conn *RedisConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if conn.conn == nil {
		var err error
		conn.conn, err = redis.Dial("tcp", conn.ep.Addr(),
			redis.DialConnectTimeout(time.Second))
		if err != nil {
			return err
		}
	}
	if _, err := redis.Int(conn.conn.Do("PUBLISH", conn.ep.Topic, msg)); err != nil {
		conn.close()
		return err
	}
	return nil
}
