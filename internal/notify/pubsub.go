package notify

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

const pubsubPublishTimeout = time.Second * 20

// PubSubConn publishes to a Google Cloud Pub/Sub topic.
type PubSubConn struct {
	idle
	ep    Endpoint
	svc   *pubsub.Client
	topic *pubsub.Topic
}

func newPubSubConn(ep Endpoint) *PubSubConn {
	return &PubSubConn{idle: idle{t: time.Now()}, ep: ep}
}

// Expired returns true if the connection has expired.
func (conn *PubSubConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *PubSubConn) close() {
	if conn.topic != nil {
		conn.topic.Stop()
		conn.topic = nil
	}
	if conn.svc != nil {
		conn.svc.Close()
		conn.svc = nil
	}
}

// Send publishes msg and waits for the server to acknowledge it.
func (conn *PubSubConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pubsubPublishTimeout)
	defer cancel()
	if conn.svc == nil {
		var opts []option.ClientOption
		if conn.ep.PubSub.CredPath != "" {
			opts = append(opts, option.WithCredentialsFile(conn.ep.PubSub.CredPath))
		}
		// the client outlives this send
		svc, err := pubsub.NewClient(context.Background(), conn.ep.PubSub.Project, opts...)
		if err != nil {
			return err
		}
		conn.svc = svc
		conn.topic = svc.Topic(conn.ep.Topic)
	}
	_, err := conn.topic.Publish(ctx, &pubsub.Message{
		Data:       []byte(msg),
		Attributes: map[string]string{"event": EventCreated},
	}).Get(ctx)
	if err != nil {
		conn.close()
	}
	return err
}
