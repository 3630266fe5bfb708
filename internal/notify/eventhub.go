package notify

import (
	"context"
	"time"

	eventhub "github.com/Azure/azure-event-hubs-go/v3"
	"github.com/tidwall/gjson"
)

const eventHubSendTimeout = time.Second * 20

// EventHubConn sends to an Azure Event Hub.
type EventHubConn struct {
	idle
	ep  Endpoint
	hub *eventhub.Hub
}

func newEventHubConn(ep Endpoint) *EventHubConn {
	return &EventHubConn{idle: idle{t: time.Now()}, ep: ep}
}

// ConnectionString returns the shared access connection string for the hub.
func (conn *EventHubConn) ConnectionString() string {
	return "Endpoint=sb://" + conn.ep.Host + "/;SharedAccessKeyName=" +
		conn.ep.EventHub.KeyName + ";SharedAccessKey=" + conn.ep.EventHub.Key +
		";EntityPath=" + conn.ep.Topic
}

// Expired returns true if the connection has expired.
func (conn *EventHubConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *EventHubConn) close() {
	if conn.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		conn.hub.Close(ctx)
		cancel()
		conn.hub = nil
	}
}

// Send sends msg partitioned by the closure object id.
func (conn *EventHubConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if conn.hub == nil {
		hub, err := eventhub.NewHubFromConnectionString(conn.ConnectionString())
		if err != nil {
			return err
		}
		conn.hub = hub
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventHubSendTimeout)
	defer cancel()
	evt := eventhub.NewEventFromString(msg)
	if key := gjson.Get(msg, "object_id").String(); key != "" {
		evt.PartitionKey = &key
	}
	if err := conn.hub.Send(ctx, evt); err != nil {
		conn.close()
		return err
	}
	return nil
}
