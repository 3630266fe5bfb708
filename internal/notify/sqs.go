package notify

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gwclose/gwclose/internal/log"
)

// SQSConn sends to an SQS queue.
type SQSConn struct {
	idle
	ep  Endpoint
	svc *sqs.SQS
}

func newSQSConn(ep Endpoint) *SQSConn {
	return &SQSConn{idle: idle{t: time.Now()}, ep: ep}
}

// QueueURL returns the queue url for the endpoint.
func (conn *SQSConn) QueueURL() string {
	return "https://sqs." + conn.ep.SQS.Region + ".amazonaws.com/" +
		conn.ep.SQS.QueueID + "/" + conn.ep.Topic
}

// Expired returns true if the connection has expired.
func (conn *SQSConn) Expired() bool {
	return conn.expire(conn.close)
}

func (conn *SQSConn) close() {
	conn.svc = nil
}

// Send sends msg as the message body.
func (conn *SQSConn) Send(msg string) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.touch(); err != nil {
		return err
	}
	if conn.svc == nil {
		var creds *credentials.Credentials
		if conn.ep.SQS.CredPath != "" {
			profile := conn.ep.SQS.CredProfile
			if profile == "" {
				profile = "default"
			}
			creds = credentials.NewSharedCredentials(conn.ep.SQS.CredPath, profile)
		}
		sess, err := session.NewSession(&aws.Config{
			Region:                        aws.String(conn.ep.SQS.Region),
			Credentials:                   creds,
			CredentialsChainVerboseErrors: aws.Bool(log.Level >= 3),
			MaxRetries:                    aws.Int(5),
		})
		if err != nil {
			return err
		}
		conn.svc = sqs.New(sess)
	}
	_, err := conn.svc.SendMessage(&sqs.SendMessageInput{
		MessageBody: aws.String(msg),
		QueueUrl:    aws.String(conn.QueueURL()),
	})
	return err
}
