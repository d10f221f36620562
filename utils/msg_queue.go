package utils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/pkg/errors"
)

// MessageQueueWriter sends opaque string messages to an external queue.
// Attributes are delivered alongside the body.
type MessageQueueWriter interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

type SQSMessageQueueWriter struct {
	queueName string
	url       string
	client    *sqs.SQS
}

func NewSQSMessageQueueWriter(queueName string) (*SQSMessageQueueWriter, error) {
	if queueName == "" {
		return nil, errors.New("please specify queue name")
	}

	// Initialize a session that the SDK will use to load
	// credentials from the shared credentials file. (~/.aws/credentials).
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))

	client := sqs.New(sess)

	url, err := client.GetQueueUrl(&sqs.GetQueueUrlInput{
		QueueName: &queueName,
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == sqs.ErrCodeQueueDoesNotExist {
			return nil, fmt.Errorf("unable to find queue %q", queueName)
		}
		return nil, fmt.Errorf("unable to queue %q, %v", queueName, err)
	}

	return &SQSMessageQueueWriter{
		queueName: queueName,
		url:       *url.QueueUrl,
		client:    client,
	}, nil
}

func (writer *SQSMessageQueueWriter) SendMessage(ctx context.Context, body string, attributes map[string]string) error {
	attrs := make(map[string]*sqs.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		attrs[k] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	_, err := writer.client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:          &writer.url,
		MessageBody:       aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("unable to send to %q: %v", writer.queueName, err)
	}
	return nil
}
