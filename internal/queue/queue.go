package queue

import "context"

const (
	// UploadQueueName is the single FIFO work queue of batch jobs.
	UploadQueueName = "uploads"
	// UploadDLQName receives messages rejected as unparseable or invalid.
	UploadDLQName = "dlq.uploads"
)

// Publisher enqueues batch jobs.
type Publisher interface {
	Publish(ctx context.Context, msg BatchMessage) error
	Close() error
}

// MessageHandler handles one consumed batch job. A nil return acknowledges
// the message; an error requeues it.
type MessageHandler func(ctx context.Context, msg BatchMessage) error

// Consumer delivers batch jobs to a handler, one at a time per consumer.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}
