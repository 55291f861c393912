package port

import "context"

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// DLQPublisher parks messages that can never be processed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
