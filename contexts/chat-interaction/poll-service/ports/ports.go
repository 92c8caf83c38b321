package ports

import (
	"context"
	"time"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	"pollbot/internal/shared/events"
)

// PollRepository is the durable poll store. CompareAndSwapPoll is the only
// mutation path for an existing poll and must be atomic per row.
type PollRepository interface {
	GetPoll(ctx context.Context, pollID string) (entities.Poll, error)
	CreatePoll(ctx context.Context, poll entities.Poll) error
	CompareAndSwapPoll(
		ctx context.Context,
		pollID string,
		expectedVersion int64,
		data entities.PollData,
		updatedAt time.Time,
	) (entities.Poll, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// ResponseTarget tells the presentation adapter where a rendered poll or
// error message goes.
type ResponseTarget struct {
	ResponseURL string
	ChannelID   string
	UserID      string
}

// Responder delivers poll output back to the chat platform.
type Responder interface {
	PublishPoll(ctx context.Context, target ResponseTarget, view entities.PollView) error
	UpdatePoll(ctx context.Context, target ResponseTarget, view entities.PollView) error
	RespondUsage(ctx context.Context, target ResponseTarget) error
	RespondError(ctx context.Context, target ResponseTarget, message string) error
}

// EventEnvelope is the shared bus envelope; interactions acked over HTTP are
// handed to workers inside one.
type EventEnvelope = events.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
