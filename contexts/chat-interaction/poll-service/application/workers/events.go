package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pollbot/contexts/chat-interaction/poll-service/ports"
)

const (
	CreateRequestedTopic = "poll.create_requested"
	VoteRequestedTopic   = "poll.vote_requested"
)

// CreateRequested is queued when a slash command or mention asks for a poll.
type CreateRequested struct {
	Text        string `json:"text"`
	UserID      string `json:"user_id"`
	ChannelID   string `json:"channel_id"`
	ResponseURL string `json:"response_url,omitempty"`
}

// VoteRequested is queued when a vote button is clicked. ActionValue is the
// raw "<optionIndex>_<pollId>" button value.
type VoteRequested struct {
	ActionValue string `json:"action_value"`
	UserID      string `json:"user_id"`
	ChannelID   string `json:"channel_id"`
	ResponseURL string `json:"response_url,omitempty"`
}

var errNoPublisher = errors.New("poll event publisher is not configured")

// InteractionDispatcher hands acknowledged interactions to the consumer so
// the HTTP request never waits on poll storage.
type InteractionDispatcher struct {
	Publisher ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
}

func (d InteractionDispatcher) DispatchCreate(ctx context.Context, req CreateRequested) error {
	return d.dispatch(ctx, CreateRequestedTopic, "channel_id", req.ChannelID, req)
}

func (d InteractionDispatcher) DispatchVote(ctx context.Context, req VoteRequested) error {
	return d.dispatch(ctx, VoteRequestedTopic, "action_value", req.ActionValue, req)
}

func (d InteractionDispatcher) dispatch(
	ctx context.Context,
	topic string,
	partitionKeyPath string,
	partitionKey string,
	data any,
) error {
	if d.Publisher == nil {
		return errNoPublisher
	}
	eventID, err := d.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	occurredAt := time.Now().UTC()
	if d.Clock != nil {
		occurredAt = d.Clock.Now().UTC()
	}
	envelope, err := newPollEnvelope(eventID, topic, partitionKeyPath, partitionKey, occurredAt, data)
	if err != nil {
		return err
	}
	return d.Publisher.Publish(ctx, topic, envelope)
}

func newPollEnvelope(
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     strings.TrimSpace(partitionKey),
		Data:             payload,
	}, nil
}
