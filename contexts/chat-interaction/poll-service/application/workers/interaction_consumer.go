package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	application "pollbot/contexts/chat-interaction/poll-service/application"
	"pollbot/contexts/chat-interaction/poll-service/application/commands"
	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
	"pollbot/contexts/chat-interaction/poll-service/ports"
)

const defaultInteractionCG = "poll-service-interaction-cg"

// TextParser splits raw command text into a title and option titles.
type TextParser func(text string) (string, []string, error)

// InteractionConsumer performs the poll work for interactions that were
// already acknowledged over HTTP and reports the outcome through Responder.
type InteractionConsumer struct {
	Subscriber    ports.EventSubscriber
	Create        commands.CreatePollUseCase
	Vote          commands.CastVoteUseCase
	Responder     ports.Responder
	Updates       *UpdateGate
	ParseText     TextParser
	ConsumerGroup string
	Logger        *slog.Logger
}

func (c InteractionConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultInteractionCG
	}
	for topic, handler := range map[string]func(context.Context, ports.EventEnvelope) error{
		CreateRequestedTopic: c.HandleCreateRequested,
		VoteRequestedTopic:   c.HandleVoteRequested,
	} {
		if err := c.Subscriber.Subscribe(ctx, topic, group, handler); err != nil {
			logger.Error("interaction consumer subscribe failed",
				"event", "poll_interaction_consumer_subscribe_failed",
				"module", "chat-interaction/poll-service",
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("interaction consumer subscriptions active",
		"event", "poll_interaction_consumer_started",
		"module", "chat-interaction/poll-service",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c InteractionConsumer) HandleCreateRequested(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload CreateRequested
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("poll create payload decode failed",
			"event", "poll_create_requested_decode_failed",
			"module", "chat-interaction/poll-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	target := ports.ResponseTarget{
		ResponseURL: payload.ResponseURL,
		ChannelID:   payload.ChannelID,
		UserID:      payload.UserID,
	}

	title, options, err := c.ParseText(payload.Text)
	if err == nil {
		var poll entities.Poll
		poll, err = c.Create.CreatePoll(ctx, commands.CreatePollCommand{
			Title:        title,
			OptionTitles: options,
			CreatorID:    payload.UserID,
			ChannelID:    payload.ChannelID,
		})
		if err == nil {
			return c.Responder.PublishPoll(ctx, target, entities.Render(poll))
		}
	}
	if errors.Is(err, domainerrors.ErrUsage) {
		return c.Responder.RespondUsage(ctx, target)
	}
	if respondErr := c.Responder.RespondError(ctx, target, UserMessage(err)); respondErr != nil {
		return errors.Join(err, respondErr)
	}
	return err
}

func (c InteractionConsumer) HandleVoteRequested(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload VoteRequested
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("poll vote payload decode failed",
			"event", "poll_vote_requested_decode_failed",
			"module", "chat-interaction/poll-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	target := ports.ResponseTarget{
		ResponseURL: payload.ResponseURL,
		ChannelID:   payload.ChannelID,
		UserID:      payload.UserID,
	}

	var err error
	optionIndex, pollID, ok := entities.DecodeActionValue(payload.ActionValue)
	if !ok {
		err = domainerrors.ErrInvalidActionValue
	} else {
		var result commands.CastVoteResult
		result, err = c.Vote.CastVote(ctx, commands.CastVoteCommand{
			PollID:      pollID,
			VoterID:     payload.UserID,
			OptionIndex: optionIndex,
		})
		if err == nil {
			return c.updatePoll(ctx, target, result.Poll)
		}
	}
	if respondErr := c.Responder.RespondError(ctx, target, UserMessage(err)); respondErr != nil {
		return errors.Join(err, respondErr)
	}
	return err
}

func (c InteractionConsumer) updatePoll(ctx context.Context, target ports.ResponseTarget, poll entities.Poll) error {
	if c.Updates == nil {
		return c.Responder.UpdatePoll(ctx, target, entities.Render(poll))
	}
	delivered, err := c.Updates.Deliver(poll.ID, poll.Version, func() error {
		return c.Responder.UpdatePoll(ctx, target, entities.Render(poll))
	})
	if !delivered {
		application.ResolveLogger(c.Logger).Info("stale poll update skipped",
			"event", "poll_update_stale_skipped",
			"module", "chat-interaction/poll-service",
			"layer", "worker",
			"poll_id", poll.ID,
			"version", poll.Version,
		)
	}
	return err
}

// UserMessage turns a poll error into short text suitable for an ephemeral
// chat reply.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrUsage):
		return "Could not parse command!"
	case errors.Is(err, domainerrors.ErrPollNotFound):
		return "This poll no longer exists."
	case errors.Is(err, domainerrors.ErrInvalidOption),
		errors.Is(err, domainerrors.ErrInvalidActionValue):
		return "That option is not part of this poll."
	case errors.Is(err, domainerrors.ErrContention):
		return "Lots of people are voting right now. Please click again."
	default:
		return "Something went wrong while updating the poll."
	}
}
