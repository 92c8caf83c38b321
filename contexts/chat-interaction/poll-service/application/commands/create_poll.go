package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "pollbot/contexts/chat-interaction/poll-service/application"
	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	"pollbot/contexts/chat-interaction/poll-service/ports"
)

// CreatePollCommand carries the parsed title and option titles of a new poll.
type CreatePollCommand struct {
	Title        string
	OptionTitles []string
	CreatorID    string
	ChannelID    string
}

type CreatePollUseCase struct {
	Polls  ports.PollRepository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// CreatePoll persists a version-0 poll with empty vote sets. A command with
// fewer than two options returns ErrUsage and writes nothing.
func (uc CreatePollUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	data, err := entities.NewPollData(cmd.Title, cmd.OptionTitles)
	if err != nil {
		logger.Warn("poll create validation failed",
			"event", "poll_create_validation_failed",
			"module", "chat-interaction/poll-service",
			"layer", "application",
			"creator_id", strings.TrimSpace(cmd.CreatorID),
			"option_count", len(cmd.OptionTitles),
		)
		return entities.Poll{}, err
	}

	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		logger.Error("poll id generation failed",
			"event", "poll_create_id_failed",
			"module", "chat-interaction/poll-service",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Poll{}, err
	}

	now := uc.now()
	poll := entities.Poll{
		ID:        pollID,
		Version:   0,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.Polls.CreatePoll(ctx, poll); err != nil {
		logger.Error("poll create persist failed",
			"event", "poll_create_persist_failed",
			"module", "chat-interaction/poll-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return entities.Poll{}, err
	}

	logger.Info("poll created",
		"event", "poll_created",
		"module", "chat-interaction/poll-service",
		"layer", "application",
		"poll_id", pollID,
		"creator_id", strings.TrimSpace(cmd.CreatorID),
		"channel_id", strings.TrimSpace(cmd.ChannelID),
		"option_count", len(data.Options),
	)
	return poll, nil
}

func (uc CreatePollUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
