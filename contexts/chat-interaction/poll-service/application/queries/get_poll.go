package queries

import (
	"context"
	"strings"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
	"pollbot/contexts/chat-interaction/poll-service/ports"
)

type GetPollUseCase struct {
	Polls ports.PollRepository
}

// GetPoll reads the current poll and renders it for display.
func (uc GetPollUseCase) GetPoll(ctx context.Context, pollID string) (entities.PollView, error) {
	pollID = strings.TrimSpace(pollID)
	if pollID == "" {
		return entities.PollView{}, domainerrors.ErrPollNotFound
	}
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return entities.PollView{}, err
	}
	return entities.Render(poll), nil
}
