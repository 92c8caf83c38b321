package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	application "pollbot/contexts/chat-interaction/poll-service/application"
	"pollbot/contexts/chat-interaction/poll-service/application/commands"
	"pollbot/contexts/chat-interaction/poll-service/application/queries"
	"pollbot/contexts/chat-interaction/poll-service/application/workers"
	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
	httptransport "pollbot/contexts/chat-interaction/poll-service/transport/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

type Handler struct {
	Create     commands.CreatePollUseCase
	Vote       commands.CastVoteUseCase
	Polls      queries.GetPollUseCase
	Dispatcher workers.InteractionDispatcher
	Logger     *slog.Logger
}

// CreatePollHandler godoc
// @Summary Create a poll
// @Description Creates a poll at version 0 with empty vote sets. At least two options are required.
// @Tags poll-service
// @Accept json
// @Produce json
// @Param request body httptransport.CreatePollRequest true "Poll title and options"
// @Success 201 {object} httptransport.PollResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /v1/polls [post]
func (h Handler) CreatePollHandler(ctx context.Context, req httptransport.CreatePollRequest) (httptransport.PollResponse, error) {
	poll, err := h.Create.CreatePoll(ctx, commands.CreatePollCommand{
		Title:        req.Title,
		OptionTitles: req.Options,
		CreatorID:    req.CreatorID,
		ChannelID:    req.ChannelID,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return httptransport.PollResponseFromView(entities.Render(poll)), nil
}

// GetPollHandler godoc
// @Summary Get a poll
// @Description Returns the current poll projection with per-option vote counts and voters.
// @Tags poll-service
// @Produce json
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.PollResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id} [get]
func (h Handler) GetPollHandler(ctx context.Context, pollID string) (httptransport.PollResponse, error) {
	view, err := h.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return httptransport.PollResponseFromView(view), nil
}

// CastVoteHandler godoc
// @Summary Toggle a vote
// @Description Adds the voter to the option, or removes them when already present. Retries internally on version conflicts.
// @Tags poll-service
// @Accept json
// @Produce json
// @Param poll_id path string true "Poll id"
// @Param request body httptransport.CastVoteRequest true "Voter and option index"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id}/votes [post]
func (h Handler) CastVoteHandler(ctx context.Context, pollID string, req httptransport.CastVoteRequest) (httptransport.CastVoteResponse, error) {
	if req.OptionIndex == nil {
		return httptransport.CastVoteResponse{}, domainerrors.ErrInvalidVoteInput
	}
	result, err := h.Vote.CastVote(ctx, commands.CastVoteCommand{
		PollID:      pollID,
		VoterID:     req.VoterID,
		OptionIndex: *req.OptionIndex,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		Poll:     httptransport.PollResponseFromView(entities.Render(result.Poll)),
		Removed:  result.Removed,
		Attempts: result.Attempts,
	}, nil
}

// SlashCommandHandler queues poll creation for a slash command. The HTTP
// caller acknowledges Slack as soon as this returns.
func (h Handler) SlashCommandHandler(ctx context.Context, cmd slack.SlashCommand) error {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("slash command received",
		"event", "http_slash_command_received",
		"module", "chat-interaction/poll-service",
		"layer", "transport",
		"command", cmd.Command,
		"user_id", cmd.UserID,
		"channel_id", cmd.ChannelID,
	)
	return h.Dispatcher.DispatchCreate(ctx, workers.CreateRequested{
		Text:        cmd.Text,
		UserID:      cmd.UserID,
		ChannelID:   cmd.ChannelID,
		ResponseURL: cmd.ResponseURL,
	})
}

// MentionHandler queues poll creation for an app_mention event.
func (h Handler) MentionHandler(ctx context.Context, event slackevents.AppMentionEvent) error {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("app mention received",
		"event", "http_app_mention_received",
		"module", "chat-interaction/poll-service",
		"layer", "transport",
		"user_id", event.User,
		"channel_id", event.Channel,
	)
	return h.Dispatcher.DispatchCreate(ctx, workers.CreateRequested{
		Text:      event.Text,
		UserID:    event.User,
		ChannelID: event.Channel,
	})
}

// InteractionHandler queues one vote per vote-button action in the payload.
// Actions from other components are ignored.
func (h Handler) InteractionHandler(ctx context.Context, payload slack.InteractionCallback) (int, error) {
	logger := application.ResolveLogger(h.Logger)
	if strings.TrimSpace(payload.User.ID) == "" {
		return 0, domainerrors.ErrInvalidVoteInput
	}
	queued := 0
	for _, action := range payload.ActionCallback.BlockActions {
		if action == nil || action.ActionID != httptransport.VoteActionID {
			continue
		}
		if err := h.Dispatcher.DispatchVote(ctx, workers.VoteRequested{
			ActionValue: action.Value,
			UserID:      payload.User.ID,
			ChannelID:   payload.Channel.ID,
			ResponseURL: payload.ResponseURL,
		}); err != nil {
			logger.Error("vote dispatch failed",
				"event", "http_vote_dispatch_failed",
				"module", "chat-interaction/poll-service",
				"layer", "transport",
				"user_id", payload.User.ID,
				"action_value", action.Value,
				"error", err.Error(),
			)
			return queued, err
		}
		queued++
	}
	return queued, nil
}
