package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "pollbot/contexts/chat-interaction/poll-service/application"
	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
	"pollbot/contexts/chat-interaction/poll-service/ports"
)

// CastVoteCommand toggles VoterID's vote on one option of one poll.
type CastVoteCommand struct {
	PollID      string
	VoterID     string
	OptionIndex int
}

// CastVoteResult is the committed poll after the toggle was applied.
type CastVoteResult struct {
	Poll     entities.Poll
	Attempts int
	Removed  bool
}

// CastVoteUseCase applies vote toggles with a read / reduce / compare-and-swap
// loop. Each attempt starts from a fresh read; a version conflict discards the
// attempt entirely.
type CastVoteUseCase struct {
	Polls        ports.PollRepository
	Clock        ports.Clock
	MaxAttempts  int
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

func (uc CastVoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if pollID == "" || voterID == "" {
		logger.Warn("vote validation failed",
			"event", "poll_vote_validation_failed",
			"module", "chat-interaction/poll-service",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	var result CastVoteResult
	outcome, attempts, err := retryOptimistic(ctx, uc.MaxAttempts, uc.RetryBackoff,
		func(ctx context.Context, n int) (AttemptOutcome, error) {
			current, err := uc.Polls.GetPoll(ctx, pollID)
			if err != nil {
				return 0, err
			}
			next, err := entities.ToggleVote(current.Data, voterID, cmd.OptionIndex)
			if err != nil {
				return 0, err
			}
			committed, err := uc.Polls.CompareAndSwapPoll(ctx, pollID, current.Version, next, uc.now())
			if errors.Is(err, domainerrors.ErrVersionConflict) {
				logger.Debug("vote write lost version race",
					"event", "poll_vote_version_conflict",
					"module", "chat-interaction/poll-service",
					"layer", "application",
					"poll_id", pollID,
					"voter_id", voterID,
					"attempt", n,
					"base_version", current.Version,
				)
				return OutcomeConflict, nil
			}
			if err != nil {
				return 0, err
			}
			result = CastVoteResult{
				Poll:    committed,
				Removed: current.Data.Options[cmd.OptionIndex].HasVoter(voterID),
			}
			return OutcomeApplied, nil
		},
	)
	if err != nil {
		logger.Warn("vote failed",
			"event", "poll_vote_failed",
			"module", "chat-interaction/poll-service",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
			"option_index", cmd.OptionIndex,
			"attempts", attempts,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}
	if outcome == OutcomeExhausted {
		logger.Warn("vote retries exhausted",
			"event", "poll_vote_contention",
			"module", "chat-interaction/poll-service",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
			"attempts", attempts,
		)
		return CastVoteResult{}, domainerrors.ErrContention
	}

	result.Attempts = attempts
	logger.Info("vote applied",
		"event", "poll_vote_applied",
		"module", "chat-interaction/poll-service",
		"layer", "application",
		"poll_id", pollID,
		"voter_id", voterID,
		"option_index", cmd.OptionIndex,
		"removed", result.Removed,
		"version", result.Poll.Version,
		"attempts", attempts,
	)
	return result, nil
}

func (uc CastVoteUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
