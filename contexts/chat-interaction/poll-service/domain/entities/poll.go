package entities

import (
	"strings"
	"time"

	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
)

// MinOptions is the smallest number of options a poll can be created with.
const MinOptions = 2

type Option struct {
	Title string   `json:"title"`
	Votes []string `json:"votes"`
}

type PollData struct {
	Title   string   `json:"title"`
	Options []Option `json:"options"`
}

type Poll struct {
	ID        string
	Version   int64
	Data      PollData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPollData builds the initial data for a poll with empty vote sets.
func NewPollData(title string, optionTitles []string) (PollData, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(optionTitles) < MinOptions {
		return PollData{}, domainerrors.ErrUsage
	}
	options := make([]Option, 0, len(optionTitles))
	for _, optionTitle := range optionTitles {
		options = append(options, Option{
			Title: strings.TrimSpace(optionTitle),
			Votes: []string{},
		})
	}
	return PollData{Title: title, Options: options}, nil
}

// ToggleVote returns a copy of data with voterID added to, or removed from,
// the votes of the option at optionIndex. The input is never modified.
func ToggleVote(data PollData, voterID string, optionIndex int) (PollData, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return PollData{}, domainerrors.ErrInvalidVoteInput
	}
	if optionIndex < 0 || optionIndex >= len(data.Options) {
		return PollData{}, domainerrors.ErrInvalidOption
	}

	next := data.Clone()
	option := &next.Options[optionIndex]
	if option.HasVoter(voterID) {
		filtered := make([]string, 0, len(option.Votes))
		for _, existing := range option.Votes {
			if existing != voterID {
				filtered = append(filtered, existing)
			}
		}
		option.Votes = filtered
		return next, nil
	}
	option.Votes = append(option.Votes, voterID)
	return next, nil
}

func (o Option) HasVoter(voterID string) bool {
	for _, existing := range o.Votes {
		if existing == voterID {
			return true
		}
	}
	return false
}

// Clone deep-copies the option list so callers can mutate the result freely.
func (d PollData) Clone() PollData {
	options := make([]Option, len(d.Options))
	for i, option := range d.Options {
		votes := make([]string, len(option.Votes))
		copy(votes, option.Votes)
		options[i] = Option{Title: option.Title, Votes: votes}
	}
	return PollData{Title: d.Title, Options: options}
}

func (p Poll) Clone() Poll {
	p.Data = p.Data.Clone()
	return p
}
