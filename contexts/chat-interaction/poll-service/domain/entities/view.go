package entities

import (
	"strconv"
	"strings"
)

// ActionSeparator joins the option index and poll id in a vote action value.
const ActionSeparator = "_"

type OptionView struct {
	Index       int
	Ordinal     int
	Title       string
	VoteCount   int
	VoterIDs    []string
	Mentions    []string
	ActionValue string
}

type PollView struct {
	PollID  string
	Version int64
	Title   string
	Options []OptionView
}

// Render projects a poll into the shape the presentation layer draws. It has
// no side effects and does not retain poll.
func Render(poll Poll) PollView {
	view := PollView{
		PollID:  poll.ID,
		Version: poll.Version,
		Title:   poll.Data.Title,
		Options: make([]OptionView, 0, len(poll.Data.Options)),
	}
	for i, option := range poll.Data.Options {
		voters := make([]string, len(option.Votes))
		copy(voters, option.Votes)
		mentions := make([]string, 0, len(voters))
		for _, voter := range voters {
			mentions = append(mentions, "<@"+voter+">")
		}
		view.Options = append(view.Options, OptionView{
			Index:       i,
			Ordinal:     i + 1,
			Title:       option.Title,
			VoteCount:   len(voters),
			VoterIDs:    voters,
			Mentions:    mentions,
			ActionValue: EncodeActionValue(i, poll.ID),
		})
	}
	return view
}

func EncodeActionValue(optionIndex int, pollID string) string {
	return strconv.Itoa(optionIndex) + ActionSeparator + pollID
}

// DecodeActionValue splits "<optionIndex>_<pollId>". Only the first separator
// is significant so poll ids may themselves contain it.
func DecodeActionValue(value string) (int, string, bool) {
	rawIndex, pollID, found := strings.Cut(strings.TrimSpace(value), ActionSeparator)
	if !found || strings.TrimSpace(pollID) == "" {
		return 0, "", false
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return 0, "", false
	}
	return index, strings.TrimSpace(pollID), true
}
