package http

import (
	"fmt"
	"strings"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"

	"github.com/dustin/go-humanize"
	"github.com/slack-go/slack"
)

// VoteActionID identifies poll vote buttons in interactivity payloads.
const VoteActionID = "action_vote"

const (
	UsageText    = "Could not parse command!"
	UsageExample = "*Usage:*\n```\"Wanna hang out?\" \"Maybe\" \"Maybe not\"```"
)

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func section(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(markdown(text), nil, nil)
}

// PollBlocks draws a title section and one section per option with a vote
// button carrying the option's action value.
func PollBlocks(view entities.PollView) []slack.Block {
	blocks := make([]slack.Block, 0, len(view.Options)+1)
	blocks = append(blocks, section(fmt.Sprintf("*%s*", view.Title)))
	for _, option := range view.Options {
		button := slack.NewButtonBlockElement(
			VoteActionID,
			option.ActionValue,
			slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("Vote (%s)", humanize.Comma(int64(option.VoteCount))), false, false),
		)
		blocks = append(blocks, slack.NewSectionBlock(
			markdown(fmt.Sprintf("%d. %s\n %s", option.Ordinal, option.Title, strings.Join(option.Mentions, ", "))),
			nil,
			slack.NewAccessory(button),
		))
	}
	return blocks
}

func UsageBlocks() []slack.Block {
	return []slack.Block{
		section("*" + UsageText + "*"),
		section(UsageExample),
	}
}

func ErrorBlocks(message string) []slack.Block {
	return []slack.Block{section(message)}
}

func PollResponseFromView(view entities.PollView) PollResponse {
	options := make([]OptionResponse, 0, len(view.Options))
	for _, option := range view.Options {
		voters := option.VoterIDs
		if voters == nil {
			voters = []string{}
		}
		options = append(options, OptionResponse{
			Index:       option.Index,
			Title:       option.Title,
			VoteCount:   option.VoteCount,
			Voters:      voters,
			ActionValue: option.ActionValue,
		})
	}
	return PollResponse{
		PollID:  view.PollID,
		Version: view.Version,
		Title:   view.Title,
		Options: options,
	}
}
