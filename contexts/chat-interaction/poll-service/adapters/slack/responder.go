package slackadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	"pollbot/contexts/chat-interaction/poll-service/ports"
	httptransport "pollbot/contexts/chat-interaction/poll-service/transport/http"

	"github.com/slack-go/slack"
)

const (
	responseTypeInChannel = "in_channel"
	responseTypeEphemeral = "ephemeral"
)

var ErrNoResponseTarget = errors.New("slack response target has neither response_url nor channel")

// Responder posts Block Kit messages back to Slack. Interactive requests
// answer through their response_url; app mentions, which carry none, go
// through the Web API with the bot token.
type Responder struct {
	API        *slack.Client
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewResponder builds a Responder for botToken. options are passed to the
// Web API client, e.g. slack.OptionAPIURL in tests.
func NewResponder(botToken string, logger *slog.Logger, options ...slack.Option) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	apiOptions := append([]slack.Option{slack.OptionHTTPClient(httpClient)}, options...)
	return &Responder{
		API:        slack.New(strings.TrimSpace(botToken), apiOptions...),
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

func (r *Responder) PublishPoll(ctx context.Context, target ports.ResponseTarget, view entities.PollView) error {
	blocks := httptransport.PollBlocks(view)
	if strings.TrimSpace(target.ResponseURL) != "" {
		return r.webhook(ctx, target.ResponseURL, &slack.WebhookMessage{
			ResponseType: responseTypeInChannel,
			Text:         view.Title,
			Blocks:       &slack.Blocks{BlockSet: blocks},
		})
	}
	if strings.TrimSpace(target.ChannelID) == "" {
		return ErrNoResponseTarget
	}
	if _, _, err := r.API.PostMessageContext(ctx, target.ChannelID,
		slack.MsgOptionText(view.Title, false),
		slack.MsgOptionBlocks(blocks...),
	); err != nil {
		return r.logError("slack_api_call_failed", err, "method", "chat.postMessage", "channel_id", target.ChannelID)
	}
	return nil
}

func (r *Responder) UpdatePoll(ctx context.Context, target ports.ResponseTarget, view entities.PollView) error {
	if strings.TrimSpace(target.ResponseURL) == "" {
		return ErrNoResponseTarget
	}
	return r.webhook(ctx, target.ResponseURL, &slack.WebhookMessage{
		ReplaceOriginal: true,
		Text:            view.Title,
		Blocks:          &slack.Blocks{BlockSet: httptransport.PollBlocks(view)},
	})
}

func (r *Responder) RespondUsage(ctx context.Context, target ports.ResponseTarget) error {
	return r.ephemeral(ctx, target, httptransport.UsageText, httptransport.UsageBlocks())
}

func (r *Responder) RespondError(ctx context.Context, target ports.ResponseTarget, message string) error {
	return r.ephemeral(ctx, target, message, httptransport.ErrorBlocks(message))
}

func (r *Responder) ephemeral(ctx context.Context, target ports.ResponseTarget, text string, blocks []slack.Block) error {
	if strings.TrimSpace(target.ResponseURL) != "" {
		return r.webhook(ctx, target.ResponseURL, &slack.WebhookMessage{
			ResponseType: responseTypeEphemeral,
			Text:         text,
			Blocks:       &slack.Blocks{BlockSet: blocks},
		})
	}
	if strings.TrimSpace(target.ChannelID) == "" {
		return ErrNoResponseTarget
	}
	if _, err := r.API.PostEphemeralContext(ctx, target.ChannelID, target.UserID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	); err != nil {
		return r.logError("slack_api_call_failed", err, "method", "chat.postEphemeral", "channel_id", target.ChannelID)
	}
	return nil
}

func (r *Responder) webhook(ctx context.Context, url string, message *slack.WebhookMessage) error {
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, url, client, message); err != nil {
		return r.logError("slack_response_url_failed", err)
	}
	return nil
}

func (r *Responder) logError(event string, err error, attrs ...any) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "chat-interaction/poll-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	logger.Error("slack delivery failed", fields...)
	return err
}

var _ ports.Responder = (*Responder)(nil)
