package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	pollhttp "pollbot/contexts/chat-interaction/poll-service/transport/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const slackMaxBodyBytes = 1 << 20

// verifySlackSignature checks X-Slack-Signature against the request body.
// Verification is skipped when no signing secret is configured.
func (s *Server) verifySlackSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, slackMaxBodyBytes))
		if err != nil {
			writePollError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		if s.signingSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err := verifySlackBody(r.Header, s.signingSecret, body); err != nil {
			s.logger.Warn("slack signature rejected",
				"event", "http_slack_signature_rejected",
				"module", "internal/platform/httpserver",
				"layer", "platform",
				"path", r.URL.Path,
				"error", err.Error(),
			)
			writePollError(w, http.StatusUnauthorized, "invalid_signature", "slack request signature is invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func verifySlackBody(header http.Header, secret string, body []byte) error {
	verifier, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write(body); err != nil {
		return err
	}
	return verifier.Ensure()
}

func (s *Server) handleSlackCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_form", "request body must be form encoded")
		return
	}
	if err := s.polls.Handler.SlashCommandHandler(r.Context(), cmd); err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSlackEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, slackMaxBodyBytes))
	if err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
		return
	}
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Inner event types this app never subscribed to fail to parse; they
		// are acknowledged so Slack does not redeliver them.
		if json.Valid(body) {
			w.WriteHeader(http.StatusOK)
			return
		}
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		verification, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			writePollError(w, http.StatusBadRequest, "invalid_event", "url_verification carried no challenge")
			return
		}
		writeJSON(w, http.StatusOK, pollhttp.URLVerificationResponse{Challenge: verification.Challenge})
		return
	case slackevents.CallbackEvent:
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	mention, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent)
	if !ok || mention == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	eventID := ""
	if callback, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && callback != nil {
		eventID = strings.TrimSpace(callback.EventID)
	}
	// A redelivery is dropped only when an earlier delivery of the same
	// event_id was queued successfully.
	if !s.events.Claim(eventID, s.now()) {
		s.logger.Info("slack event redelivery ignored",
			"event", "http_slack_event_redelivery_ignored",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"event_id", eventID,
			"retry_num", r.Header.Get("X-Slack-Retry-Num"),
			"retry_reason", r.Header.Get("X-Slack-Retry-Reason"),
		)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := s.polls.Handler.MentionHandler(r.Context(), *mention); err != nil {
		s.events.Release(eventID)
		writePollDomainError(w, err)
		return
	}
	s.events.Complete(eventID, s.now())
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSlackInteraction(w http.ResponseWriter, r *http.Request) {
	payload, err := slack.InteractionCallbackParse(r)
	if err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_payload", "payload must be valid JSON")
		return
	}
	if payload.Type != "" && payload.Type != slack.InteractionTypeBlockActions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := s.polls.Handler.InteractionHandler(r.Context(), payload); err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
