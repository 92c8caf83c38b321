package httpserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	pollservice "pollbot/contexts/chat-interaction/poll-service"
	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	"pollbot/contexts/chat-interaction/poll-service/ports"
	pollhttp "pollbot/contexts/chat-interaction/poll-service/transport/http"
	"pollbot/internal/platform/messaging"
	"pollbot/internal/shared/events"
)

type responderCall struct {
	kind    string
	view    entities.PollView
	message string
	target  ports.ResponseTarget
}

type channelResponder struct {
	calls chan responderCall
}

func newChannelResponder() *channelResponder {
	return &channelResponder{calls: make(chan responderCall, 16)}
}

func (r *channelResponder) PublishPoll(_ context.Context, target ports.ResponseTarget, view entities.PollView) error {
	r.calls <- responderCall{kind: "publish", view: view, target: target}
	return nil
}

func (r *channelResponder) UpdatePoll(_ context.Context, target ports.ResponseTarget, view entities.PollView) error {
	r.calls <- responderCall{kind: "update", view: view, target: target}
	return nil
}

func (r *channelResponder) RespondUsage(_ context.Context, target ports.ResponseTarget) error {
	r.calls <- responderCall{kind: "usage", target: target}
	return nil
}

func (r *channelResponder) RespondError(_ context.Context, target ports.ResponseTarget, message string) error {
	r.calls <- responderCall{kind: "error", message: message, target: target}
	return nil
}

func (r *channelResponder) next(t *testing.T) responderCall {
	t.Helper()
	select {
	case call := <-r.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for responder call")
		return responderCall{}
	}
}

// flakyBus fails the first failures publishes, then behaves like the real
// bus. It counts every publish that reached the real bus.
type flakyBus struct {
	*messaging.Bus
	mu        sync.Mutex
	failures  int
	published int
}

func (b *flakyBus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	b.mu.Lock()
	if b.failures > 0 {
		b.failures--
		b.mu.Unlock()
		return errors.New("bus unavailable")
	}
	b.published++
	b.mu.Unlock()
	return b.Bus.Publish(ctx, topic, event)
}

func (b *flakyBus) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}

func newTestServer(t *testing.T, secret string) (*Server, *channelResponder) {
	t.Helper()
	server, responder, _ := newTestServerWithBus(t, secret, 0)
	return server, responder
}

func newTestServerWithBus(t *testing.T, secret string, failures int) (*Server, *channelResponder, *flakyBus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	bus := &flakyBus{Bus: messaging.NewBus(1, nil), failures: failures}
	t.Cleanup(func() {
		cancel()
		bus.Wait()
	})

	responder := newChannelResponder()
	module := pollservice.NewInMemoryModule(nil, responder, bus, nil)
	if err := module.Consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer failed: %v", err)
	}
	return New(module, secret, nil, ""), responder, bus
}

// signSlackBody computes the v0 request signature Slack sends.
func signSlackBody(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func intPtr(v int) *int {
	return &v
}

func doJSON(t *testing.T, s *Server, method string, path string, body any, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode request failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response failed: %v (%s)", err, rec.Body.String())
		}
	}
	return rec.Code
}

func signedForm(t *testing.T, s *Server, path string, form url.Values, secret string) *httptest.ResponseRecorder {
	t.Helper()
	return signedRequest(t, s, path, "application/x-www-form-urlencoded", form.Encode(), secret, time.Now())
}

func signedRequest(t *testing.T, s *Server, path string, contentType string, body string, secret string, signedAt time.Time) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	if secret != "" {
		timestamp := strconv.FormatInt(signedAt.Unix(), 10)
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", signSlackBody(secret, timestamp, []byte(body)))
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func postEvent(t *testing.T, s *Server, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func mentionEvent(eventID string, channel string) string {
	return `{"type":"event_callback","token":"t","team_id":"T1","api_app_id":"A1","event_id":"` + eventID + `",` +
		`"event":{"type":"app_mention","user":"U1","channel":"` + channel + `","ts":"1700000000.000100",` +
		`"text":"<@UBOT> \"Lunch?\" \"Pizza\" \"Salad\""}}`
}

func TestRESTCreateVoteAndGet(t *testing.T) {
	s, _ := newTestServer(t, "")

	var created pollhttp.PollResponse
	status := doJSON(t, s, http.MethodPost, "/v1/polls", pollhttp.CreatePollRequest{
		Title:   "Lunch?",
		Options: []string{"Pizza", "Salad"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.Version != 0 || len(created.Options) != 2 || created.PollID == "" {
		t.Fatalf("unexpected created poll %+v", created)
	}

	var voted pollhttp.CastVoteResponse
	status = doJSON(t, s, http.MethodPost, "/v1/polls/"+created.PollID+"/votes", pollhttp.CastVoteRequest{
		VoterID:     "u1",
		OptionIndex: intPtr(0),
	}, &voted)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if voted.Poll.Version != 1 || voted.Poll.Options[0].VoteCount != 1 || voted.Removed {
		t.Fatalf("unexpected vote response %+v", voted)
	}

	var fetched pollhttp.PollResponse
	if status := doJSON(t, s, http.MethodGet, "/v1/polls/"+created.PollID, nil, &fetched); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if fetched.Version != 1 || len(fetched.Options[0].Voters) != 1 || fetched.Options[0].Voters[0] != "u1" {
		t.Fatalf("unexpected fetched poll %+v", fetched)
	}
	stored, err := s.polls.Store.GetPoll(context.Background(), created.PollID)
	if err != nil {
		t.Fatalf("store lookup failed: %v", err)
	}
	if stored.Version != 1 || !stored.Data.Options[0].HasVoter("u1") {
		t.Fatalf("expected stored vote at version 1, got %+v", stored)
	}

	var problem pollhttp.ErrorResponse
	status = doJSON(t, s, http.MethodPost, "/v1/polls/"+created.PollID+"/votes", pollhttp.CastVoteRequest{
		VoterID:     "u1",
		OptionIndex: intPtr(7),
	}, &problem)
	if status != http.StatusUnprocessableEntity || problem.Code != "invalid_option" {
		t.Fatalf("expected 422 invalid_option, got %d %+v", status, problem)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	s, _ := newTestServer(t, "")

	var problem pollhttp.ErrorResponse
	if status := doJSON(t, s, http.MethodGet, "/v1/polls/missing", nil, &problem); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	status := doJSON(t, s, http.MethodPost, "/v1/polls", pollhttp.CreatePollRequest{
		Title:   "Lunch?",
		Options: []string{"Pizza"},
	}, &problem)
	if status != http.StatusBadRequest || problem.Code != "usage" {
		t.Fatalf("expected 400 usage, got %d %+v", status, problem)
	}
	if status := doJSON(t, s, http.MethodGet, "/health", nil, nil); status != http.StatusOK {
		t.Fatalf("expected health 200, got %d", status)
	}
}

func TestSlackSignatureIsEnforced(t *testing.T) {
	s, responder := newTestServer(t, "signing-secret")
	form := url.Values{
		"command":      {"/poll"},
		"text":         {`"Lunch?" "Pizza" "Salad"`},
		"user_id":      {"U1"},
		"channel_id":   {"C1"},
		"response_url": {"https://hooks.example/1"},
	}

	if rec := signedForm(t, s, "/slack/commands", form, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unsigned request rejected with 401, got %d", rec.Code)
	}
	if rec := signedForm(t, s, "/slack/commands", form, "wrong-secret"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected bad signature rejected with 401, got %d", rec.Code)
	}

	rec := signedForm(t, s, "/slack/commands", form, "signing-secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected signed request acked with 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	call := responder.next(t)
	if call.kind != "publish" || call.view.Title != "Lunch?" {
		t.Fatalf("expected poll published, got %+v", call)
	}
	if call.target.ResponseURL != "https://hooks.example/1" {
		t.Fatalf("expected response_url target, got %+v", call.target)
	}
}

func TestSlackSignatureRejectsStaleTimestamp(t *testing.T) {
	s, _ := newTestServer(t, "signing-secret")
	body := url.Values{"text": {`"Lunch?" "Pizza" "Salad"`}, "user_id": {"U1"}, "channel_id": {"C1"}}.Encode()

	rec := signedRequest(t, s, "/slack/commands", "application/x-www-form-urlencoded", body, "signing-secret", time.Now().Add(-6*time.Minute))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected stale timestamp rejected with 401, got %d", rec.Code)
	}
	rec = signedRequest(t, s, "/slack/commands", "application/x-www-form-urlencoded", body, "signing-secret", time.Now().Add(-time.Minute))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected recent timestamp accepted, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestSlackCommandThenButtonClick(t *testing.T) {
	s, responder := newTestServer(t, "")

	rec := signedForm(t, s, "/slack/commands", url.Values{
		"text":         {`"Lunch?" "Pizza" "Salad"`},
		"user_id":      {"U1"},
		"channel_id":   {"C1"},
		"response_url": {"https://hooks.example/1"},
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	published := responder.next(t)
	if published.kind != "publish" {
		t.Fatalf("expected publish, got %+v", published)
	}

	payload, err := json.Marshal(map[string]any{
		"type":         "block_actions",
		"user":         map[string]string{"id": "U2"},
		"channel":      map[string]string{"id": "C1"},
		"response_url": "https://hooks.example/2",
		"actions": []map[string]string{
			{"block_id": "b1", "action_id": "other_action", "value": "ignored"},
			{"block_id": "b2", "action_id": pollhttp.VoteActionID, "value": published.view.Options[1].ActionValue},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	rec = signedForm(t, s, "/slack/interactions", url.Values{"payload": {string(payload)}}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	updated := responder.next(t)
	if updated.kind != "update" || updated.view.Version != 1 || updated.view.Options[1].VoteCount != 1 {
		t.Fatalf("expected updated poll with one vote on option 1, got %+v", updated)
	}
	if updated.target.ResponseURL != "https://hooks.example/2" {
		t.Fatalf("expected update via click response_url, got %+v", updated.target)
	}
}

func TestSlackCommandWithBadTextRespondsUsage(t *testing.T) {
	s, responder := newTestServer(t, "")
	rec := signedForm(t, s, "/slack/commands", url.Values{
		"text":       {"lunch pizza"},
		"user_id":    {"U1"},
		"channel_id": {"C1"},
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ack 200, got %d", rec.Code)
	}
	if call := responder.next(t); call.kind != "usage" {
		t.Fatalf("expected usage reply, got %+v", call)
	}
}

func TestSlackEventsURLVerificationAndMention(t *testing.T) {
	s, responder := newTestServer(t, "")

	rec := postEvent(t, s, `{"token":"t","challenge":"abc123","type":"url_verification"}`, nil)
	var challenge pollhttp.URLVerificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decode challenge failed: %v (%s)", err, rec.Body.String())
	}
	if rec.Code != http.StatusOK || challenge.Challenge != "abc123" {
		t.Fatalf("expected challenge echo, got %d %+v", rec.Code, challenge)
	}

	if rec := postEvent(t, s, mentionEvent("Ev1", "C9"), nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	call := responder.next(t)
	if call.kind != "publish" || call.target.ChannelID != "C9" || call.target.ResponseURL != "" {
		t.Fatalf("expected channel publish for mention, got %+v", call)
	}
	if call.view.Title != "Lunch?" || len(call.view.Options) != 2 {
		t.Fatalf("unexpected mention poll %+v", call.view)
	}
}

func TestSlackEventsSignedThroughVerifier(t *testing.T) {
	s, responder := newTestServer(t, "signing-secret")
	body := mentionEvent("Ev7", "C7")

	if rec := postEvent(t, s, body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unsigned event rejected, got %d", rec.Code)
	}
	rec := signedRequest(t, s, "/slack/events", "application/json", body, "signing-secret", time.Now())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected signed event accepted, got %d (%s)", rec.Code, rec.Body.String())
	}
	if call := responder.next(t); call.kind != "publish" || call.target.ChannelID != "C7" {
		t.Fatalf("expected publish to C7, got %+v", call)
	}
}

func TestSlackEventRedeliveryAfterFailureIsProcessed(t *testing.T) {
	s, responder, bus := newTestServerWithBus(t, "", 1)
	body := mentionEvent("Ev2", "C2")

	if rec := postEvent(t, s, body, nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected failed first delivery to return 500, got %d", rec.Code)
	}
	retry := http.Header{"X-Slack-Retry-Num": {"1"}, "X-Slack-Retry-Reason": {"http_error"}}
	if rec := postEvent(t, s, body, retry); rec.Code != http.StatusOK {
		t.Fatalf("expected redelivery accepted, got %d", rec.Code)
	}
	if call := responder.next(t); call.kind != "publish" || call.target.ChannelID != "C2" {
		t.Fatalf("expected redelivered mention published, got %+v", call)
	}

	retry.Set("X-Slack-Retry-Num", "2")
	if rec := postEvent(t, s, body, retry); rec.Code != http.StatusOK {
		t.Fatalf("expected duplicate acked, got %d", rec.Code)
	}
	if got := bus.publishedCount(); got != 1 {
		t.Fatalf("expected one queued poll after success plus duplicate, got %d", got)
	}
}

func TestSlackEventsIgnoreUnsubscribedTypes(t *testing.T) {
	s, _, bus := newTestServerWithBus(t, "", 0)
	body := `{"type":"event_callback","event_id":"Ev3","event":{"type":"some_future_event","user":"U1"}}`
	if rec := postEvent(t, s, body, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected unknown event acked, got %d", rec.Code)
	}
	if rec := postEvent(t, s, "not json", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected malformed body rejected, got %d", rec.Code)
	}
	if got := bus.publishedCount(); got != 0 {
		t.Fatalf("expected nothing queued, got %d", got)
	}
}

func TestRESTVoteRequiresOptionIndex(t *testing.T) {
	s, _ := newTestServer(t, "")

	var created pollhttp.PollResponse
	if status := doJSON(t, s, http.MethodPost, "/v1/polls", pollhttp.CreatePollRequest{
		Title:   "Lunch?",
		Options: []string{"Pizza", "Salad"},
	}, &created); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}

	var problem pollhttp.ErrorResponse
	status := doJSON(t, s, http.MethodPost, "/v1/polls/"+created.PollID+"/votes", map[string]string{"voter_id": "u1"}, &problem)
	if status != http.StatusBadRequest || problem.Code != "invalid_request" {
		t.Fatalf("expected 400 invalid_request without option_index, got %d %+v", status, problem)
	}

	var fetched pollhttp.PollResponse
	doJSON(t, s, http.MethodGet, "/v1/polls/"+created.PollID, nil, &fetched)
	if fetched.Version != 0 || fetched.Options[0].VoteCount != 0 {
		t.Fatalf("expected poll untouched, got %+v", fetched)
	}
}

func TestSlackInteractionRequiresUser(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := signedForm(t, s, "/slack/interactions", url.Values{"payload": {`{"type":"block_actions","actions":[]}`}}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user, got %d", rec.Code)
	}
}
