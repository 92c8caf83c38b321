package httpserver

import (
	"sync"
	"time"
)

// Slack gives up redelivering an event well within an hour.
const slackEventRetention = time.Hour

// eventLedger remembers Events API event_ids so a redelivery of an event
// that was already queued is acknowledged without queueing it twice. An id
// is held while its first delivery is in flight and is only kept once that
// delivery succeeded, so a redelivery after a failure is processed.
type eventLedger struct {
	mu        sync.Mutex
	retention time.Duration
	inFlight  map[string]struct{}
	done      map[string]time.Time
}

func newEventLedger(retention time.Duration) *eventLedger {
	if retention <= 0 {
		retention = slackEventRetention
	}
	return &eventLedger{
		retention: retention,
		inFlight:  make(map[string]struct{}),
		done:      make(map[string]time.Time),
	}
}

// Claim reports whether the caller should process eventID. Events without
// an id are always processed.
func (l *eventLedger) Claim(eventID string, now time.Time) bool {
	if eventID == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	if _, ok := l.done[eventID]; ok {
		return false
	}
	if _, ok := l.inFlight[eventID]; ok {
		return false
	}
	l.inFlight[eventID] = struct{}{}
	return true
}

// Complete records a successful delivery.
func (l *eventLedger) Complete(eventID string, now time.Time) {
	if eventID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, eventID)
	l.done[eventID] = now.Add(l.retention)
}

// Release forgets a failed delivery so the next redelivery is processed.
func (l *eventLedger) Release(eventID string) {
	if eventID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, eventID)
}

func (l *eventLedger) pruneLocked(now time.Time) {
	for id, expiresAt := range l.done {
		if !now.Before(expiresAt) {
			delete(l.done, id)
		}
	}
}
