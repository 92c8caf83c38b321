package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
	"pollbot/contexts/chat-interaction/poll-service/ports"

	"github.com/google/uuid"
)

// Store keeps polls in a map. Every method holds the lock for the whole
// read-compare-write, which gives CompareAndSwapPoll the same single-row
// atomicity as a conditional write in a real backend.
type Store struct {
	mu    sync.RWMutex
	polls map[string]entities.Poll
}

func NewStore(seed []entities.Poll) *Store {
	polls := make(map[string]entities.Poll, len(seed))
	for _, poll := range seed {
		polls[strings.TrimSpace(poll.ID)] = poll.Clone()
	}
	return &Store{polls: polls}
}

func (s *Store) GetPoll(_ context.Context, pollID string) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[strings.TrimSpace(pollID)]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return poll.Clone(), nil
}

func (s *Store) CreatePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pollID := strings.TrimSpace(poll.ID)
	if _, exists := s.polls[pollID]; exists {
		return domainerrors.ErrAlreadyExists
	}
	poll.ID = pollID
	s.polls[pollID] = poll.Clone()
	return nil
}

func (s *Store) CompareAndSwapPoll(
	_ context.Context,
	pollID string,
	expectedVersion int64,
	data entities.PollData,
	updatedAt time.Time,
) (entities.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pollID = strings.TrimSpace(pollID)
	current, ok := s.polls[pollID]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	if current.Version != expectedVersion {
		return entities.Poll{}, domainerrors.ErrVersionConflict
	}
	current.Version = expectedVersion + 1
	current.Data = data.Clone()
	current.UpdatedAt = updatedAt.UTC()
	s.polls[pollID] = current
	return current.Clone(), nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.PollRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
