package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
)

func seededStore(t *testing.T) (*Store, entities.Poll) {
	t.Helper()
	data, err := entities.NewPollData("Lunch?", []string{"Pizza", "Salad"})
	if err != nil {
		t.Fatalf("new poll data failed: %v", err)
	}
	poll := entities.Poll{ID: "p1", Data: data}
	return NewStore([]entities.Poll{poll}), poll
}

func TestStoreReturnsDetachedCopies(t *testing.T) {
	store, _ := seededStore(t)

	first, err := store.GetPoll(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	first.Data.Options[0].Votes = append(first.Data.Options[0].Votes, "intruder")

	second, err := store.GetPoll(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	if len(second.Data.Options[0].Votes) != 0 {
		t.Fatalf("expected stored poll unaffected by caller mutation, got %v", second.Data.Options[0].Votes)
	}
}

func TestStoreCreateRejectsDuplicateID(t *testing.T) {
	store, poll := seededStore(t)
	if err := store.CreatePoll(context.Background(), poll); !errors.Is(err, domainerrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStoreCompareAndSwapChecksVersion(t *testing.T) {
	store, poll := seededStore(t)
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

	next, err := entities.ToggleVote(poll.Data, "u1", 0)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	committed, err := store.CompareAndSwapPoll(context.Background(), "p1", 0, next, now)
	if err != nil {
		t.Fatalf("compare and swap failed: %v", err)
	}
	if committed.Version != 1 || !committed.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected committed poll %+v", committed)
	}

	if _, err := store.CompareAndSwapPoll(context.Background(), "p1", 0, next, now); !errors.Is(err, domainerrors.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if _, err := store.CompareAndSwapPoll(context.Background(), "nope", 0, next, now); !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestStoreCompareAndSwapHasSingleWinner(t *testing.T) {
	store, poll := seededStore(t)

	const writers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next, err := entities.ToggleVote(poll.Data, "u"+strconv.Itoa(i), 0)
			if err != nil {
				t.Errorf("toggle failed: %v", err)
				return
			}
			if _, err := store.CompareAndSwapPoll(context.Background(), "p1", 0, next, time.Now()); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
