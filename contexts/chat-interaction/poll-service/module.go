package pollservice

import (
	"log/slog"
	"time"

	httpadapter "pollbot/contexts/chat-interaction/poll-service/adapters/http"
	"pollbot/contexts/chat-interaction/poll-service/adapters/memory"
	"pollbot/contexts/chat-interaction/poll-service/application/commands"
	"pollbot/contexts/chat-interaction/poll-service/application/queries"
	"pollbot/contexts/chat-interaction/poll-service/application/workers"
	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	"pollbot/contexts/chat-interaction/poll-service/ports"
	httptransport "pollbot/contexts/chat-interaction/poll-service/transport/http"
)

type Module struct {
	Handler  httpadapter.Handler
	Consumer workers.InteractionConsumer
	Store    *memory.Store
}

type Dependencies struct {
	Polls            ports.PollRepository
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	Responder        ports.Responder
	Publisher        ports.EventPublisher
	Subscriber       ports.EventSubscriber
	VoteMaxAttempts  int
	VoteRetryBackoff time.Duration
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createUseCase := commands.CreatePollUseCase{
		Polls:  deps.Polls,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	voteUseCase := commands.CastVoteUseCase{
		Polls:        deps.Polls,
		Clock:        deps.Clock,
		MaxAttempts:  deps.VoteMaxAttempts,
		RetryBackoff: deps.VoteRetryBackoff,
		Logger:       deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Create: createUseCase,
			Vote:   voteUseCase,
			Polls:  queries.GetPollUseCase{Polls: deps.Polls},
			Dispatcher: workers.InteractionDispatcher{
				Publisher: deps.Publisher,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
			},
			Logger: deps.Logger,
		},
		Consumer: workers.InteractionConsumer{
			Subscriber: deps.Subscriber,
			Create:     createUseCase,
			Vote:       voteUseCase,
			Responder:  deps.Responder,
			Updates:    workers.NewUpdateGate(),
			ParseText:  httptransport.ParsePollText,
			Logger:     deps.Logger,
		},
	}
}

// Bus is a process event bus usable as both publisher and subscriber.
type Bus interface {
	ports.EventPublisher
	ports.EventSubscriber
}

// NewInMemoryModule wires the module to an in-memory store. bus may be nil
// when only the synchronous handlers are exercised.
func NewInMemoryModule(seed []entities.Poll, responder ports.Responder, bus Bus, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	deps := Dependencies{
		Polls:           store,
		Clock:           store,
		IDGen:           store,
		Responder:       responder,
		VoteMaxAttempts: commands.DefaultMaxAttempts,
		Logger:          logger,
	}
	if bus != nil {
		deps.Publisher = bus
		deps.Subscriber = bus
	}
	module := NewModule(deps)
	module.Store = store
	return module
}
