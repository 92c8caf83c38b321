package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollbot/contexts/chat-interaction/poll-service/domain/entities"
	domainerrors "pollbot/contexts/chat-interaction/poll-service/domain/errors"
	"pollbot/contexts/chat-interaction/poll-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores one row per poll. The option list and its vote sets live
// in a JSON column so every mutation is a single-row conditional update.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the polls table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&pollModel{}); err != nil {
		return r.logError("poll_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(pollID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("poll_repo_get_poll_failed", err, "poll_id", strings.TrimSpace(pollID))
	}
	return row.toEntity()
}

func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll) error {
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return r.logError("poll_repo_create_poll_marshal_failed", err, "poll_id", strings.TrimSpace(poll.ID))
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyExists
		}
		return r.logError("poll_repo_create_poll_failed", create.Error, "poll_id", row.ID)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

// CompareAndSwapPoll replaces data and bumps the version only while the row
// is still at expectedVersion. A miss is resolved by a point read into either
// ErrPollNotFound or ErrVersionConflict.
func (r *Repository) CompareAndSwapPoll(
	ctx context.Context,
	pollID string,
	expectedVersion int64,
	data entities.PollData,
	updatedAt time.Time,
) (entities.Poll, error) {
	pollID = strings.TrimSpace(pollID)
	payload, err := json.Marshal(data)
	if err != nil {
		return entities.Poll{}, r.logError("poll_repo_cas_marshal_failed", err, "poll_id", pollID)
	}

	var row pollModel
	result := r.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{}).
		Where("id = ? AND version = ?", pollID, expectedVersion).
		Updates(map[string]any{
			"version":    expectedVersion + 1,
			"data":       datatypes.JSON(payload),
			"updated_at": updatedAt.UTC(),
		})
	if result.Error != nil {
		return entities.Poll{}, r.logError("poll_repo_cas_failed", result.Error,
			"poll_id", pollID,
			"expected_version", expectedVersion,
		)
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).
			Model(&pollModel{}).
			Where("id = ?", pollID).
			Count(&exists).Error; err != nil {
			return entities.Poll{}, r.logError("poll_repo_cas_probe_failed", err, "poll_id", pollID)
		}
		if exists == 0 {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, domainerrors.ErrVersionConflict
	}
	// RETURNING fills created_at where the dialect supports it; the rest of
	// the committed state is exactly what was written.
	return entities.Poll{
		ID:        pollID,
		Version:   expectedVersion + 1,
		Data:      data.Clone(),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "chat-interaction/poll-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

type pollModel struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Version   int64          `gorm:"column:version;not null;default:0"`
	Data      datatypes.JSON `gorm:"column:data;not null"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(poll entities.Poll) (pollModel, error) {
	payload, err := json.Marshal(poll.Data)
	if err != nil {
		return pollModel{}, err
	}
	row := pollModel{
		ID:        strings.TrimSpace(poll.ID),
		Version:   poll.Version,
		Data:      datatypes.JSON(payload),
		CreatedAt: poll.CreatedAt.UTC(),
		UpdatedAt: poll.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m pollModel) toEntity() (entities.Poll, error) {
	var data entities.PollData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return entities.Poll{}, err
	}
	for i := range data.Options {
		if data.Options[i].Votes == nil {
			data.Options[i].Votes = []string{}
		}
	}
	return entities.Poll{
		ID:        m.ID,
		Version:   m.Version,
		Data:      data,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PollRepository = (*Repository)(nil)
