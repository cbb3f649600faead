package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/internal/keylock"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository is the durable message log. Appends are independent; reaction
// updates are serialized per message id.
type Repository struct {
	db    *gorm.DB
	locks *keylock.Locker
	now   func() time.Time
}

// NewRepository creates a repository over an opened and migrated database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:    db,
		locks: keylock.New(),
		now:   time.Now,
	}
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&messageRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Append validates and persists a new message with an empty reaction mapping.
func (r *Repository) Append(ctx context.Context, room, author, avatar, body string) (domain.Message, error) {
	text, err := domain.ValidateBody(body)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		Room:      room,
		User:      author,
		Avatar:    avatar,
		Text:      text,
		Time:      domain.Clock(r.now()),
		Reactions: domain.Reactions{},
	}
	row := messageRow{
		ID:        msg.ID,
		Room:      msg.Room,
		User:      msg.User,
		Avatar:    msg.Avatar,
		Text:      msg.Text,
		Time:      msg.Time,
		Reactions: "{}",
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return domain.Message{}, fmt.Errorf("%w: insert message: %w", domain.ErrStore, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.Message{}, fmt.Errorf("%w: message id %s already exists", domain.ErrStore, msg.ID)
	}
	return msg, nil
}

// RecentHistory returns up to limit of the newest messages of room, oldest first.
func (r *Repository) RecentHistory(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	var rows []messageRow
	err := r.db.WithContext(ctx).
		Where("room = ?", room).
		Order("rowid DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: select history: %w", domain.ErrStore, err)
	}

	messages := make([]domain.Message, len(rows))
	for i, row := range rows {
		msg, err := row.toMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		messages[len(rows)-1-i] = msg
	}
	return messages, nil
}

// FindByID returns a single message.
func (r *Repository) FindByID(ctx context.Context, id string) (domain.Message, error) {
	var row messageRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, domain.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("%w: find message: %w", domain.ErrStore, err)
	}
	msg, err := row.toMessage()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return msg, nil
}

// AddReaction increments symbol on the message and returns the updated mapping.
func (r *Repository) AddReaction(ctx context.Context, messageID, symbol string) (domain.Reactions, error) {
	if messageID == "" || symbol == "" {
		return nil, fmt.Errorf("%w: message id and symbol are required", domain.ErrValidation)
	}

	unlock, err := r.locks.Lock(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock message %s: %w", domain.ErrStore, messageID, err)
	}
	defer unlock()

	var updated domain.Reactions
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row messageRow
		if err := tx.Select("id", "reactions").First(&row, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		reactions, err := decodeReactions(row.Reactions)
		if err != nil {
			// A corrupt column restarts from zero rather than blocking reactions forever.
			reactions = domain.Reactions{}
		}
		reactions[symbol]++

		encoded, err := encodeReactions(reactions)
		if err != nil {
			return err
		}
		if err := tx.Model(&messageRow{}).Where("id = ?", messageID).Update("reactions", encoded).Error; err != nil {
			return err
		}
		updated = reactions
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: update reactions: %w", domain.ErrStore, err)
	}
	return updated.Clone(), nil
}
