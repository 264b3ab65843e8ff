// Package storage keeps generation history and per-chat preferences for the
// front-ends.
package storage

import (
	"context"
	"errors"

	"github.com/xaenox/insight-bot/internal/models"
)

// ErrNotFound is returned when a history item or preference row does not exist.
var ErrNotFound = errors.New("not found")

// DefaultHistoryLimit bounds history listings when the caller passes no limit.
const DefaultHistoryLimit = 20

type Storage interface {
	HistoryStorage
	PreferenceStorage
	Close() error
}

type HistoryStorage interface {
	// SaveHistory stores item, assigning ID and CreatedAt when they are empty.
	SaveHistory(ctx context.Context, item *models.HistoryItem) error
	// ListHistory returns the newest items of a chat first.
	ListHistory(ctx context.Context, chatID int64, limit int) ([]*models.HistoryItem, error)
	GetHistory(ctx context.Context, id string) (*models.HistoryItem, error)
	DeleteHistory(ctx context.Context, id string) error
	ClearHistory(ctx context.Context, chatID int64) error
}

type PreferenceStorage interface {
	GetPreferences(ctx context.Context, chatID int64) (*models.Preferences, error)
	SavePreferences(ctx context.Context, prefs *models.Preferences) error
}
