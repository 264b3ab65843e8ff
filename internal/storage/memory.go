package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/insight-bot/internal/models"
)

var _ Storage = (*MemoryStorage)(nil)

type MemoryStorage struct {
	mu          sync.RWMutex
	history     map[string]*models.HistoryItem
	preferences map[int64]*models.Preferences
	now         func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		history:     make(map[string]*models.HistoryItem),
		preferences: make(map[int64]*models.Preferences),
		now:         time.Now,
	}
}

func (s *MemoryStorage) SaveHistory(ctx context.Context, item *models.HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	cp := *item
	s.history[item.ID] = &cp
	return nil
}

func (s *MemoryStorage) ListHistory(ctx context.Context, chatID int64, limit int) ([]*models.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	items := make([]*models.HistoryItem, 0)
	for _, item := range s.history {
		if item.ChatID == chatID {
			cp := *item
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStorage) GetHistory(ctx context.Context, id string) (*models.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.history[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStorage) DeleteHistory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.history[id]; !exists {
		return ErrNotFound
	}
	delete(s.history, id)
	return nil
}

func (s *MemoryStorage) ClearHistory(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range s.history {
		if item.ChatID == chatID {
			delete(s.history, id)
		}
	}
	return nil
}

func (s *MemoryStorage) GetPreferences(ctx context.Context, chatID int64) (*models.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, exists := s.preferences[chatID]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *prefs
	return &cp, nil
}

func (s *MemoryStorage) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs.UpdatedAt = s.now()
	cp := *prefs
	s.preferences[prefs.ChatID] = &cp
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
