package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/xaenox/insight-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

var _ Storage = (*PostgresStorage)(nil)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveHistory(ctx context.Context, item *models.HistoryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	result, err := json.Marshal(item.Result)
	if err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	query := `
		INSERT INTO history (id, chat_id, topic, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET topic = EXCLUDED.topic, result = EXCLUDED.result`

	if _, err := s.db.ExecContext(ctx, query, item.ID, item.ChatID, item.Topic, result, item.CreatedAt); err != nil {
		return fmt.Errorf("error saving history: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListHistory(ctx context.Context, chatID int64, limit int) ([]*models.HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT id, chat_id, topic, result, created_at
		FROM history
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying history: %w", err)
	}
	defer rows.Close()

	items := make([]*models.HistoryItem, 0)
	for rows.Next() {
		item, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return items, nil
}

func (s *PostgresStorage) GetHistory(ctx context.Context, id string) (*models.HistoryItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, chat_id, topic, result, created_at
		FROM history
		WHERE id = $1`

	return scanHistory(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStorage) DeleteHistory(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting history: %w", err)
	}
	return requireAffected(result)
}

// requireAffected maps a statement that touched no row to ErrNotFound.
func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) ClearHistory(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("error clearing history: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetPreferences(ctx context.Context, chatID int64) (*models.Preferences, error) {
	query := `
		SELECT chat_id, model, target_format, tone, visual_style, updated_at
		FROM preferences
		WHERE chat_id = $1`

	prefs := &models.Preferences{}
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&prefs.ChatID,
		&prefs.Model,
		&prefs.TargetFormat,
		&prefs.Tone,
		&prefs.VisualStyle,
		&prefs.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying preferences: %w", err)
	}
	return prefs, nil
}

func (s *PostgresStorage) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	prefs.UpdatedAt = time.Now()

	query := `
		INSERT INTO preferences (chat_id, model, target_format, tone, visual_style, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id) DO UPDATE SET
			model = EXCLUDED.model,
			target_format = EXCLUDED.target_format,
			tone = EXCLUDED.tone,
			visual_style = EXCLUDED.visual_style,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		prefs.ChatID,
		string(prefs.Model),
		string(prefs.TargetFormat),
		string(prefs.Tone),
		string(prefs.VisualStyle),
		prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving preferences: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*models.HistoryItem, error) {
	item := &models.HistoryItem{}
	var result []byte
	if err := row.Scan(&item.ID, &item.ChatID, &item.Topic, &result, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning history: %w", err)
	}
	if err := json.Unmarshal(result, &item.Result); err != nil {
		return nil, fmt.Errorf("error decoding result: %w", err)
	}
	return item, nil
}

// Open returns the in-memory store when config asks for it and PostgreSQL otherwise.
func Open(ctx context.Context, config DatabaseConfig) (Storage, error) {
	if config.UseInMemory {
		return NewMemoryStorage(), nil
	}
	return NewPostgresStorage(ctx, config)
}
