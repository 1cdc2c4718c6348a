package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	getDocumentQuery    = `SELECT key, value, updated_at FROM documents WHERE key = $1`
	upsertDocumentQuery = `
        INSERT INTO documents (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = NOW()
    `
)

// DBTX - общий интерфейс для pgxpool.Pool, pgx.Conn и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

type documentRow struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresStore хранит документы в таблице documents (key -> jsonb).
type PostgresStore struct {
	db     DBTX
	logger *zap.Logger
}

// NewPostgresStore создает хранилище поверх пула соединений.
// Схема должна быть создана MigratePostgres.
func NewPostgresStore(db DBTX, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.Named("PostgresStore"),
	}
}

func (s *PostgresStore) Read(ctx context.Context, key string, dst any) error {
	var row documentRow
	if err := pgxscan.Get(ctx, s.db, &row, getDocumentQuery, key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		s.logger.Error("Failed to get document", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("postgres get %s: %w", key, err)
	}
	if err := json.Unmarshal(row.Value, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Write(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := s.db.Exec(ctx, upsertDocumentQuery, key, data); err != nil {
		s.logger.Error("Failed to upsert document", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("postgres upsert %s: %w", key, err)
	}
	return nil
}

// Close не закрывает пул: им владеет вызывающий.
func (s *PostgresStore) Close() error {
	return nil
}
