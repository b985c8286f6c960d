// Package repository реализует хранилище данных на основе PostgreSQL
// для сохранения последних наблюдаемых снимков прав доступа клиентов.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotFound возвращается, если запись не найдена.
var ErrNotFound = errors.New("not found")

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Close закрывает соединение с базой данных.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables 
        WHERE table_name = 'entitlements'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check entitlements table: %w", err)
	}
	if !exists {
		return errors.New("required table entitlements missing")
	}
	return nil
}

// WaitForDB ждёт готовности схемы, делая до retries попыток с паузой delay.
func WaitForDB(ctx context.Context, storage *Storage, retries int, delay time.Duration) error {
	const op = "storage.WaitForDB"
	err := errors.New("no attempts made")
	for range retries {
		if err = CheckDatabaseReady(ctx, storage); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: database not ready after retries: %w", op, err)
}
