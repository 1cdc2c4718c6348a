package storage

import (
	"context"
	"errors"
)

// ErrNotFound возвращается Store.Read, если документа с таким ключом нет.
var ErrNotFound = errors.New("document not found")

// Store - хранилище JSON-документов по ключу.
// Ошибки бэкенда всегда возвращаются вызывающему и никогда
// не превращаются в "документ отсутствует".
type Store interface {
	// Read декодирует документ в dst. Возвращает ErrNotFound, если ключа нет.
	Read(ctx context.Context, key string, dst any) error
	// Write сохраняет документ. Документ должен быть сохранен до возврата.
	Write(ctx context.Context, key string, value any) error
	Close() error
}
