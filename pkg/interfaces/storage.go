package interfaces

import (
	"context"
)

// StoragePort определяет общий интерфейс постоянного хранилища.
// Транзакции открываются через tx.TxManager, хранилище только проверяет соединение.
type StoragePort interface {
	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error

	// Close закрывает соединение с хранилищем
	Close() error
}
