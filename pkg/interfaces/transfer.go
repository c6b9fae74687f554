package interfaces

import (
	"context"
	"io"
)

// TransferCredentials реквизиты удаленного сервера
type TransferCredentials struct {
	Host     string
	Port     int
	User     string
	Password string
}

// TransferSession открытое соединение с удаленным сервером
type TransferSession interface {
	// Remove удаляет удаленный файл. Отсутствие файла ошибкой не считается
	Remove(name string) error

	// Put записывает содержимое r в удаленный файл name
	Put(ctx context.Context, r io.Reader, name string) error

	Close() error
}

// TransferPort открывает сессии передачи файлов
type TransferPort interface {
	Connect(ctx context.Context, creds TransferCredentials) (TransferSession, error)
}
