package interfaces

import (
	"context"
	"io"
)

// BlobWriter поток записи файла.
// Файл становится видимым по своему пути только после Commit; Abort удаляет все записанное.
type BlobWriter interface {
	io.Writer

	// Commit публикует файл и возвращает его расположение
	Commit() (string, error)

	// Abort отменяет запись. Повторный вызов и вызов после Commit ничего не делают
	Abort(err error)
}

// BlobStorePort определяет интерфейс хранилища файлов фидов
type BlobStorePort interface {
	// Create открывает запись файла по относительному пути
	Create(ctx context.Context, path string) (BlobWriter, error)

	// Open открывает файл на чтение. Отсутствующий файл возвращает ошибку, совместимую с os.ErrNotExist
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
