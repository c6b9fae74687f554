package interfaces

import (
	"context"
	"time"
)

// Message представляет сообщение в системе
type Message struct {
	ID          string            `json:"id"`           // Уникальный ID сообщения
	Topic       string            `json:"topic"`        // Тема сообщения
	Key         string            `json:"key"`          // Ключ партиционирования (ID арендатора)
	Value       []byte            `json:"value"`        // Содержимое сообщения
	Headers     map[string]string `json:"headers"`      // Заголовки сообщения
	TenantID    string            `json:"tenant_id"`    // ID арендатора
	PublishedAt time.Time         `json:"published_at"` // Время публикации
}

// MessageHandler определяет функцию обработчика сообщений.
// Ошибка обработчика означает, что сообщение не подтверждается.
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig содержит настройки для подписчика на сообщения
type ConsumerConfig struct {
	GroupID         string        // ID группы потребителей
	AutoCommit      bool          // Автоматически подтверждать полученные сообщения
	AutoOffsetReset string        // earliest или latest
	PollTimeout     time.Duration // Таймаут для опроса новых сообщений
}

// MessagingPort определяет интерфейс шины доменных событий
type MessagingPort interface {
	// Publish публикует сообщение в указанную тему
	Publish(ctx context.Context, topic string, message []byte) error

	// PublishForTenant публикует сообщение с ключом и заголовком арендатора,
	// чтобы события одного арендатора сохраняли порядок
	PublishForTenant(ctx context.Context, topic string, message []byte, tenantID string) error

	// Subscribe подписывается на тему; возвращает функцию отписки
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (func() error, error)

	Close() error
}
