package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/google/uuid"
)

var errBusClosed = errors.New("message bus is closed")

// MemoryMessaging шина сообщений внутри процесса.
// Каждый подписчик получает сообщения темы в порядке публикации в своей горутине.
type MemoryMessaging struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*memorySubscriber
	closed      bool
	retry       RetryPolicy
	logger      interfaces.LoggerPort
	wg          sync.WaitGroup
}

type memorySubscriber struct {
	ch     chan *interfaces.Message
	cancel context.CancelFunc
	once   sync.Once
}

// NewMemoryMessaging создает шину
func NewMemoryMessaging(logger interfaces.LoggerPort) *MemoryMessaging {
	return &MemoryMessaging{
		subscribers: make(map[string]map[string]*memorySubscriber),
		retry:       DefaultRetryPolicy(),
		logger:      logger,
	}
}

// SetRetryPolicy задает повторы обработчиков для последующих подписок
func (m *MemoryMessaging) SetRetryPolicy(policy RetryPolicy) {
	m.mu.Lock()
	m.retry = policy
	m.mu.Unlock()
}

func (m *MemoryMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return m.publish(ctx, topic, message, "")
}

func (m *MemoryMessaging) PublishForTenant(ctx context.Context, topic string, message []byte, tenantID string) error {
	return m.publish(ctx, topic, message, tenantID)
}

func (m *MemoryMessaging) publish(ctx context.Context, topic string, message []byte, tenantID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errBusClosed
	}

	for _, sub := range m.subscribers[topic] {
		msg := &interfaces.Message{
			ID:          uuid.New().String(),
			Topic:       topic,
			Key:         tenantID,
			Value:       append([]byte(nil), message...),
			Headers:     map[string]string{"tenant_id": tenantID},
			TenantID:    tenantID,
			PublishedAt: time.Now().UTC(),
		}
		select {
		case sub.ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *MemoryMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errBusClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscriber{ch: make(chan *interfaces.Message, 256), cancel: cancel}
	id := uuid.New().String()
	if m.subscribers[topic] == nil {
		m.subscribers[topic] = make(map[string]*memorySubscriber)
	}
	m.subscribers[topic][id] = sub
	retry := m.retry

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg := <-sub.ch:
				if err := handleWithRetry(subCtx, handler, msg, retry, nil); err != nil {
					m.logger.Warn("Сообщение не обработано после повторов",
						interfaces.Field("topic", topic),
						interfaces.Field("message_id", msg.ID),
						interfaces.ErrField(err),
					)
				}
			}
		}
	}()

	return func() error {
		m.mu.Lock()
		delete(m.subscribers[topic], id)
		m.mu.Unlock()
		sub.once.Do(sub.cancel)
		return nil
	}, nil
}

// Close отписывает всех подписчиков и ждет завершения обработчиков
func (m *MemoryMessaging) Close() error {
	m.mu.Lock()
	m.closed = true
	for _, subs := range m.subscribers {
		for _, sub := range subs {
			sub.once.Do(sub.cancel)
		}
	}
	m.subscribers = make(map[string]map[string]*memorySubscriber)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
