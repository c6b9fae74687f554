package messaging

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy повторы обработчика сообщения.
// Сообщение не подтверждается, пока обработчик не вернет nil.
type RetryPolicy struct {
	// MaxAttempts число вызовов обработчика за один цикл доставки, 0 без ограничения
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy 5 попыток с экспоненциальной паузой от 200мс до 10с
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// handleWithRetry вызывает обработчик до успеха, исчерпания попыток или отмены контекста.
// Возвращает последнюю ошибку обработчика либо ошибку контекста.
func handleWithRetry(ctx context.Context, handler interfaces.MessageHandler, msg *interfaces.Message, policy RetryPolicy, notify backoff.Notify) error {
	return backoff.RetryNotify(func() error {
		return handler(ctx, msg)
	}, policy.backOff(ctx), notify)
}
