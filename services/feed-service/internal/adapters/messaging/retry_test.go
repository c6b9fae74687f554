package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

// failingHandler возвращает ошибку на первых failures вызовах
func failingHandler(failures int32, calls *atomic.Int32) interfaces.MessageHandler {
	return func(context.Context, *interfaces.Message) error {
		if calls.Add(1) <= failures {
			return errors.New("tenant store unavailable")
		}
		return nil
	}
}

func TestHandleWithRetry(t *testing.T) {
	msg := &interfaces.Message{ID: "m1"}

	t.Run("recovers after transient errors", func(t *testing.T) {
		var calls atomic.Int32
		var retries int
		err := handleWithRetry(context.Background(), failingHandler(2, &calls), msg, fastRetry,
			func(error, time.Duration) { retries++ })

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, 2, retries)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls atomic.Int32
		err := handleWithRetry(context.Background(), failingHandler(10, &calls), msg, fastRetry, nil)

		require.Error(t, err)
		assert.Equal(t, "tenant store unavailable", err.Error())
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls atomic.Int32
		err := handleWithRetry(ctx, failingHandler(10, &calls), msg, RetryPolicy{InitialInterval: time.Second}, nil)

		require.Error(t, err)
		assert.LessOrEqual(t, calls.Load(), int32(1))
	})
}

func TestMemoryMessaging_RetriesFailedHandler(t *testing.T) {
	bus := NewMemoryMessaging(logger.NewNop())
	bus.SetRetryPolicy(fastRetry)
	defer bus.Close()

	var calls atomic.Int32
	_, err := bus.Subscribe(context.Background(), feedTopic, failingHandler(2, &calls))
	require.NoError(t, err)

	require.NoError(t, bus.PublishForTenant(context.Background(), feedTopic, []byte("{}"), "t1"))

	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
}
