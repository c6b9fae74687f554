package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]func() error
	consumersMutex sync.Mutex
	brokers        string
	groupID        string
	retry          RetryPolicy
	logger         interfaces.LoggerPort
	wg             sync.WaitGroup
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(brokers []string, groupID string, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	servers := strings.Join(brokers, ",")
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            servers,
		"client.id":                    "feed-service-producer",
		"acks":                         "all",
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             "snappy",
		"linger.ms":                    10,
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaMessaging{
		producer:  producer,
		consumers: make(map[string]func() error),
		brokers:   servers,
		groupID:   groupID,
		retry:     DefaultRetryPolicy(),
		logger:    logger,
	}, nil
}

// SetRetryPolicy задает повторы обработчиков для последующих подписок
func (k *KafkaMessaging) SetRetryPolicy(policy RetryPolicy) {
	k.retry = policy
}

// messageToKafkaMessage преобразует сообщение в kafka.Message
func messageToKafkaMessage(topic string, message []byte, key string, headers map[string]string) *kafka.Message {
	kafkaHeaders := make([]kafka.Header, 0, len(headers)+2)
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	// служебные заголовки
	kafkaHeaders = append(kafkaHeaders,
		kafka.Header{Key: "message_id", Value: []byte(uuid.New().String())},
		kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
	)

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// kafkaMessageToMessage преобразует kafka.Message в Message
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	publishedAt := msg.Timestamp
	if ts, err := time.Parse(time.RFC3339Nano, headers["timestamp"]); err == nil {
		publishedAt = ts
	}

	var topic string
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       topic,
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		TenantID:    headers["tenant_id"],
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение и ждет подтверждения брокера
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.produce(ctx, messageToKafkaMessage(topic, message, "", nil))
}

// PublishForTenant публикует сообщение с учетом ID арендатора
func (k *KafkaMessaging) PublishForTenant(ctx context.Context, topic string, message []byte, tenantID string) error {
	headers := map[string]string{"tenant_id": tenantID}
	return k.produce(ctx, messageToKafkaMessage(topic, message, tenantID, headers))
}

func (k *KafkaMessaging) produce(ctx context.Context, msg *kafka.Message) error {
	delivery := make(chan kafka.Event, 1)
	if err := k.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("failed to produce message to %s: %w", *msg.TopicPartition.Topic, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery to %s failed: %w", *msg.TopicPartition.Topic, m.TopicPartition.Error)
		}
		return nil
	}
}

// Subscribe подписывается на тему в группе сервиса с ручным подтверждением
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	return k.SubscribeWithConfig(ctx, topic, handler, &interfaces.ConsumerConfig{
		GroupID:         k.groupID,
		AutoCommit:      false,
		AutoOffsetReset: "earliest",
		PollTimeout:     100 * time.Millisecond,
	})
}

// SubscribeWithConfig подписывается на тему с дополнительными настройками
func (k *KafkaMessaging) SubscribeWithConfig(ctx context.Context, topic string, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) (func() error, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        k.brokers,
		"group.id":                 config.GroupID,
		"auto.offset.reset":        config.AutoOffsetReset,
		"enable.auto.commit":       config.AutoCommit,
		"session.timeout.ms":       30000,
		"max.poll.interval.ms":     300000,
		"heartbeat.interval.ms":    3000,
		"fetch.wait.max.ms":        500,
		"reconnect.backoff.ms":     50,
		"reconnect.backoff.max.ms": 10000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	handlerID := uuid.New().String()
	consumeCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		defer close(done)
		k.consumeMessages(consumeCtx, consumer, topic, handler, config)
	}()

	k.logger.Info("Подписка на топик оформлена",
		interfaces.Field("topic", topic),
		interfaces.Field("group_id", config.GroupID),
	)

	var once sync.Once
	unsubscribe := func() error {
		var closeErr error
		once.Do(func() {
			cancel()
			<-done

			k.consumersMutex.Lock()
			delete(k.consumers, handlerID)
			k.consumersMutex.Unlock()

			closeErr = consumer.Close()
		})
		return closeErr
	}

	k.consumersMutex.Lock()
	k.consumers[handlerID] = unsubscribe
	k.consumersMutex.Unlock()

	return unsubscribe, nil
}

// consumeMessages обрабатывает сообщения из Kafka до отмены контекста
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, topic string, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) {
	log := k.logger.WithField("topic", topic)
	retry := k.retry

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(config.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := kafkaMessageToMessage(e)
			started := time.Now()

			err := handleWithRetry(ctx, handler, msg, retry, func(err error, wait time.Duration) {
				log.WarnWithContext(ctx, "Ошибка обработки сообщения, повтор",
					interfaces.Field("message_id", msg.ID),
					interfaces.Field("retry_in", wait.String()),
					interfaces.ErrField(err),
				)
			})
			if err != nil {
				messagesProcessed.WithLabelValues(topic, "error").Inc()
				if ctx.Err() != nil {
					// без коммита сообщение будет доставлено заново после перезапуска
					return
				}
				log.ErrorWithContext(ctx, "Ошибка обработки сообщения, сообщение будет прочитано повторно",
					interfaces.Field("message_id", msg.ID),
					interfaces.Field("tenant_id", msg.TenantID),
					interfaces.Field("offset", e.TopicPartition.Offset.String()),
					interfaces.ErrField(err),
				)
				// возврат к смещению сообщения: следующий Poll вернет его снова, последующие не подтверждаются
				if seekErr := consumer.Seek(e.TopicPartition, 1000); seekErr != nil {
					log.Error("Не удалось вернуться к смещению сообщения", interfaces.ErrField(seekErr))
				}
				continue
			}
			messagesProcessed.WithLabelValues(topic, "success").Inc()
			processingDuration.WithLabelValues(topic).Observe(time.Since(started).Seconds())

			if !config.AutoCommit {
				if _, err := consumer.CommitMessage(e); err != nil {
					log.Warn("Не удалось подтвердить сообщение", interfaces.ErrField(err))
				}
			}

		case kafka.Error:
			log.Error("Ошибка Kafka", interfaces.Field("code", e.Code().String()), interfaces.ErrField(e))
			if e.IsFatal() {
				return
			}

		default:
			log.Debug("Событие Kafka", interfaces.Field("event", e.String()))
		}
	}
}

// EnsureTopics создает недостающие топики
func (k *KafkaMessaging) EnsureTopics(ctx context.Context, topics []string, partitions, replicationFactor int) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	results, err := adminClient.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError:
			k.logger.Info("Топик создан", interfaces.Field("topic", r.Topic))
		case kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("failed to create topic %s: %s", r.Topic, r.Error.String())
		}
	}
	return nil
}

// Ping проверяет доступность брокеров
func (k *KafkaMessaging) Ping(ctx context.Context) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if _, err := k.producer.GetMetadata(nil, false, int(timeout.Milliseconds())); err != nil {
		return fmt.Errorf("kafka is unavailable: %w", err)
	}
	return nil
}

// Close останавливает потребителей и отправляет оставшиеся сообщения
func (k *KafkaMessaging) Close() error {
	k.consumersMutex.Lock()
	consumers := k.consumers
	k.consumers = make(map[string]func() error)
	k.consumersMutex.Unlock()

	for _, unsubscribe := range consumers {
		if err := unsubscribe(); err != nil {
			k.logger.Warn("Ошибка закрытия потребителя", interfaces.ErrField(err))
		}
	}
	k.wg.Wait()

	k.producer.Flush(15 * 1000)
	k.producer.Close()
	return nil
}
