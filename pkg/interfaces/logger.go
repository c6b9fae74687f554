package interfaces

import "context"

// LogField представляет дополнительное поле в логе
type LogField struct {
	Key   string
	Value interface{}
}

// Field сокращенная форма для LogField{Key: key, Value: value}
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// ErrField возвращает поле "error" с текстом ошибки
func ErrField(err error) LogField {
	if err == nil {
		return LogField{Key: "error", Value: nil}
	}
	return LogField{Key: "error", Value: err.Error()}
}

// LoggerPort определяет интерфейс для системы логирования.
// Аргументы сообщений передаются как LogField.
type LoggerPort interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// Fatal логирует сообщение и завершает процесс
	Fatal(msg string, args ...interface{})

	// Методы логирования с контекстом: к полям добавляются request_id, tenant_id и job_id,
	// если они есть в контексте
	DebugWithContext(ctx context.Context, msg string, args ...interface{})
	InfoWithContext(ctx context.Context, msg string, args ...interface{})
	WarnWithContext(ctx context.Context, msg string, args ...interface{})
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithFields возвращает новый логгер с добавленными полями
	WithFields(fields ...LogField) LoggerPort

	// WithField возвращает новый логгер с добавленным полем
	WithField(key string, value interface{}) LoggerPort

	// WithTenant возвращает новый логгер с идентификатором арендатора
	WithTenant(tenantID string) LoggerPort

	// Sync сбрасывает буферы логгера
	Sync() error
}
