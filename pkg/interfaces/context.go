package interfaces

import "context"

type contextKey string

// Ключи контекста, которые логгер добавляет к записям
const (
	RequestIDKey contextKey = "request_id"
	TenantIDKey  contextKey = "tenant_id"
	JobIDKey     contextKey = "job_id"
)

// WithRequestID добавляет ID запроса в контекст
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTenantID добавляет ID арендатора в контекст
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TenantIDKey, id)
}

// WithJobID добавляет ID задачи в контекст
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, JobIDKey, id)
}

// StringFromContext возвращает строковое значение ключа или пустую строку
func StringFromContext(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextFields возвращает непустые значения известных ключей контекста
func ContextFields(ctx context.Context) []LogField {
	var fields []LogField
	for _, key := range []contextKey{RequestIDKey, TenantIDKey, JobIDKey} {
		if v := StringFromContext(ctx, key); v != "" {
			fields = append(fields, LogField{Key: string(key), Value: v})
		}
	}
	return fields
}
