package models

import "time"

// Типы событий каталога
const (
	ProductChangedEvent        = "product_changed"
	ProductVariantChangedEvent = "product_variant_changed"
)

// Типы команд фида
const (
	RebuildCommand = "rebuild"
	SweepCommand   = "sweep"
)

// CatalogEvent событие изменения каталога от внешней системы
type CatalogEvent struct {
	EventType string    `json:"event_type"`
	TenantID  string    `json:"tenant_id"`
	ProductID string    `json:"product_id,omitempty"`
	VariantID string    `json:"variant_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// FeedUpdated публикуется после успешной сборки
type FeedUpdated struct {
	TenantID  string    `json:"tenant_id"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedCommand команда API-процесса воркеру
type FeedCommand struct {
	CommandType string `json:"command_type"`
	TenantID    string `json:"tenant_id,omitempty"`
	JobID       string `json:"job_id,omitempty"`
}
