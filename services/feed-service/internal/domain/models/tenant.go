package models

import (
	"path"
	"strings"
	"time"
)

// DeliveryMode способ доставки готового фида
type DeliveryMode string

const (
	DeliveryDisabled DeliveryMode = "disabled"
	DeliveryURL      DeliveryMode = "url"
	DeliverySFTP     DeliveryMode = "sftp"
)

// DefaultSFTPPort порт по умолчанию для новых конфигураций
const DefaultSFTPPort = 22

// Valid сообщает, является ли значение одним из известных режимов
func (m DeliveryMode) Valid() bool {
	switch m {
	case DeliveryDisabled, DeliveryURL, DeliverySFTP:
		return true
	}
	return false
}

// SFTPCredentials реквизиты удаленного сервера
type SFTPCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
}

// Complete сообщает, заполнены ли все обязательные поля
func (c SFTPCredentials) Complete() bool {
	return strings.TrimSpace(c.Host) != "" && c.Port > 0 && c.User != "" && c.Password != ""
}

// Tenant конфигурация фида арендатора (канала)
type Tenant struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Token           string          `json:"-"`
	DeliveryMode    DeliveryMode    `json:"delivery_mode"`
	ShopURL         string          `json:"shop_url"`
	SFTP            SFTPCredentials `json:"sftp"`
	DefaultLanguage string          `json:"default_language"`
	DefaultTaxZone  string          `json:"default_tax_zone,omitempty"`
	CurrencyCode    string          `json:"currency_code"`
	// RebuildPending - флаг устаревшего фида
	RebuildPending bool `json:"rebuild_pending"`
	// FeedFile - путь последнего успешно собранного файла
	FeedFile  string    `json:"feed_file,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasFeed сообщает, была ли хотя бы одна успешная сборка
func (t *Tenant) HasFeed() bool {
	return t.FeedFile != ""
}

// FeedFileName возвращает имя файла без каталога
func (t *Tenant) FeedFileName() string {
	if t.FeedFile == "" {
		return ""
	}
	return path.Base(t.FeedFile)
}

// TrimmedShopURL адрес магазина без пробелов по краям
func (t *Tenant) TrimmedShopURL() string {
	return strings.TrimSpace(t.ShopURL)
}
