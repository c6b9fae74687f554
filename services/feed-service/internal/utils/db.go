package utils

import (
	"fmt"
	"strings"
	"time"
)

// PostgresParams параметры подключения к PostgreSQL
type PostgresParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	PoolSize int
	Timeout  time.Duration
}

// GenerateConnectionString собирает DSN в формате key=value, понятном pgxpool
func GenerateConnectionString(p PostgresParams) (string, error) {
	switch {
	case p.Host == "":
		return "", ErrStorageEmptyHostName
	case p.Port <= 0 || p.Port > 65535:
		return "", ErrStorageInvalidPortNumber
	case p.User == "":
		return "", ErrStorageEmptyUsername
	case p.Password == "":
		return "", ErrStorageEmptyPassword
	case p.DBName == "":
		return "", ErrStorageInvalidDatabaseName
	case p.SSLMode == "":
		return "", ErrStorageInvalidSslMode
	case p.Timeout < 0:
		return "", ErrStorageInvalidTimeout
	case p.PoolSize < 0:
		return "", ErrStorageInvalidPoolSize
	}

	parts := []string{
		"host=" + p.Host,
		fmt.Sprintf("port=%d", p.Port),
		"user=" + p.User,
		"password=" + quoteValue(p.Password),
		"dbname=" + p.DBName,
		"sslmode=" + p.SSLMode,
	}
	if p.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(p.Timeout.Seconds())))
	}
	if p.PoolSize > 0 {
		parts = append(parts, fmt.Sprintf("pool_max_conns=%d", p.PoolSize))
	}

	return strings.Join(parts, " "), nil
}

// quoteValue экранирует значение с пробелами или кавычками
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
