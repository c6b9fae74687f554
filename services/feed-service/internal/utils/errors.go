package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- feed service ------------------
var (
	// NotFound
	ErrTenantNotFound = errors.New("tenant not found")
	ErrFeedNotFound   = errors.New("feed not found")
	ErrJobNotFound    = errors.New("job not found")
	ErrPriceNotFound  = errors.New("variant has no price for tenant")

	// ConfigurationError: выбран режим доставки без полного набора реквизитов
	ErrTransferConfig = errors.New("sftp config is not set correctly")

	// IOError
	ErrStorageIO = errors.New("storage i/o failed")

	// TransferError
	ErrTransfer = errors.New("remote transfer failed")

	// ValidationError
	ErrInvalidPayload = errors.New("invalid job payload")
	ErrInvalidConfig  = errors.New("invalid feed configuration")
)
