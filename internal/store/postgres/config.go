package postgres

import (
	"fmt"
)

// StoreConfig holds store-specific configuration for the PostgreSQL account store.
// Pool configuration is handled separately via PoolConfig.
type StoreConfig struct {
	// AutoMigrate applies pending migrations when the store is created.
	AutoMigrate bool

	// StatementTimeoutMillis bounds every statement run inside a transaction.
	// Default: 10000 (10 seconds)
	StatementTimeoutMillis int32

	// LockTimeoutMillis bounds how long a transaction waits for account or owner locks.
	// A lock timeout is reported as a conflict.
	// Default: 5000 (5 seconds)
	LockTimeoutMillis int32
}

// Validate checks that the configuration is valid.
func (c *StoreConfig) Validate() error {
	if c.StatementTimeoutMillis < 0 {
		return fmt.Errorf("statement timeout must not be negative")
	}
	if c.LockTimeoutMillis < 0 {
		return fmt.Errorf("lock timeout must not be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.StatementTimeoutMillis == 0 {
		c.StatementTimeoutMillis = 10000
	}
	if c.LockTimeoutMillis == 0 {
		c.LockTimeoutMillis = 5000
	}
}
