package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/catalog"
	"github.com/wolfeidau/mailroster/internal/client"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/secrets"
	"github.com/wolfeidau/mailroster/internal/store"
	postgresstore "github.com/wolfeidau/mailroster/internal/store/postgres"
	"gopkg.in/yaml.v3"
)

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	ConnectAttempts uint          `help:"attempts to reach the database on startup" default:"5"`

	// Transaction Configuration
	StatementTimeout int32 `help:"statement timeout in milliseconds" default:"10000"`
	LockTimeout      int32 `help:"lock wait timeout in milliseconds, exceeded waits are reported as conflicts" default:"5000"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"MAILROSTER_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) pool(ctx context.Context) (*pgxpool.Pool, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
		ConnectAttempts: s.ConnectAttempts,
		ApplicationName: "mailroster",
	})
}

// CatalogFlags selects where platform, type and protocol entries are resolved.
type CatalogFlags struct {
	File     string        `help:"path to a YAML catalog file" env:"MAILROSTER_CATALOG_FILE"`
	URL      string        `help:"base URL of the catalog service" env:"MAILROSTER_CATALOG_URL"`
	CacheDir string        `help:"directory for cached catalog responses, in memory when empty" env:"MAILROSTER_CATALOG_CACHE_DIR"`
	Timeout  time.Duration `help:"catalog request timeout" default:"5s"`
}

func (c *CatalogFlags) Validate() error {
	if (c.File == "") == (c.URL == "") {
		return errors.New("exactly one of --catalog-file or --catalog-url is required")
	}
	return nil
}

func (c *CatalogFlags) resolver() (catalog.Resolver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.File != "" {
		return catalog.LoadFile(c.File)
	}
	log.Info().Str("url", c.URL).Str("cache_dir", c.CacheDir).Msg("Using catalog service")
	return catalog.NewHTTPResolver(c.URL, client.NewCachingHTTPClient(c.CacheDir, c.Timeout)), nil
}

// sealer returns the credential sealer for a base64 encoded 32 byte key.
func sealer(encodedKey string) (secrets.Sealer, error) {
	if encodedKey == "" {
		log.Warn().Msg("No encryption key configured, account secrets are stored unencrypted")
		return secrets.Plaintext{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be base64 encoded: %w", err)
	}
	return secrets.NewAESSealer(key)
}

type usersFile struct {
	Users []struct {
		ID        string `yaml:"id"`
		CompanyID string `yaml:"companyId"`
		Name      string `yaml:"name"`
		Email     string `yaml:"email"`
		Active    *bool  `yaml:"active"`
	} `yaml:"users"`
}

// loadUsers reads a YAML user directory export.
func loadUsers(path string) ([]*models.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	now := time.Now().UTC()
	users := make([]*models.User, 0, len(f.Users))
	for i, u := range f.Users {
		userID, err := uuid.Parse(u.ID)
		if err != nil {
			return nil, fmt.Errorf("user %d: invalid id: %w", i, err)
		}
		companyID, err := uuid.Parse(u.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("user %d: invalid companyId: %w", i, err)
		}
		users = append(users, &models.User{
			UserID:    userID,
			CompanyID: companyID,
			Name:      u.Name,
			Email:     u.Email,
			Active:    u.Active == nil || *u.Active,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return users, nil
}

func importUsers(ctx context.Context, dir store.UserDirectory, users []*models.User) error {
	for _, u := range users {
		if err := dir.Upsert(ctx, u); err != nil {
			return fmt.Errorf("failed to import user %s: %w", u.UserID, err)
		}
	}
	log.Info().Int("count", len(users)).Msg("Imported users")
	return nil
}
