// Package catalog resolves platform, type and protocol identifiers to display metadata
// and to the platform's reassignment capability.
package catalog

import (
	"context"
	"errors"

	"github.com/wolfeidau/mailroster/internal/models"
)

// ErrNotFound is returned when an identifier does not resolve.
var ErrNotFound = errors.New("catalog entry not found")

// Resolver is the read-only catalog lookup consumed by the lifecycle engine.
// Implementations may cache.
type Resolver interface {
	ResolvePlatform(ctx context.Context, id string) (*models.Platform, error)
	ResolveType(ctx context.Context, id string) (*models.AccountType, error)
	ResolveProtocol(ctx context.Context, id string) (*models.Protocol, error)
}

// Catalog is the full set of entries served by a static resolver.
type Catalog struct {
	Platforms []models.Platform    `yaml:"platforms" json:"platforms"`
	Types     []models.AccountType `yaml:"types" json:"types"`
	Protocols []models.Protocol    `yaml:"protocols" json:"protocols"`
}
