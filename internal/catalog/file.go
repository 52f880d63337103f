package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/models"
	"gopkg.in/yaml.v3"
)

// StaticResolver serves a catalog held in memory.
type StaticResolver struct {
	platforms map[string]models.Platform
	types     map[string]models.AccountType
	protocols map[string]models.Protocol
}

var _ Resolver = (*StaticResolver)(nil)

// NewStaticResolver indexes the given catalog. Duplicate IDs are rejected.
func NewStaticResolver(c Catalog) (*StaticResolver, error) {
	r := &StaticResolver{
		platforms: make(map[string]models.Platform, len(c.Platforms)),
		types:     make(map[string]models.AccountType, len(c.Types)),
		protocols: make(map[string]models.Protocol, len(c.Protocols)),
	}

	for _, p := range c.Platforms {
		if _, dup := r.platforms[p.ID]; dup || p.ID == "" {
			return nil, fmt.Errorf("invalid or duplicate platform id %q", p.ID)
		}
		r.platforms[p.ID] = p
	}
	for _, t := range c.Types {
		if _, dup := r.types[t.ID]; dup || t.ID == "" {
			return nil, fmt.Errorf("invalid or duplicate type id %q", t.ID)
		}
		r.types[t.ID] = t
	}
	for _, p := range c.Protocols {
		if _, dup := r.protocols[p.ID]; dup || p.ID == "" {
			return nil, fmt.Errorf("invalid or duplicate protocol id %q", p.ID)
		}
		r.protocols[p.ID] = p
	}

	return r, nil
}

// LoadFile reads a YAML catalog file and returns a resolver over it.
func LoadFile(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	r, err := NewStaticResolver(c)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("platforms", len(c.Platforms)).
		Int("types", len(c.Types)).
		Int("protocols", len(c.Protocols)).
		Msg("Loaded catalog")

	return r, nil
}

func (r *StaticResolver) ResolvePlatform(ctx context.Context, id string) (*models.Platform, error) {
	p, ok := r.platforms[id]
	if !ok {
		return nil, fmt.Errorf("%w: platform %q", ErrNotFound, id)
	}
	return &p, nil
}

func (r *StaticResolver) ResolveType(ctx context.Context, id string) (*models.AccountType, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: type %q", ErrNotFound, id)
	}
	return &t, nil
}

func (r *StaticResolver) ResolveProtocol(ctx context.Context, id string) (*models.Protocol, error) {
	p, ok := r.protocols[id]
	if !ok {
		return nil, fmt.Errorf("%w: protocol %q", ErrNotFound, id)
	}
	return &p, nil
}
