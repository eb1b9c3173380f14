// Package targeting resolves OpenWrap custom targeting keys and values to
// remote ids and assembles the per line item targeting trees.
package targeting

import (
	"context"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/gam"
	"github.com/patrickwarner/openwrap-setup/internal/models"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
)

// Registry is the remote custom targeting registry. Find methods return nil
// without error when nothing matches.
type Registry interface {
	FindTargetingKey(ctx context.Context, name string) (*gam.CustomTargetingKey, error)
	CreateTargetingKey(ctx context.Context, name string) (*gam.CustomTargetingKey, error)
	FindTargetingValue(ctx context.Context, keyID int64, name string) (*gam.CustomTargetingValue, error)
	CreateTargetingValue(ctx context.Context, keyID int64, name, matchType string) (*gam.CustomTargetingValue, error)
}

// Locker serializes get-or-create of one registry entry across processes.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

// Lookup outcomes reported to metrics.
const (
	OutcomeHit     = "hit"
	OutcomeFound   = "found"
	OutcomeCreated = "created"
	OutcomeError   = "error"
)

// DefaultCacheSize bounds the value-id cache of one resolver.
const DefaultCacheSize = 65536

type valueKey struct {
	key   string
	value string
	match models.MatchType
}

// Resolver maps key names and (key, value, match type) tuples to remote ids.
// Every lookup consults the remote registry before creating, so repeated
// calls never create duplicates. A Resolver belongs to one run and is not
// safe for concurrent use.
type Resolver struct {
	registry Registry
	locker   Locker
	logger   *zap.Logger
	metrics  observability.MetricsRegistry

	keys   map[string]int64
	values *lru.Cache[valueKey, int64]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocker guards each get-or-create with a distributed lock.
func WithLocker(l Locker) Option {
	return func(r *Resolver) { r.locker = l }
}

// NewResolver creates a resolver backed by registry with a value cache of
// cacheSize entries (DefaultCacheSize when <= 0).
func NewResolver(registry Registry, cacheSize int, logger *zap.Logger, metrics observability.MetricsRegistry, opts ...Option) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	values, err := lru.New[valueKey, int64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create value cache: %w", err)
	}
	r := &Resolver{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		keys:     make(map[string]int64),
		values:   values,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// KeyID returns the id of the named key, creating the key when the registry
// does not have it.
func (r *Resolver) KeyID(ctx context.Context, name string) (int64, error) {
	if id, ok := r.keys[name]; ok {
		r.metrics.IncrementTargetingLookups(name, OutcomeHit)
		return id, nil
	}

	unlock, err := r.lock(ctx, "key:"+name)
	if err != nil {
		return 0, &ResolutionError{Key: name, Err: err}
	}
	defer unlock()

	id, outcome, err := getOrCreate(ctx,
		func() (int64, bool, error) {
			k, err := r.registry.FindTargetingKey(ctx, name)
			if err != nil || k == nil {
				return 0, false, err
			}
			return k.ID, true, nil
		},
		func() (int64, error) {
			k, err := r.registry.CreateTargetingKey(ctx, name)
			if err != nil {
				return 0, err
			}
			return k.ID, nil
		})
	if err != nil {
		r.metrics.IncrementTargetingLookups(name, OutcomeError)
		return 0, &ResolutionError{Key: name, Err: err}
	}

	r.metrics.IncrementTargetingLookups(name, outcome)
	r.logger.Debug("resolved targeting key",
		zap.String("key", name),
		zap.Int64("key_id", id),
		zap.String("outcome", outcome))
	r.keys[name] = id
	return id, nil
}

// ValueID returns the id of value under keyName, creating it with match when
// absent. The key itself is resolved first. A registry value whose match type
// differs from match is an ErrMatchTypeConflict and is not cached.
func (r *Resolver) ValueID(ctx context.Context, keyName, value string, match models.MatchType) (int64, error) {
	vk := valueKey{key: keyName, value: value, match: match}
	if id, ok := r.values.Get(vk); ok {
		r.metrics.IncrementTargetingLookups(keyName, OutcomeHit)
		return id, nil
	}

	keyID, err := r.KeyID(ctx, keyName)
	if err != nil {
		return 0, err
	}

	unlock, err := r.lock(ctx, "value:"+strconv.FormatInt(keyID, 10)+":"+value)
	if err != nil {
		return 0, &ResolutionError{Key: keyName, Value: value, MatchType: match, Err: err}
	}
	defer unlock()

	id, outcome, err := getOrCreate(ctx,
		func() (int64, bool, error) {
			v, err := r.registry.FindTargetingValue(ctx, keyID, value)
			if err != nil || v == nil {
				return 0, false, err
			}
			if v.MatchType != "" && v.MatchType != string(match) {
				r.logger.Warn("targeting value exists with a different match type",
					zap.String("key", keyName),
					zap.String("value", value),
					zap.String("want", string(match)),
					zap.String("have", v.MatchType))
				return 0, false, fmt.Errorf("%w: registry has %s", ErrMatchTypeConflict, v.MatchType)
			}
			return v.ID, true, nil
		},
		func() (int64, error) {
			v, err := r.registry.CreateTargetingValue(ctx, keyID, value, string(match))
			if err != nil {
				return 0, err
			}
			return v.ID, nil
		})
	if err != nil {
		r.metrics.IncrementTargetingLookups(keyName, OutcomeError)
		return 0, &ResolutionError{Key: keyName, Value: value, MatchType: match, Err: err}
	}

	r.metrics.IncrementTargetingLookups(keyName, outcome)
	r.values.Add(vk, id)
	return id, nil
}

// getOrCreate runs find, then create when find had nothing. A failed create
// is followed by one more find so a concurrent creator's entry is picked up.
func getOrCreate(ctx context.Context, find func() (int64, bool, error), create func() (int64, error)) (int64, string, error) {
	id, ok, err := find()
	if err != nil {
		return 0, "", fmt.Errorf("find: %w", err)
	}
	if ok {
		return id, OutcomeFound, nil
	}

	id, cerr := create()
	if cerr == nil {
		return id, OutcomeCreated, nil
	}
	if ctx.Err() != nil {
		return 0, "", fmt.Errorf("create: %w", cerr)
	}

	id, ok, err = find()
	if err == nil && ok {
		return id, OutcomeFound, nil
	}
	return 0, "", fmt.Errorf("create: %w", cerr)
}

func (r *Resolver) lock(ctx context.Context, name string) (func(), error) {
	if r.locker == nil {
		return func() {}, nil
	}
	return r.locker.Lock(ctx, "targeting:"+name)
}
