package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds staleness of cached read results.
const DefaultTTL = 15 * time.Minute

const keyPrefix = "crucible:q"

// Recorder receives cache effectiveness events. Implemented by the
// observability metrics; nil disables recording.
type Recorder interface {
	CacheHit(op string)
	CacheMiss(op string)
	CacheBypass(op string)
}

// Store caches read results keyed by (operation id, canonical
// parameters, scope fingerprint). The fingerprint in the key is what
// keeps one user's results out of another user's segment. Invalidation
// is an atomically incremented per-operation epoch counter embedded in
// every key, so a write's invalidation can never race an in-flight
// read's insert: the insert lands under the old epoch and is
// unreachable. Entries are immutable once written and expire via TTL.
//
// A nil *Store, a nil client, or an unreachable Redis all degrade to
// calling the loader directly; read availability never depends on the
// cache being healthy.
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	recorder Recorder
	flight   singleflight.Group
}

// NewStore constructs a Store. ttl <= 0 selects DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration, logger *slog.Logger, recorder Recorder) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl, logger: logger, recorder: recorder}
}

// GetOrCompute returns the cached result for (op, params, fingerprint)
// when present and fresh, otherwise runs compute, stores its result
// with the default TTL and returns it. Concurrent misses for the same
// key coalesce into a single compute call. dest receives the result by
// JSON round-trip in every path so cached and computed responses are
// indistinguishable to the caller.
func (s *Store) GetOrCompute(ctx context.Context, op string, params any, fingerprint string, dest any, compute func(context.Context) (any, error)) error {
	if compute == nil {
		return errors.New("platform/cache: compute func required")
	}
	if s == nil || s.client == nil {
		return computeInto(ctx, dest, compute)
	}

	key, err := s.key(ctx, op, params, fingerprint)
	if err != nil {
		s.bypass(op, "build key", err)
		return computeInto(ctx, dest, compute)
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		if s.recorder != nil {
			s.recorder.CacheHit(op)
		}
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		s.bypass(op, "get", err)
		return computeInto(ctx, dest, compute)
	}
	if s.recorder != nil {
		s.recorder.CacheMiss(op)
	}

	raw, err, _ := s.flight.Do(key, func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			// Store failure is not a read failure.
			s.warn("set", op, err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate removes every entry under the operation id by bumping its
// epoch. The next read under op misses regardless of remaining TTL;
// orphaned entries expire on their own.
func (s *Store) Invalidate(ctx context.Context, op string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Incr(ctx, epochKey(op)).Err(); err != nil {
		return fmt.Errorf("platform/cache: invalidate %s: %w", op, err)
	}
	return nil
}

// epoch returns the current invalidation epoch for op, initialising the
// counter on first use.
func (s *Store) epoch(ctx context.Context, op string) (int64, error) {
	key := epochKey(op)
	epoch, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := s.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return s.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return epoch, nil
}

func (s *Store) key(ctx context.Context, op string, params any, fingerprint string) (string, error) {
	epoch, err := s.epoch(ctx, op)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:e%d:%s:%s", keyPrefix, op, epoch, canonicalParams(params), fingerprint), nil
}

func epochKey(op string) string {
	return "crucible:epoch:" + op
}

// canonicalParams hashes the JSON encoding of params. encoding/json
// writes map keys in sorted order, so logically equal parameter sets
// share a key.
func canonicalParams(params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Unencodable params never share an entry.
		data = []byte(fmt.Sprintf("%#v", params))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

func computeInto(ctx context.Context, dest any, compute func(context.Context) (any, error)) error {
	value, err := compute(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *Store) bypass(op, stage string, err error) {
	if s.recorder != nil {
		s.recorder.CacheBypass(op)
	}
	s.warn(stage, op, err)
}

func (s *Store) warn(stage, op string, err error) {
	if s.logger != nil {
		s.logger.Warn("cache degraded",
			slog.String("stage", stage),
			slog.String("op", op),
			slog.Any("error", err))
	}
}
