// Package redis provides Redis-backed adapters for the coordinator.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
)

// DefaultKeyPrefix is the namespace for registry keys. The hash tag keeps every registry key
// in a single cluster slot so multi-key commands work against Redis Cluster.
const DefaultKeyPrefix = "graphcoord:{registry}:"

const maxWatchRetries = 5

// ServiceStore is a Redis-backed service registry table shared by every coordinator replica.
// Each record is stored as JSON under its own key with a PX expiry matching ExpiresAt, and an
// index set tracks member keys for listing and sweeping.
type ServiceStore struct {
	client redis.UniversalClient
	prefix string
	clock  data.TimeProvider
}

// ServiceStoreOptions configures a ServiceStore.
type ServiceStoreOptions struct {
	Client       redis.UniversalClient
	Prefix       string // optional; defaults to DefaultKeyPrefix
	TimeProvider data.TimeProvider
}

// NewServiceStore creates a new Redis-backed service store.
func NewServiceStore(opts ServiceStoreOptions) (*ServiceStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &ServiceStore{
		client: opts.Client,
		prefix: prefix,
		clock:  data.OrRealTime(opts.TimeProvider),
	}, nil
}

func (s *ServiceStore) recordKey(member string) string { return s.prefix + "svc:" + member }

func (s *ServiceStore) indexKey() string { return s.prefix + "index" }

// ttlFor converts an absolute deadline into a Redis expiry. Non-positive results mean the
// record is already dead.
func (s *ServiceStore) ttlFor(rec *model.ServiceRecord) time.Duration {
	return rec.ExpiresAt.Sub(s.clock.Now())
}

// Put inserts or replaces a record. A record whose deadline has already passed is removed instead.
func (s *ServiceStore) Put(ctx context.Context, rec *model.ServiceRecord) error {
	if rec == nil {
		return data.ErrNilRecord
	}
	member := rec.Key.String()
	ttl := s.ttlFor(rec)
	if ttl <= 0 {
		_, err := s.Delete(ctx, rec.Key)
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal service record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.recordKey(member), payload, ttl)
		p.SAdd(ctx, s.indexKey(), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", member, err)
	}
	return nil
}

// Get returns the stored record, or data.ErrServiceNotFound once Redis has expired it.
func (s *ServiceStore) Get(ctx context.Context, key model.ServiceKey) (*model.ServiceRecord, error) {
	raw, err := s.client.Get(ctx, s.recordKey(key.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, data.ErrServiceNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(raw)
}

// Update applies fn inside an optimistic WATCH transaction and rewrites the record with an
// expiry derived from the updated ExpiresAt. A concurrent write or delete aborts and retries.
func (s *ServiceStore) Update(
	ctx context.Context,
	key model.ServiceKey,
	fn func(*model.ServiceRecord) error,
) (*model.ServiceRecord, error) {
	member := key.String()
	rk := s.recordKey(member)

	var updated *model.ServiceRecord
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, rk).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return data.ErrServiceNotFound
			}
			return fmt.Errorf("redis get: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.Key = key

		ttl := s.ttlFor(rec)
		if ttl <= 0 {
			return data.ErrServiceNotFound
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal service record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, rk, payload, ttl)
			p.SAdd(ctx, s.indexKey(), member)
			return nil
		})
		if err != nil {
			return err
		}
		updated = rec
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("redis update %s: too much contention", member)
}

// List returns every record still present in Redis. Index members whose keys already expired
// are skipped; DeleteExpired reconciles them.
func (s *ServiceStore) List(ctx context.Context) ([]*model.ServiceRecord, error) {
	members, values, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ServiceRecord, 0, len(members))
	for i := range members {
		raw, ok := values[i].(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the record and its index entry, reporting whether the record existed.
func (s *ServiceStore) Delete(ctx context.Context, key model.ServiceKey) (bool, error) {
	member := key.String()
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.recordKey(member))
		p.SRem(ctx, s.indexKey(), member)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete %s: %w", member, err)
	}
	return del.Val() > 0, nil
}

// DeleteExpired removes records whose deadline is at or before now, plus index members whose
// keys Redis already expired. Both count as evictions. Candidates are re-read under WATCH so a
// record renewed mid-pass is left alone.
func (s *ServiceStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	members, values, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	candidates := expiredMembers(members, values, now)
	if len(candidates) == 0 {
		return 0, nil
	}

	keys := make([]string, len(candidates))
	for i, m := range candidates {
		keys[i] = s.recordKey(m)
	}

	var evicted int
	txf := func(tx *redis.Tx) error {
		current, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}
		stale := expiredMembers(candidates, current, now)
		if len(stale) == 0 {
			evicted = 0
			return nil
		}
		staleKeys := make([]string, len(stale))
		staleMembers := make([]any, len(stale))
		for i, m := range stale {
			staleKeys[i] = s.recordKey(m)
			staleMembers[i] = m
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, staleKeys...)
			p.SRem(ctx, s.indexKey(), staleMembers...)
			return nil
		})
		if err != nil {
			return err
		}
		evicted = len(stale)
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("redis evict: %w", err)
		}
		return evicted, nil
	}
	return 0, errors.New("redis evict: too much contention")
}

// expiredMembers returns the members whose MGET value is missing, undecodable or past its deadline.
func expiredMembers(members []string, values []any, now time.Time) []string {
	var out []string
	for i, member := range members {
		raw, ok := values[i].(string)
		if !ok {
			out = append(out, member)
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil || rec.Expired(now) {
			out = append(out, member)
		}
	}
	return out
}

// Ping checks the health of the Redis connection.
func (s *ServiceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// scan reads the index and fetches every member's payload in one MGET.
func (s *ServiceStore) scan(ctx context.Context) ([]string, []any, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(members) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.recordKey(m)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis mget: %w", err)
	}
	return members, values, nil
}

func decodeRecord(raw []byte) (*model.ServiceRecord, error) {
	var rec model.ServiceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal service record: %w", err)
	}
	return &rec, nil
}
