// Package store provides the persistent key/value + list abstraction of
// spec.md §4.1: StatusRecords, dedup markers, and the work queue all live
// behind this interface. The reference implementation backs it with Redis,
// the one durable, atomic, linearizable-per-key store the teacher's go.mod
// already declares (github.com/go-redis/redis/v8).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the capability set spec.md §4.1 requires of the backing store.
// Implementations must make SetIfAbsentWithTTL atomic, make PopBlocking
// hand out each queue entry to exactly one caller, and be linearizable
// per key/list.
type Store interface {
	// Initialize prepares the store for use (connection, ping).
	Initialize(ctx context.Context) error
	// Shutdown releases store resources.
	Shutdown(ctx context.Context) error
	// Health reports whether the store is reachable.
	Health(ctx context.Context) error

	// SetIfAbsentWithTTL atomically writes value at key with the given TTL
	// only if key does not already exist. Returns true if this call won
	// the write.
	SetIfAbsentWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Get retrieves the value at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value at key with the given TTL, overwriting any existing
	// value. Used for StatusRecord updates, which must refresh the TTL on
	// every write per spec.md §3 invariant 1.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Push appends entry to the tail of list.
	Push(ctx context.Context, list string, entry []byte) error
	// PopBlocking removes and returns one entry from list, blocking up to
	// timeout. Returns (nil, false, nil) on timeout with no entry.
	PopBlocking(ctx context.Context, list string, timeout time.Duration) ([]byte, bool, error)
	// Length returns the current depth of list.
	Length(ctx context.Context, list string) (int64, error)

	// AddToSet adds member to set, for the reconciliation sweep's
	// outstanding-id index (SPEC_FULL.md §4.5). Idempotent.
	AddToSet(ctx context.Context, set string, member string) error
	// RemoveFromSet removes member from set. Idempotent.
	RemoveFromSet(ctx context.Context, set string, member string) error
	// SetMembers returns every member currently in set.
	SetMembers(ctx context.Context, set string) ([]string, error)
}

// RedisStore is the reference Store implementation.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a redis:// URL. Initialize must
// be called before use.
func NewRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opt)}, nil
}

// Initialize pings Redis to confirm connectivity.
func (s *RedisStore) Initialize(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Shutdown closes the underlying Redis connection pool.
func (s *RedisStore) Shutdown(ctx context.Context) error {
	return s.client.Close()
}

// Health pings Redis.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetIfAbsentWithTTL implements Store.SetIfAbsentWithTTL via SETNX semantics.
func (s *RedisStore) SetIfAbsentWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Set implements Store.Set.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Exists implements Store.Exists.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Push implements Store.Push via LPUSH; PopBlocking uses BRPOP, giving the
// queue FIFO order.
func (s *RedisStore) Push(ctx context.Context, list string, entry []byte) error {
	return s.client.LPush(ctx, list, entry).Err()
}

// PopBlocking implements Store.PopBlocking via BRPOP.
func (s *RedisStore) PopBlocking(ctx context.Context, list string, timeout time.Duration) ([]byte, bool, error) {
	result, err := s.client.BRPop(ctx, timeout, list).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	// BRPop returns [list, value].
	if len(result) != 2 {
		return nil, false, nil
	}
	return []byte(result[1]), true, nil
}

// Length implements Store.Length via LLEN.
func (s *RedisStore) Length(ctx context.Context, list string) (int64, error) {
	return s.client.LLen(ctx, list).Result()
}

// AddToSet implements Store.AddToSet via SADD.
func (s *RedisStore) AddToSet(ctx context.Context, set string, member string) error {
	return s.client.SAdd(ctx, set, member).Err()
}

// RemoveFromSet implements Store.RemoveFromSet via SREM.
func (s *RedisStore) RemoveFromSet(ctx context.Context, set string, member string) error {
	return s.client.SRem(ctx, set, member).Err()
}

// SetMembers implements Store.SetMembers via SMEMBERS.
func (s *RedisStore) SetMembers(ctx context.Context, set string) ([]string, error) {
	return s.client.SMembers(ctx, set).Result()
}
