package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/types"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds the optimistic transaction retry loop in
// FindOneAndUpdate and DeleteOne.
const maxTxRetries = 16

// redisStore implements the Store interface using Redis. Each host is one
// JSON document under <prefix>:host:<id>, with a set of all IDs under
// <prefix>:hosts for listing.
type redisStore struct {
	client    *redis.Client
	keyPrefix string
}

// Ensure redisStore implements the Store interface
var _ Store = (*redisStore)(nil)

// newRedisClient creates a Redis client from a redis:// URI
func newRedisClient(redisURI string) (*redis.Client, error) {
	if redisURI == "" {
		return nil, errors.New("redis URI is required")
	}
	opts, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URI: %w", err)
	}
	return redis.NewClient(opts), nil
}

// newRedisStore creates a new Redis-backed host store
func newRedisStore(client *redis.Client, keyPrefix string) (*redisStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	return &redisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

// formHostKey creates the Redis key holding one host document
func (r *redisStore) formHostKey(id types.HostID) string {
	return r.keyPrefix + ":host:" + id.String()
}

// formIndexKey creates the Redis key of the set of all host IDs
func (r *redisStore) formIndexKey() string {
	return r.keyPrefix + ":hosts"
}

// Insert adds a new host record
func (r *redisStore) Insert(ctx context.Context, host *models.Host) error {
	payload, err := json.Marshal(host)
	if err != nil {
		return fmt.Errorf("failed to encode host %s: %w", host.ID, err)
	}

	key := r.formHostKey(host.ID)
	set, err := r.client.SetNX(ctx, key, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to insert host %s: %w", host.ID, err)
	}
	if !set {
		return ErrDuplicateKey
	}

	if err := r.client.SAdd(ctx, r.formIndexKey(), host.ID.String()).Err(); err != nil {
		return fmt.Errorf("failed to index host %s: %w", host.ID, err)
	}
	return nil
}

// FindOne returns the first host matching the filter
func (r *redisStore) FindOne(ctx context.Context, filter models.HostFilter) (*models.Host, error) {
	// Direct lookup when filtering by ID
	if filter.ID != nil {
		host, err := r.getHost(ctx, *filter.ID)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(host) {
			return nil, ErrNotFound
		}
		return host, nil
	}

	hosts, err := r.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, ErrNotFound
	}
	return hosts[0], nil
}

// Find returns all hosts matching the filter, ordered by creation time
func (r *redisStore) Find(ctx context.Context, filter models.HostFilter) ([]*models.Host, error) {
	ids, err := r.client.SMembers(ctx, r.formIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list host index: %w", err)
	}

	result := make([]*models.Host, 0, len(ids))
	for _, id := range ids {
		host, err := r.getHost(ctx, types.HostID(id))
		if errors.Is(err, ErrNotFound) {
			// Dangling index entry, skip it
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Matches(host) {
			result = append(result, host)
		}
	}
	sortHosts(result)
	return result, nil
}

// FindOneAndUpdate atomically applies the mutation to the first matching
// host. Runs as an optimistic WATCH transaction: the matched host key is
// watched, and the write is retried when a concurrent writer gets there
// first.
func (r *redisStore) FindOneAndUpdate(ctx context.Context, filter models.HostFilter, mutation models.HostMutation, ret ReturnDoc) (*models.Host, error) {
	var result *models.Host

	txn := func(tx *redis.Tx) error {
		host, err := r.matchOneTx(ctx, tx, filter)
		if err != nil {
			return err
		}

		before := host.Clone()
		mutation.Apply(host)

		payload, err := json.Marshal(host)
		if err != nil {
			return fmt.Errorf("failed to encode host %s: %w", host.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.formHostKey(host.ID), payload, 0)
			return nil
		})
		if err != nil {
			return err
		}

		if ret == ReturnBefore {
			result = before
		} else {
			result = host
		}
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txn, r.formIndexKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, ErrTxConflict
}

// DeleteOne removes the first host matching the filter
func (r *redisStore) DeleteOne(ctx context.Context, filter models.HostFilter) error {
	txn := func(tx *redis.Tx) error {
		host, err := r.matchOneTx(ctx, tx, filter)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.formHostKey(host.ID))
			pipe.SRem(ctx, r.formIndexKey(), host.ID.String())
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txn, r.formIndexKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

// Close closes the Redis client connection
func (r *redisStore) Close() error {
	return r.client.Close()
}

// getHost loads and decodes a single host document
func (r *redisStore) getHost(ctx context.Context, id types.HostID) (*models.Host, error) {
	data, err := r.client.Get(ctx, r.formHostKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get host %s: %w", id, err)
	}

	var host models.Host
	if err := json.Unmarshal([]byte(data), &host); err != nil {
		return nil, fmt.Errorf("failed to decode host %s: %w", id, err)
	}
	return &host, nil
}

// matchOneTx finds the first matching host inside a WATCH transaction,
// adding each inspected host key to the watch set so a concurrent write
// aborts the transaction.
func (r *redisStore) matchOneTx(ctx context.Context, tx *redis.Tx, filter models.HostFilter) (*models.Host, error) {
	readHost := func(id types.HostID) (*models.Host, error) {
		key := r.formHostKey(id)
		if err := tx.Watch(ctx, key).Err(); err != nil {
			return nil, err
		}
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get host %s: %w", id, err)
		}
		var host models.Host
		if err := json.Unmarshal([]byte(data), &host); err != nil {
			return nil, fmt.Errorf("failed to decode host %s: %w", id, err)
		}
		return &host, nil
	}

	// Direct lookup when filtering by ID
	if filter.ID != nil {
		host, err := readHost(*filter.ID)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(host) {
			return nil, ErrNotFound
		}
		return host, nil
	}

	ids, err := tx.SMembers(ctx, r.formIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list host index: %w", err)
	}
	sort.Strings(ids)

	var candidates []*models.Host
	for _, id := range ids {
		host, err := readHost(types.HostID(id))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Matches(host) {
			candidates = append(candidates, host)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	sortHosts(candidates)
	return candidates[0], nil
}
