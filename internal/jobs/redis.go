package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seantiz/babelpdf/internal/model"
)

const (
	redisKeyPrefix = "babelpdf:job:"

	// Job records are transient; expire them well after any realistic
	// translation run so crashed-runner leftovers do not accumulate.
	redisJobTTL = 24 * time.Hour
)

// Compile-time interface satisfaction check.
var _ Store = (*RedisStore)(nil)

// RedisStore keeps job records in Redis so multiple front-end processes
// can share a job map. Records are JSON blobs with a TTL. The
// single-writer-per-job contract still holds: only the runner that owns a
// job writes it, so the read-check-write in Put does not race in practice.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Get fetches and decodes one job record.
func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	j := &model.Job{}
	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

// Put stores the job, rejecting transitions out of a terminal status.
func (s *RedisStore) Put(ctx context.Context, j *model.Job) error {
	prev, err := s.Get(ctx, j.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if prev != nil && model.IsTerminal(prev.Status) && prev.Status != j.Status {
		return ErrInvalidTransition
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(j.ID), data, redisJobTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a job record. Deleting a missing job is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// List scans all tracked jobs. The scan is over a bounded keyspace (jobs
// expire), so cursor iteration is acceptable here.
func (s *RedisStore) List(ctx context.Context) ([]*model.Job, error) {
	var jobs []*model.Job
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", iter.Val(), err)
		}
		j := &model.Job{}
		if err := json.Unmarshal(data, j); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", iter.Val(), err)
		}
		jobs = append(jobs, j)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return jobs, nil
}
