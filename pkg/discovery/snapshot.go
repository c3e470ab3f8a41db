// Copyright 2025 The Eventplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	msgpack "github.com/shamaton/msgpack/v2"
)

// SnapshotStore keeps the last good source list so a registry can start up
// while the proxy is unreachable.
type SnapshotStore interface {
	Save(ctx context.Context, sources []SourceDescriptor) error
	Load(ctx context.Context) ([]SourceDescriptor, error)
}

// RedisKV is the subset of the go-redis client used by the store.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type snapshot struct {
	SavedAt int64              `msgpack:"savedAt"`
	Sources []SourceDescriptor `msgpack:"sources"`
}

type redisSnapshotStore struct {
	client RedisKV
	key    string
	ttl    time.Duration
}

// NewRedisSnapshotStore stores msgpack encoded snapshots under key. A ttl of
// zero keeps the snapshot forever.
func NewRedisSnapshotStore(client RedisKV, key string, ttl time.Duration) SnapshotStore {
	return &redisSnapshotStore{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (s *redisSnapshotStore) Save(ctx context.Context, sources []SourceDescriptor) error {
	data, err := msgpack.Marshal(snapshot{SavedAt: time.Now().Unix(), Sources: sources})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *redisSnapshotStore) Load(ctx context.Context) ([]SourceDescriptor, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap.Sources, nil
}
