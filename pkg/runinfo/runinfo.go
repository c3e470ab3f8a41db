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

package runinfo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Provider reports the number of the run being processed.
type Provider interface {
	RunNumber(ctx context.Context) (int, error)
}

// Static always reports the same run number.
type Static int

func (s Static) RunNumber(context.Context) (int, error) {
	return int(s), nil
}

// RedisGetter is the subset of the go-redis client used by RedisProvider.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisProvider struct {
	client RedisGetter
	key    string
}

// NewRedisProvider reads the run number from an integer key. A missing key
// reports run 0.
func NewRedisProvider(client RedisGetter, key string) Provider {
	return &redisProvider{client: client, key: key}
}

func (p *redisProvider) RunNumber(ctx context.Context) (int, error) {
	val, err := p.client.Get(ctx, p.key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read run number from %s: %w", p.key, err)
	}
	return val, nil
}
