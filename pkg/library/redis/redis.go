package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/library/consts"
)

// RedisLibrary implements Library using Redis.
type RedisLibrary struct {
	client *redis.Client
	prefix string
}

// New creates a new RedisLibrary. Every key is prefixed with prefix.
func New(client *redis.Client, prefix string) *RedisLibrary {
	return &RedisLibrary{client: client, prefix: prefix}
}

// Save stores the artifact as JSON under "artifact:{id}" and indexes it in
// sorted sets scored by creation time.
func (l *RedisLibrary) Save(ctx context.Context, a library.Artifact) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	score := float64(a.CreatedAt.UnixMilli())
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.prefix+consts.KeyArtifact+a.ID, b, 0)
		pipe.ZAdd(ctx, l.prefix+consts.KeyIndexAll, redis.Z{Score: score, Member: a.ID})
		pipe.ZAdd(ctx, l.prefix+consts.KeyIndex+string(a.Kind), redis.Z{Score: score, Member: a.ID})
		return nil
	})
	return err
}

// List loads artifacts from Redis.
func (l *RedisLibrary) List(ctx context.Context, q library.Query) ([]library.Artifact, error) {
	q = q.Normalize()

	index := l.prefix + consts.KeyIndexAll
	if q.Kind != "" {
		index = l.prefix + consts.KeyIndex + string(q.Kind)
	}

	ids, err := l.client.ZRevRange(ctx, index, 0, int64(q.Limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []library.Artifact{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = l.prefix + consts.KeyArtifact + id
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	artifacts := make([]library.Artifact, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var a library.Artifact
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifact %s: %w", ids[i], err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// Close closes the client.
func (l *RedisLibrary) Close(ctx context.Context) error {
	return l.client.Close()
}
