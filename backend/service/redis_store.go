package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shhady/leadform/backend/config"
	"github.com/shhady/leadform/backend/model"
)

const (
	redisKeyPrefix  = "leadform:session:"
	redisTxAttempts = 20
)

// RedisStore keeps sessions in Redis with a sliding TTL so several server
// instances can share them. Updates use WATCH/MULTI. Attachment bytes live
// under their own key per slot and are only rewritten when they change.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.SessionConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	slog.Info("session store initialized", "store", "redis", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
	return NewRedisStoreWithClient(client, cfg.TTL), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func attachmentKey(id string, slot model.SlotName) string {
	return redisKey(id) + ":file:" + string(slot)
}

func (s *RedisStore) Create(ctx context.Context, sub *model.Submission) error {
	sub.UpdatedAt = time.Now()
	data, files, err := encodeSession(sub)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(sub.ID), data, s.ttl)
		for name, file := range files {
			pipe.Set(ctx, attachmentKey(sub.ID, name), file, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Submission, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sub, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadAttachments(ctx, s.client, id, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*model.Submission) error) (*model.Submission, error) {
	key := redisKey(id)
	var result *model.Submission

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		sub, err := decodeSession(data)
		if err != nil {
			return err
		}
		before, err := s.loadAttachments(ctx, tx, id, sub)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}
		sub.UpdatedAt = time.Now()
		out, files, err := encodeSession(sub)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			for _, name := range model.Slots {
				fileKey := attachmentKey(id, name)
				file, has := files[name]
				prev, had := before[name]
				switch {
				case !has && had:
					pipe.Del(ctx, fileKey)
				case !has:
				case had && bytes.Equal(file, prev):
					pipe.Expire(ctx, fileKey, s.ttl)
				default:
					pipe.Set(ctx, fileKey, file, s.ttl)
				}
			}
			return nil
		})
		if err == nil {
			result = sub
		}
		return err
	}

	for i := 0; i < redisTxAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// another writer touched the session between WATCH and EXEC
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to update session %s: too much contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	keys := []string{redisKey(id)}
	for _, name := range model.Slots {
		keys = append(keys, attachmentKey(id, name))
	}
	return s.client.Del(ctx, keys...).Err()
}

// encodeSession marshals sub without attachment bytes and returns those
// bytes per slot.
func encodeSession(sub *model.Submission) ([]byte, map[model.SlotName][]byte, error) {
	files := make(map[model.SlotName][]byte)
	stored := sub.Clone()
	for name, slot := range stored.Slots {
		if slot == nil || slot.Attachment == nil {
			continue
		}
		att := *slot.Attachment
		files[name] = att.Data
		att.Data = nil
		slot.Attachment = &att
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, files, nil
}

// loadAttachments fills in attachment bytes for sub and returns them per slot.
func (s *RedisStore) loadAttachments(ctx context.Context, r redis.Cmdable, id string, sub *model.Submission) (map[model.SlotName][]byte, error) {
	files := make(map[model.SlotName][]byte)
	for name, slot := range sub.Slots {
		if slot == nil || slot.Attachment == nil {
			continue
		}
		data, err := r.Get(ctx, attachmentKey(id, name)).Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to load attachment for %s: %w", name, err)
		}
		slot.Attachment.Data = data
		files[name] = data
	}
	return files, nil
}

func decodeSession(data []byte) (*model.Submission, error) {
	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sub.Fields == nil {
		sub.Fields = make(map[model.FieldName]string)
	}
	if sub.FieldErrors == nil {
		sub.FieldErrors = make(map[model.FieldName]string)
	}
	return &sub, nil
}
