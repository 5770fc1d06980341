package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// SessionStore хранит сессии JSON-ключами с TTL до ExpiresAt.
// Sorted set по времени истечения позволяет janitor'у чистить индекс пачками.
type SessionStore struct {
	client   goredis.UniversalClient
	prefix   string
	indexKey string
}

// NewSessionStore создаёт хранилище сессий поверх клиента Redis.
func NewSessionStore(client goredis.UniversalClient, prefix string) *SessionStore {
	prefix = prefixOrDefault(prefix)
	return &SessionStore{
		client:   client,
		prefix:   prefix + "session:",
		indexKey: prefix + "sessions:expiry",
	}
}

func (s *SessionStore) key(id string) string {
	return s.prefix + id
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.BuilderSession, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.BuilderSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.BuilderSession{}, fmt.Errorf("get session %s: %w", id, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.BuilderSession{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	session := rec.toDomain()
	if session.Expired(time.Now()) {
		return domain.BuilderSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session domain.BuilderSession) error {
	raw, err := json.Marshal(toSessionRecord(session))
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return s.Delete(ctx, session.ID)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.ID), raw, ttl)
		if !session.ExpiresAt.IsZero() {
			pipe.ZAdd(ctx, s.indexKey, goredis.Z{
				Score:  float64(session.ExpiresAt.UnixMilli()),
				Member: session.ID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired удаляет сессии из индекса, истёкшие до before, самые старые первыми.
func (s *SessionStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := s.client.ZRangeByScore(ctx, s.indexKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
		members = append(members, id)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.indexKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return len(ids), nil
}

var _ domain.SessionStore = (*SessionStore)(nil)
