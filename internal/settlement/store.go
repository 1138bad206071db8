package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	pkgredis "github.com/wishbeeai/wishbee-backend/pkg/redis"
)

// SessionStore persists settlement sessions and their single-flight locks.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	AcquireLock(ctx context.Context, sessionID string) (bool, error)
	ReleaseLock(ctx context.Context, sessionID string) error
}

type sessionCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SettlementSessionKey(sessionID string) string
	SettlementLockKey(sessionID string) string
}

type redisSessionStore struct {
	client  sessionCache
	ttl     time.Duration
	lockTTL time.Duration
}

// NewSessionStore builds a Redis-backed session store. The lock TTL must
// exceed the external-call timeout so a timed-out disposition call releases
// the busy flag by expiry at worst.
func NewSessionStore(client *pkgredis.Client, sessionTTL, callTimeout time.Duration) (SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &redisSessionStore{
		client:  client,
		ttl:     sessionTTL,
		lockTTL: callTimeout + 15*time.Second,
	}, nil
}

func (s *redisSessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal session")
	}
	key := s.client.SettlementSessionKey(session.ID)
	if err := s.client.Set(ctx, key, string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	key := s.client.SettlementSessionKey(sessionID)
	payload, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement session not found or expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}

	var session Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unmarshal session")
	}
	return &session, nil
}

func (s *redisSessionStore) AcquireLock(ctx context.Context, sessionID string) (bool, error) {
	key := s.client.SettlementLockKey(sessionID)
	ok, err := s.client.SetNX(ctx, key, "1", s.lockTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire settlement lock")
	}
	return ok, nil
}

func (s *redisSessionStore) ReleaseLock(ctx context.Context, sessionID string) error {
	key := s.client.SettlementLockKey(sessionID)
	if err := s.client.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release settlement lock")
	}
	return nil
}
