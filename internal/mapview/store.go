package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

var ErrSessionNotFound = errors.New("map session not found")

type SessionStore interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
}

// NewSessionStore keeps sessions in Redis when a client is configured and
// in process memory otherwise.
func NewSessionStore(rdb *redis.Client) SessionStore {
	if rdb == nil {
		return NewMemoryStore()
	}
	return &RedisStore{rdb: rdb, ttl: sessionTTL}
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err()
}

func sessionKey(id string) string {
	return "nlmap:mapview:" + id
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return copySession(sess), nil
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

func copySession(s Session) Session {
	if s.Draft != nil {
		d := *s.Draft
		s.Draft = &d
	}
	return s
}
