package localstore

import (
	"Fasting-Tracker/entities"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultNamespace = "fasting"

	kindSessions = "sessions"
	kindMeals    = "meals"
)

type (
	// LocalStore keeps each owner's authoritative snapshot of sessions and
	// meals. It works without authentication and is never blocked by sync.
	LocalStore interface {
		LoadSessions(ctx context.Context, owner string) ([]entities.FastingSession, error)
		SaveSessions(ctx context.Context, owner string, sessions []entities.FastingSession) error
		LoadMeals(ctx context.Context, owner string) ([]entities.MealRecord, error)
		SaveMeals(ctx context.Context, owner string, meals []entities.MealRecord) error
		Owners(ctx context.Context) ([]string, error)
		Purge(ctx context.Context, owner string) error
		Ping(ctx context.Context) error
	}

	redisStore struct {
		rdb       *redis.Client
		namespace string
	}
)

// NewRedisStore namespaces every key as {namespace}:{owner}:{kind}.
func NewRedisStore(rdb *redis.Client, namespace string) LocalStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &redisStore{rdb: rdb, namespace: namespace}
}

func (s *redisStore) key(owner, kind string) string {
	return fmt.Sprintf("%s:%s:%s", s.namespace, owner, kind)
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) LoadSessions(ctx context.Context, owner string) ([]entities.FastingSession, error) {
	var sessions []entities.FastingSession
	if err := s.load(ctx, s.key(owner, kindSessions), &sessions); err != nil {
		return nil, fmt.Errorf("failed to load sessions for %s: %w", owner, err)
	}
	return sessions, nil
}

func (s *redisStore) SaveSessions(ctx context.Context, owner string, sessions []entities.FastingSession) error {
	if err := s.save(ctx, s.key(owner, kindSessions), sessions); err != nil {
		return fmt.Errorf("failed to save sessions for %s: %w", owner, err)
	}
	return nil
}

func (s *redisStore) LoadMeals(ctx context.Context, owner string) ([]entities.MealRecord, error) {
	var meals []entities.MealRecord
	if err := s.load(ctx, s.key(owner, kindMeals), &meals); err != nil {
		return nil, fmt.Errorf("failed to load meals for %s: %w", owner, err)
	}
	return meals, nil
}

func (s *redisStore) SaveMeals(ctx context.Context, owner string, meals []entities.MealRecord) error {
	if err := s.save(ctx, s.key(owner, kindMeals), meals); err != nil {
		return fmt.Errorf("failed to save meals for %s: %w", owner, err)
	}
	return nil
}

// Owners lists every owner that has a session snapshot.
func (s *redisStore) Owners(ctx context.Context) ([]string, error) {
	prefix := s.namespace + ":"
	suffix := ":" + kindSessions

	var owners []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*"+suffix, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		owner := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
		if owner != "" {
			owners = append(owners, owner)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan owners: %w", err)
	}
	return owners, nil
}

func (s *redisStore) Purge(ctx context.Context, owner string) error {
	if err := s.rdb.Del(ctx, s.key(owner, kindSessions), s.key(owner, kindMeals)).Err(); err != nil {
		return fmt.Errorf("failed to purge local state for %s: %w", owner, err)
	}
	return nil
}

func (s *redisStore) load(ctx context.Context, key string, v any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (s *redisStore) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, 0).Err()
}
