// Package statestore holds short-lived one-shot values in redis, keyed by a
// random token. Values are consumed on first read.
package statestore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("state not found")

// Config holds the redis connection settings for the state store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is a redis-backed one-shot value store.
type Store struct {
	rdb *redis.Client
}

// New creates a state store against the configured redis instance.
func New(cfg Config) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Store{rdb: rdb}
}

// Put stores a value under a freshly generated random key with the given TTL
// and returns the key.
func (s *Store) Put(ctx context.Context, value string, ttl time.Duration) (string, error) {
	for range 3 {
		key, err := generateKey()
		if err != nil {
			return "", err
		}

		ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("store state in redis: %w", err)
		}
		if ok {
			return key, nil
		}
	}

	return "", errors.New("failed to generate unique state key")
}

// Take retrieves and deletes a value in a single operation, so a key can be
// redeemed at most once.
func (s *Store) Take(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("retrieve state from redis: %w", err)
	}

	return val, nil
}

func generateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state key: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
