// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package store persists the engine state that must survive a restart:
// the OAuth credentials, the identity list and the listen retry buffer.
//
// Keys are namespaced by prefix in a single BadgerDB:
//
//	cred:oauth            models.Credentials
//	identity:{user_id}    models.Identity
//	listen:{request_key}  models.ListenRequest
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

const (
	keyCredentials = "cred:oauth"
	prefixIdentity = "identity:"
	prefixListen   = "listen:"

	closeTimeout = 10 * time.Second
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store: closed")
)

// Config locates the database.
type Config struct {
	Path     string
	InMemory bool
}

// Store is a BadgerDB-backed state store. Safe for concurrent use.
type Store struct {
	db       *badger.DB
	path     string
	inMemory bool

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf("store path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
	}
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("State store opened")
	return &Store{db: db, path: cfg.Path, inMemory: cfg.InMemory}, nil
}

// OpenInMemory opens a throwaway store. Used by tests and by store.in_memory.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// SaveCredentials stores the OAuth token pair.
func (s *Store) SaveCredentials(ctx context.Context, creds models.Credentials) error {
	return s.put(ctx, keyCredentials, creds)
}

// Credentials returns the stored OAuth token pair or ErrNotFound.
func (s *Store) Credentials(ctx context.Context) (models.Credentials, error) {
	var creds models.Credentials
	err := s.get(ctx, keyCredentials, &creds)
	return creds, err
}

// ClearCredentials removes the OAuth token pair.
func (s *Store) ClearCredentials(ctx context.Context) error {
	return s.delete(ctx, keyCredentials)
}

// SaveIdentity stores id under its user id.
func (s *Store) SaveIdentity(ctx context.Context, id *models.Identity) error {
	if id == nil || id.UserID == 0 {
		return fmt.Errorf("identity requires a user id")
	}
	return s.put(ctx, identityKey(id.UserID), id)
}

// Identity returns the stored identity for userID or ErrNotFound.
func (s *Store) Identity(ctx context.Context, userID int64) (*models.Identity, error) {
	var id models.Identity
	if err := s.get(ctx, identityKey(userID), &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Identities returns every stored identity in key order.
func (s *Store) Identities(ctx context.Context) ([]*models.Identity, error) {
	var out []*models.Identity
	err := s.scan(ctx, prefixIdentity, func(_ string, val []byte) error {
		var id models.Identity
		if err := json.Unmarshal(val, &id); err != nil {
			return fmt.Errorf("unmarshal identity: %w", err)
		}
		out = append(out, &id)
		return nil
	})
	return out, err
}

// DeleteIdentity removes the identity for userID. Missing is not an error.
func (s *Store) DeleteIdentity(ctx context.Context, userID int64) error {
	return s.delete(ctx, identityKey(userID))
}

// PutListen stores or replaces one retry buffer entry.
func (s *Store) PutListen(ctx context.Context, key string, req models.ListenRequest) error {
	return s.put(ctx, prefixListen+key, req)
}

// DeleteListen removes one retry buffer entry. Missing is not an error.
func (s *Store) DeleteListen(ctx context.Context, key string) error {
	return s.delete(ctx, prefixListen+key)
}

// ListenBuffer returns the whole retry buffer.
func (s *Store) ListenBuffer(ctx context.Context) (map[string]models.ListenRequest, error) {
	out := make(map[string]models.ListenRequest)
	err := s.scan(ctx, prefixListen, func(key string, val []byte) error {
		var req models.ListenRequest
		if err := json.Unmarshal(val, &req); err != nil {
			return fmt.Errorf("unmarshal listen %s: %w", key, err)
		}
		out[strings.TrimPrefix(key, prefixListen)] = req
		return nil
	})
	return out, err
}

// ClearListenBuffer removes every retry buffer entry.
func (s *Store) ClearListenBuffer(ctx context.Context) error {
	var keys []string
	if err := s.scan(ctx, prefixListen, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunGC reclaims value log space. A no-op for in-memory stores.
func (s *Store) RunGC() error {
	if s.inMemory {
		return nil
	}
	if err := s.check(context.Background()); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close flushes and closes the database with a bounded wait.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("State store closed")
		return nil
	case <-time.After(closeTimeout):
		return fmt.Errorf("badgerdb close timeout after %v", closeTimeout)
	}
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) scan(ctx context.Context, prefix string, fn func(key string, val []byte) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func identityKey(userID int64) string {
	return prefixIdentity + strconv.FormatInt(userID, 10)
}
