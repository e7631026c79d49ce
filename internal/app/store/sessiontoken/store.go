// Package sessiontoken persists the last known identity-provider
// session token across process restarts.
//
// Exactly one key is used. Absence means anonymous; presence is
// advisory only and is re-validated through the provider's own
// session restore, so a stale token can never authenticate by itself.
// The token is sealed with an authenticated codec before it touches
// disk, so a copied or edited database file yields nothing usable.
package sessiontoken

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// tokenKey is the single fixed key the session token lives under.
const tokenKey = "userToken"

// Store is a badger-backed single-key token cache.
type Store struct {
	db    *badger.DB
	codec *securecookie.SecureCookie
	log   *zap.Logger
}

// Open opens (or creates) the token database at path. hashKey signs
// the sealed token and must be 32 or 64 bytes; blockKey, when
// non-nil, additionally encrypts it and must be 16, 24, or 32 bytes.
func Open(path string, hashKey, blockKey []byte, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: open %s: %w", path, err)
	}
	return newStore(db, hashKey, blockKey, logger), nil
}

// OpenInMemory opens a store with no disk persistence. Used in tests.
func OpenInMemory(hashKey, blockKey []byte, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: open in-memory: %w", err)
	}
	return newStore(db, hashKey, blockKey, logger), nil
}

func newStore(db *badger.DB, hashKey, blockKey []byte, logger *zap.Logger) *Store {
	return &Store{
		db:    db,
		codec: securecookie.New(hashKey, blockKey),
		log:   logger,
	}
}

// Save seals token and writes it under the fixed key,
// replacing whatever was there (last write wins).
func (s *Store) Save(token string) error {
	sealed, err := s.codec.Encode(tokenKey, token)
	if err != nil {
		return fmt.Errorf("sessiontoken: seal: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tokenKey), []byte(sealed))
	})
	if err != nil {
		return fmt.Errorf("sessiontoken: save: %w", err)
	}
	return nil
}

// Load returns the cached token. ok is false when no token is stored.
// A token that fails to unseal (tampered or written with other keys)
// is treated as absent and cleared.
func (s *Store) Load() (token string, ok bool, err error) {
	var sealed []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKey))
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sessiontoken: load: %w", err)
	}

	if err := s.codec.Decode(tokenKey, string(sealed), &token); err != nil {
		s.log.Warn("sessiontoken: stored token failed to unseal, clearing", zap.Error(err))
		if clearErr := s.Clear(); clearErr != nil {
			s.log.Error("sessiontoken: clear after unseal failure", zap.Error(clearErr))
		}
		return "", false, nil
	}
	return token, true, nil
}

// Clear removes the cached token. Clearing an absent token is not an error.
func (s *Store) Clear() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(tokenKey))
	})
	if err != nil {
		return fmt.Errorf("sessiontoken: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
