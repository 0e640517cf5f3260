// SPDX-License-Identifier: MIT

// Package store persists the reservation and recording collections plus the
// series cache as JSON documents in a badger key-value database.
//
// Each collection is one document holding the full record list. All
// mutation goes through a read-modify-write closure guarded by a
// per-collection mutex, so concurrent write paths never interleave and lose
// an appended record. Callers never nest these operations, which keeps the
// locking non-reentrant by construction.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aircheckd/aircheck/internal/guide"
	"github.com/aircheckd/aircheck/internal/log"
	"github.com/aircheckd/aircheck/internal/recorder"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const (
	keyReservations = "doc:reservations"
	keyRecordings   = "doc:recordings"
	keySeriesCache  = "doc:series_cache"
)

// Store is a badger-backed document store. Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger

	reservationsMu sync.Mutex
	recordingsMu   sync.Mutex
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	return &Store{db: db, logger: log.WithComponent("store")}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) getDoc(key string, out any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putDoc(key string, doc any) error {
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Reservations returns a snapshot of the reservation collection.
func (s *Store) Reservations() ([]recorder.Reservation, error) {
	var rs []recorder.Reservation
	if _, err := s.getDoc(keyReservations, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// UpdateReservations applies fn to the current reservation collection and
// persists the result as one atomic write. fn receives a fresh snapshot;
// returning an error aborts without writing.
func (s *Store) UpdateReservations(fn func(rs []recorder.Reservation) ([]recorder.Reservation, error)) error {
	s.reservationsMu.Lock()
	defer s.reservationsMu.Unlock()

	var rs []recorder.Reservation
	if _, err := s.getDoc(keyReservations, &rs); err != nil {
		return err
	}
	updated, err := fn(rs)
	if err != nil {
		return err
	}
	return s.putDoc(keyReservations, updated)
}

// Recordings returns a snapshot of the recording collection.
func (s *Store) Recordings() ([]recorder.Recording, error) {
	var rs []recorder.Recording
	if _, err := s.getDoc(keyRecordings, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// UpdateRecordings applies fn to the current recording collection and
// persists the result as one atomic write.
func (s *Store) UpdateRecordings(fn func(rs []recorder.Recording) ([]recorder.Recording, error)) error {
	s.recordingsMu.Lock()
	defer s.recordingsMu.Unlock()

	var rs []recorder.Recording
	if _, err := s.getDoc(keyRecordings, &rs); err != nil {
		return err
	}
	updated, err := fn(rs)
	if err != nil {
		return err
	}
	return s.putDoc(keyRecordings, updated)
}

type seriesCacheDoc struct {
	Value     []guide.Series `json:"value"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// LoadSeriesCache implements guide.SeriesCachePersistence.
func (s *Store) LoadSeriesCache() ([]guide.Series, time.Time, error) {
	var doc seriesCacheDoc
	found, err := s.getDoc(keySeriesCache, &doc)
	if err != nil || !found {
		return nil, time.Time{}, err
	}
	return doc.Value, doc.ExpiresAt, nil
}

// SaveSeriesCache implements guide.SeriesCachePersistence.
func (s *Store) SaveSeriesCache(series []guide.Series, expiresAt time.Time) error {
	return s.putDoc(keySeriesCache, seriesCacheDoc{Value: series, ExpiresAt: expiresAt})
}
