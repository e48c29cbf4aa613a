package catalog

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

var bucketArtists = []byte("artists")

// Store is a local, embedded fixture store for artist profiles, used
// by matchctl when developing or testing without a live upstream
// catalog service.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if necessary) a bbolt-backed Store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open fixture store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketArtists)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize fixture store buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores an ArtistProfile.
func (s *Store) Put(a ArtistProfile) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("catalog: failed to marshal artist %d: %w", a.ID, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketArtists).Put(idKey(a.ID), data)
	})
}

// idKey renders an artist ID as its decimal string bytes, so bbolt's
// lexicographic key order stays human-legible in bucket dumps. Bucket
// iteration order does not feed ranking (rank() re-sorts explicitly),
// so it need not be numeric.
func idKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

// All returns every stored ArtistProfile.
func (s *Store) All() ([]ArtistProfile, error) {
	var out []ArtistProfile
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketArtists).ForEach(func(k, v []byte) error {
			var a ArtistProfile
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("catalog: corrupt fixture entry %s: %w", k, err)
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

// Delete removes an ArtistProfile by ID.
func (s *Store) Delete(id int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketArtists).Delete(idKey(id))
	})
}
