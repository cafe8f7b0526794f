package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bollardhq/bollard/pkg/types"
)

var bucketReleases = []byte("releases")

// Store persists release history in BoltDB. Keys are
// {app}/{startedAt}/{id} so a prefix scan yields one app's history in
// chronological order.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the history database in dataDir.
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "history.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReleases)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func releaseKey(rec *types.ReleaseRecord) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", rec.AppName, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.ID))
}

// PutRelease records a finished deployment.
func (s *Store) PutRelease(rec *types.ReleaseRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReleases)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(releaseKey(rec), data)
	})
}

// History returns an app's releases, most recent first, up to limit
// entries. A limit of zero means no limit.
func (s *Store) History(app string, limit int) ([]*types.ReleaseRecord, error) {
	prefix := []byte(app + "/")
	var records []*types.ReleaseRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReleases).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec types.ReleaseRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Chronological on disk, most recent first for callers.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// LastSuccess returns the most recent successful release for the app,
// or nil when none exists.
func (s *Store) LastSuccess(app string) (*types.ReleaseRecord, error) {
	records, err := s.History(app, 0)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Succeeded {
			return rec, nil
		}
	}
	return nil, nil
}
