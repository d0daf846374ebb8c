package results

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const resultsBucket = "results"

// BoltStore is the durable result table: one row per job id, append-only,
// keyed so iteration order is capture order. bbolt serializes writers, so
// concurrent worker appends never corrupt prior rows.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the result database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating results bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Append writes one result row. An existing row for the same job id is an
// error: the table is append-only and a job completes exactly once.
func (b *BoltStore) Append(result *Result) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultsBucket))
		key := jobKey(result.JobID)
		if bucket.Get(key) != nil {
			return fmt.Errorf("result for job %d already recorded", result.JobID)
		}
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// Get retrieves the result for a job id.
func (b *BoltStore) Get(jobID uint64) (*Result, error) {
	var result *Result
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(resultsBucket)).Get(jobKey(jobID))
		if data == nil {
			return fmt.Errorf("result not found for job %d", jobID)
		}
		return json.Unmarshal(data, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns all results in job id order.
func (b *BoltStore) List() ([]*Result, error) {
	results := make([]*Result, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).ForEach(func(k, v []byte) error {
			var r Result
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling result: %w", err)
			}
			results = append(results, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// LastJobID returns the highest job id in the table, or zero when empty.
// The scheduler seeds its id sequence from this so ids stay strictly
// increasing across restarts.
func (b *BoltStore) LastJobID() (uint64, error) {
	var last uint64
	err := b.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket([]byte(resultsBucket)).Cursor().Last()
		if k != nil {
			last = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return last, err
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// jobKey encodes a job id big-endian so bbolt's byte ordering matches
// numeric ordering.
func jobKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
