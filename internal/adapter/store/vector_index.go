package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/lgreg1908/papa-rag/internal/port"
)

var bucketVectors = []byte("vectors")

// BoltVectorIndex is a flat (exact) nearest-neighbor index over L2 distance,
// persisted in its own bbolt file with an in-memory mirror for search.
// Writes hit bbolt and the mirror under one exclusive lock; searches take a
// shared lock, so readers proceed concurrently while mutations are
// serialized.
type BoltVectorIndex struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	vectors   map[string][]float32
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

// NewBoltVectorIndex opens (or creates) the vector index at path. A missing
// file yields a fresh empty index; a corrupt file is replaced with a fresh
// one after a warning.
func NewBoltVectorIndex(path string, dimension int) (*BoltVectorIndex, error) {
	db, err := openRecovering(path)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	idx := &BoltVectorIndex{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}

	if err := idx.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return idx, nil
}

// loadVectors mirrors all persisted vectors into memory. Entries that fail
// to decode or have the wrong dimension are skipped.
func (s *BoltVectorIndex) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil
			}
			if len(stored.Vector) != s.dimension {
				return nil
			}
			s.vectors[string(k)] = stored.Vector
			return nil
		})
	})
}

// Add inserts or replaces the vector stored under id.
func (s *BoltVectorIndex) Add(id string, vector []float32) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(storedVector{Vector: vector})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketVectors).Put([]byte(id), data)
	})
	if err != nil {
		return err
	}

	s.vectors[id] = vector
	return nil
}

// Remove deletes vectors by id. Absent ids are ignored.
func (s *BoltVectorIndex) Remove(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// Search returns up to k neighbors of the query in ascending L2 distance,
// ties broken by id for stable results.
func (s *BoltVectorIndex) Search(query []float32, k int) ([]port.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}
	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	neighbors := make([]port.Neighbor, 0, len(s.vectors))
	for id, vec := range s.vectors {
		neighbors = append(neighbors, port.Neighbor{
			ID:       id,
			Distance: l2Distance(query, vec),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ID < neighbors[j].ID
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// IDs lists every id currently held by the index.
func (s *BoltVectorIndex) IDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of vectors in the index.
func (s *BoltVectorIndex) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *BoltVectorIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// l2Distance computes the Euclidean distance between two vectors.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
