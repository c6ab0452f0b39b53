package store

import (
	"encoding/json"
	"fmt"
	"os"

	"go.etcd.io/bbolt"

	"github.com/lgreg1908/papa-rag/internal/domain"
	"github.com/lgreg1908/papa-rag/internal/logger"
)

var (
	bucketChunks     = []byte("chunks")
	bucketBlobs      = []byte("blobs")
	bucketPathChunks = []byte("path_chunks")
	bucketTerms      = []byte("terms")
	bucketStats      = []byte("stats")
	keyStats         = []byte("corpus_stats")
)

// BoltMetaStore persists chunk metadata, chunk text, term postings and
// corpus stats in a bbolt file. Chunk text lives in its own bucket so
// metadata scans stay small.
type BoltMetaStore struct {
	db *bbolt.DB
}

// NewBoltMetaStore opens (or creates) the metadata store at path. A corrupt
// file is replaced by a fresh empty store: a warning is logged and startup
// proceeds.
func NewBoltMetaStore(path string) (*BoltMetaStore, error) {
	db, err := openRecovering(path)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketChunks, bucketBlobs, bucketPathChunks, bucketTerms, bucketStats}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltMetaStore{db: db}, nil
}

// openRecovering opens a bbolt file, degrading a corrupt store to a fresh
// empty one instead of failing the caller.
func openRecovering(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err == nil {
		return db, nil
	}

	logger.Warn("%v: %s: %v; starting with a fresh store", domain.ErrCorruptIndex, path, err)
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("failed to replace corrupt store %s: %w", path, rmErr)
	}
	return bbolt.Open(path, 0600, nil)
}

type chunkMeta struct {
	Path  string `json:"path"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Seq   int    `json:"seq"`
}

// PutChunks stores a batch of chunks in one transaction, appending their
// ids to the owning path's chunk list.
func (s *BoltMetaStore) PutChunks(chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		pathBucket := tx.Bucket(bucketPathChunks)

		byPath := make(map[string][]string)
		for _, chunk := range chunks {
			meta := chunkMeta{
				Path:  chunk.Path,
				Start: chunk.Start,
				End:   chunk.End,
				Seq:   chunk.Seq,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			if err := blobBucket.Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
				return err
			}
			byPath[chunk.Path] = append(byPath[chunk.Path], chunk.ID)
		}

		for path, ids := range byPath {
			var existing []string
			if data := pathBucket.Get([]byte(path)); data != nil {
				json.Unmarshal(data, &existing)
			}
			merged := appendMissing(existing, ids)
			data, err := json.Marshal(merged)
			if err != nil {
				return err
			}
			if err := pathBucket.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func appendMissing(existing, ids []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			existing = append(existing, id)
		}
	}
	return existing
}

func (s *BoltMetaStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("chunk not found: %s", id)
		}
		var meta chunkMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		text := tx.Bucket(bucketBlobs).Get([]byte(id))
		chunk = domain.Chunk{
			ID:    id,
			Path:  meta.Path,
			Text:  string(text),
			Start: meta.Start,
			End:   meta.End,
			Seq:   meta.Seq,
		}
		return nil
	})
	return chunk, err
}

func (s *BoltMetaStore) GetChunksByPath(path string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPathChunks).Get([]byte(path))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		for _, id := range ids {
			data := chunkBucket.Get([]byte(id))
			if data == nil {
				continue
			}
			var meta chunkMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				continue
			}
			text := blobBucket.Get([]byte(id))
			chunks = append(chunks, domain.Chunk{
				ID:    id,
				Path:  meta.Path,
				Text:  string(text),
				Start: meta.Start,
				End:   meta.End,
				Seq:   meta.Seq,
			})
		}
		return nil
	})
	return chunks, err
}

func (s *BoltMetaStore) ChunkIDsByPath(path string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPathChunks).Get([]byte(path))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ids)
	})
	return ids, err
}

// DeleteChunksByPath removes all chunks for a path and returns the removed
// ids so the caller can mirror the deletion into the vector index.
func (s *BoltMetaStore) DeleteChunksByPath(path string) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		pathBucket := tx.Bucket(bucketPathChunks)
		data := pathBucket.Get([]byte(path))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		for _, id := range ids {
			chunkBucket.Delete([]byte(id))
			blobBucket.Delete([]byte(id))
		}
		removed = ids
		return pathBucket.Delete([]byte(path))
	})
	return removed, err
}

func (s *BoltMetaStore) ChunkIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// DeleteChunks removes individual chunks by id, including their path-list
// entries. Used by load-time reconciliation.
func (s *BoltMetaStore) DeleteChunks(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		pathBucket := tx.Bucket(bucketPathChunks)

		paths := make(map[string]struct{})
		for id := range drop {
			if data := chunkBucket.Get([]byte(id)); data != nil {
				var meta chunkMeta
				if err := json.Unmarshal(data, &meta); err == nil {
					paths[meta.Path] = struct{}{}
				}
			}
			chunkBucket.Delete([]byte(id))
			blobBucket.Delete([]byte(id))
		}

		for path := range paths {
			data := pathBucket.Get([]byte(path))
			if data == nil {
				continue
			}
			var pathIDs []string
			if err := json.Unmarshal(data, &pathIDs); err != nil {
				continue
			}
			kept := pathIDs[:0]
			for _, id := range pathIDs {
				if _, gone := drop[id]; !gone {
					kept = append(kept, id)
				}
			}
			if len(kept) == 0 {
				pathBucket.Delete([]byte(path))
				continue
			}
			data, err := json.Marshal(kept)
			if err != nil {
				return err
			}
			if err := pathBucket.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutPostings stores term frequencies for a chunk.
func (s *BoltMetaStore) PutPostings(chunkID string, tf map[string]int) error {
	if len(tf) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTerms)
		for term, count := range tf {
			var postings []domain.Posting
			if data := b.Get([]byte(term)); data != nil {
				json.Unmarshal(data, &postings)
			}

			found := false
			for i := range postings {
				if postings[i].ChunkID == chunkID {
					postings[i].TF = count
					found = true
					break
				}
			}
			if !found {
				postings = append(postings, domain.Posting{ChunkID: chunkID, TF: count})
			}
			data, err := json.Marshal(postings)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(term), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltMetaStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltMetaStore) DeletePostings(chunkID string, terms []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTerms)
		for _, term := range terms {
			data := b.Get([]byte(term))
			if data == nil {
				continue
			}
			var postings []domain.Posting
			if err := json.Unmarshal(data, &postings); err != nil {
				continue
			}

			filtered := make([]domain.Posting, 0, len(postings))
			for _, p := range postings {
				if p.ChunkID != chunkID {
					filtered = append(filtered, p)
				}
			}
			if len(filtered) == 0 {
				b.Delete([]byte(term))
			} else {
				data, _ := json.Marshal(filtered)
				b.Put([]byte(term), data)
			}
		}
		return nil
	})
}

func (s *BoltMetaStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltMetaStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

func (s *BoltMetaStore) Close() error {
	return s.db.Close()
}
