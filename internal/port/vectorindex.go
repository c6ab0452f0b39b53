package port

// VectorIndex stores embedding vectors and answers nearest-neighbor queries.
// Implementations allow concurrent readers during Search while mutating
// operations are serialized.
type VectorIndex interface {
	// Add inserts or replaces the vector stored under id.
	Add(id string, vector []float32) error

	// Remove deletes the vector stored under id. Removing an absent id is a
	// no-op.
	Remove(ids ...string) error

	// Search returns up to k neighbors of the query in non-decreasing
	// distance order. Ties are broken by id so results are stable for
	// identical index state and query. An empty index yields no results.
	Search(query []float32, k int) ([]Neighbor, error)

	// IDs lists every id currently held by the index.
	IDs() ([]string, error)

	// Count returns the number of vectors in the index.
	Count() (int, error)

	Close() error
}

// Neighbor is a single nearest-neighbor search hit. Smaller distance means
// more similar.
type Neighbor struct {
	ID       string
	Distance float64
}
