package store

import (
	"github.com/lgreg1908/papa-rag/internal/logger"
	"github.com/lgreg1908/papa-rag/internal/port"
)

// Reconcile drops entries present on only one side of the vector/metadata
// pair so both artifacts, loaded together, describe the same chunk ids. A
// crash between the two writes leaves at most an orphan on one side, which
// this removes at next startup.
func Reconcile(index port.VectorIndex, meta port.MetadataStore) error {
	vectorIDs, err := index.IDs()
	if err != nil {
		return err
	}
	chunkIDs, err := meta.ChunkIDs()
	if err != nil {
		return err
	}

	inMeta := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		inMeta[id] = struct{}{}
	}
	inIndex := make(map[string]struct{}, len(vectorIDs))
	for _, id := range vectorIDs {
		inIndex[id] = struct{}{}
	}

	var orphanVectors []string
	for _, id := range vectorIDs {
		if _, ok := inMeta[id]; !ok {
			orphanVectors = append(orphanVectors, id)
		}
	}
	var orphanChunks []string
	for _, id := range chunkIDs {
		if _, ok := inIndex[id]; !ok {
			orphanChunks = append(orphanChunks, id)
		}
	}

	if len(orphanVectors) > 0 {
		logger.Warn("dropping %d orphaned vectors with no metadata", len(orphanVectors))
		if err := index.Remove(orphanVectors...); err != nil {
			return err
		}
	}
	if len(orphanChunks) > 0 {
		logger.Warn("dropping %d orphaned metadata records with no vector", len(orphanChunks))
		if err := meta.DeleteChunks(orphanChunks); err != nil {
			return err
		}
	}

	return nil
}
