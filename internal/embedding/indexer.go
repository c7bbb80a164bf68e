package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelqueue/internal/services"
)

// Upserter stores the embedding for one movie. Calls are idempotent per id.
type Upserter interface {
	UpsertEmbedding(ctx context.Context, externalID int64, text string, meta Metadata) error
}

// Indexer embeds text and writes the vector to an Index.
type Indexer struct {
	embedder Embedder
	index    *Index
}

var _ Upserter = (*Indexer)(nil)

// NewIndexer wires an embedder to an index.
func NewIndexer(embedder Embedder, index *Index) (*Indexer, error) {
	if embedder == nil || index == nil {
		return nil, errors.New("indexer requires an embedder and an index")
	}
	return &Indexer{embedder: embedder, index: index}, nil
}

// UpsertEmbedding embeds text as a document and stores it under externalID.
func (ix *Indexer) UpsertEmbedding(ctx context.Context, externalID int64, text string, meta Metadata) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "embedding", "upsert", "empty description", nil)
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return err
	}
	if err := ix.index.Upsert(ctx, Record{
		ExternalID: externalID,
		Model:      ix.embedder.Model(),
		Vector:     vectors[0],
		Document:   text,
		Metadata:   meta,
	}); err != nil {
		return services.Wrap(services.ErrTransient, "embedding", "store vector", fmt.Sprintf("tmdb id %d", externalID), err)
	}
	return nil
}

// Search embeds query and returns the nearest stored movies.
func (ix *Indexer) Search(ctx context.Context, query string, k int, maxDistance float64) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query must not be empty")
	}
	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return ix.index.Query(ctx, vec, k, maxDistance)
}

// Index returns the underlying vector index.
func (ix *Indexer) Index() *Index { return ix.index }
