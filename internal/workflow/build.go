package workflow

import (
	"fmt"
	"log/slog"

	"reelqueue/internal/config"
	"reelqueue/internal/embedding"
	"reelqueue/internal/queue"
	"reelqueue/internal/tmdb"
)

// Services bundles the production collaborators built from config. Close
// releases the vector index.
type Services struct {
	Collaborators
	Indexer *embedding.Indexer
}

// Close releases resources held by the services.
func (s *Services) Close() error {
	if s == nil || s.Index == nil {
		return nil
	}
	return s.Index.Close()
}

// NewServices builds the TMDB client, embedding client and vector index
// described by cfg.
func NewServices(cfg *config.Config) (*Services, error) {
	client, err := tmdb.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	indexer, index, err := NewIndexer(cfg)
	if err != nil {
		return nil, err
	}
	return &Services{
		Collaborators: Collaborators{Catalog: client, Upserter: indexer, Index: index},
		Indexer:       indexer,
	}, nil
}

// NewIndexer opens the vector index and wires it to the configured embedder.
// The caller closes the returned index.
func NewIndexer(cfg *config.Config) (*embedding.Indexer, *embedding.Index, error) {
	embedder, err := embedding.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	index, err := embedding.OpenIndex(cfg.VectorDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open vector index: %w", err)
	}
	indexer, err := embedding.NewIndexer(embedder, index)
	if err != nil {
		index.Close()
		return nil, nil, err
	}
	return indexer, index, nil
}

// NewManagerFromConfig builds production services and a Manager on top of
// them. The caller closes the returned Services after stopping the Manager.
func NewManagerFromConfig(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, *Services, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := NewManager(cfg, store, services.Collaborators, logger, opts...)
	if err != nil {
		services.Close()
		return nil, nil, err
	}
	return mgr, services, nil
}
