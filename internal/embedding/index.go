package embedding

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"reelqueue/internal/queue"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
    external_id INTEGER PRIMARY KEY,
    model TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    vector BLOB NOT NULL,
    document TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);
`

// Record is one stored vector.
type Record struct {
	ExternalID int64
	Model      string
	Vector     []float32
	Document   string
	Metadata   Metadata
	UpdatedAt  time.Time
}

// Match is a query hit. Distance is cosine distance in [0, 2].
type Match struct {
	ExternalID int64
	Distance   float64
	Document   string
	Metadata   Metadata
}

// Index is a SQLite-backed vector store keyed by external id.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex opens or creates the vector index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := queue.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(indexSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	return &Index{db: db, path: path}, nil
}

// Path returns the index file location.
func (ix *Index) Path() string { return ix.path }

// Close closes the database handle.
func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Upsert writes rec, replacing any previous vector for the same id.
func (ix *Index) Upsert(ctx context.Context, rec Record) error {
	if rec.ExternalID <= 0 {
		return errors.New("vector record requires a positive external id")
	}
	if len(rec.Vector) == 0 {
		return errors.New("vector record requires a non-empty vector")
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	updated := time.Now().UTC().Format(time.RFC3339Nano)
	return queue.RetryOnBusy(ctx, func() error {
		_, err := ix.db.ExecContext(ctx,
			`INSERT INTO embeddings (external_id, model, dimensions, vector, document, metadata, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(external_id) DO UPDATE SET
                 model = excluded.model,
                 dimensions = excluded.dimensions,
                 vector = excluded.vector,
                 document = excluded.document,
                 metadata = excluded.metadata,
                 updated_at = excluded.updated_at`,
			rec.ExternalID, rec.Model, len(rec.Vector), encodeVector(rec.Vector), rec.Document, string(meta), updated,
		)
		return err
	})
}

// Get returns the stored record for externalID.
func (ix *Index) Get(ctx context.Context, externalID int64) (*Record, error) {
	row := ix.db.QueryRowContext(ctx,
		`SELECT external_id, model, vector, document, metadata, updated_at FROM embeddings WHERE external_id = ?`, externalID)
	var (
		rec             Record
		blob            []byte
		meta, updatedAt string
	)
	if err := row.Scan(&rec.ExternalID, &rec.Model, &blob, &rec.Document, &meta, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vector %d: %w", externalID, queue.ErrNotFound)
		}
		return nil, fmt.Errorf("get vector %d: %w", externalID, err)
	}
	rec.Vector = decodeVector(blob)
	_ = json.Unmarshal([]byte(meta), &rec.Metadata)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rec, nil
}

// Count returns the number of stored vectors.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}

// Query returns up to k records nearest to vec whose cosine distance is at
// most maxDistance, nearest first. Vectors of a different dimensionality
// are ignored.
func (ix *Index) Query(ctx context.Context, vec []float32, k int, maxDistance float64) ([]Match, error) {
	if len(vec) == 0 || k <= 0 {
		return nil, nil
	}
	queryNorm := norm(vec)
	if queryNorm == 0 {
		return nil, errors.New("query vector has zero magnitude")
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT external_id, vector, document, metadata FROM embeddings WHERE dimensions = ?`, len(vec))
	if err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id   int64
			blob []byte
			doc  string
			meta string
		)
		if err := rows.Scan(&id, &blob, &doc, &meta); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		distance := cosineDistance(vec, queryNorm, decodeVector(blob))
		if distance > maxDistance {
			continue
		}
		m := Match{ExternalID: id, Distance: distance, Document: doc}
		_ = json.Unmarshal([]byte(meta), &m.Metadata)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ExternalID < matches[j].ExternalID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Ping verifies the index is readable.
func (ix *Index) Ping(ctx context.Context) error {
	return ix.db.PingContext(ctx)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineDistance(query []float32, queryNorm float64, other []float32) float64 {
	otherNorm := norm(other)
	if otherNorm == 0 || len(other) != len(query) {
		return 2
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(other[i])
	}
	return 1 - dot/(queryNorm*otherNorm)
}
