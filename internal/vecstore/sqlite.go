package vecstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
)

// SQLiteConfig holds the settings for the local fallback store.
type SQLiteConfig struct {
	// Path is the database file path. Use ":memory:" in tests.
	Path string
	// CollectionBase is the unqualified collection name (default: sekb_knowledge).
	CollectionBase string
	// EmbeddingModel qualifies the collection name, mirroring the primary store.
	EmbeddingModel string
	// Dimensions is the vector length stored in this collection.
	Dimensions int
}

// SQLiteStore implements VectorStore on a local SQLite database. Embeddings
// are stored as little-endian float32 blobs; similarity search pre-filters
// in SQL and ranks by cosine similarity in Go. It trades query speed for
// zero external dependencies, which is exactly what a fallback store needs.
type SQLiteStore struct {
	// db is the underlying connection pool (single writer, WAL mode).
	db *sql.DB
	// collection is the resolved version-qualified collection name.
	collection string
	// cfg holds the resolved configuration.
	cfg *SQLiteConfig
}

// NewSQLiteStore opens (or creates) the local store and bootstraps its
// schema. Use ":memory:" for tests.
func NewSQLiteStore(ctx context.Context, cfg *SQLiteConfig) (*SQLiteStore, error) {
	const op = "vecstore.NewSQLiteStore"

	if cfg == nil || cfg.Path == "" {
		return nil, kberr.New(kberr.KindValidation, op, "database path is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, kberr.New(kberr.KindValidation, op, "dimensions must be positive")
	}
	if cfg.CollectionBase == "" {
		cfg.CollectionBase = "sekb_knowledge"
	}

	// WAL improves concurrent read performance; a single writer connection
	// avoids SQLITE_BUSY under concurrent ingests.
	dsn := cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, fmt.Sprintf("open %s", cfg.Path), err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:         db,
		collection: CollectionName(cfg.CollectionBase, cfg.EmbeddingModel),
		cfg:        cfg,
	}
	if err := s.EnsureCollection(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Name returns the backend label.
func (s *SQLiteStore) Name() string { return "sqlite" }

// EnsureCollection creates the schema if absent: the chunks table, indexes
// on the filterable fields, and an FTS5 mirror of content for full-text
// lookups. Idempotent.
func (s *SQLiteStore) EnsureCollection(ctx context.Context) error {
	const op = "vecstore.SQLiteStore.EnsureCollection"

	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id          TEXT PRIMARY KEY,
    collection        TEXT NOT NULL,
    content           TEXT NOT NULL,
    content_hash      TEXT NOT NULL DEFAULT '',
    document_id       TEXT NOT NULL,
    document_title    TEXT NOT NULL DEFAULT '',
    document_type     TEXT NOT NULL DEFAULT '',
    section_title     TEXT NOT NULL DEFAULT '',
    section_hierarchy TEXT NOT NULL DEFAULT '[]',  -- JSON array of strings
    chunk_type        TEXT NOT NULL DEFAULT '',
    clause_number     TEXT NOT NULL DEFAULT '',
    normative         INTEGER,                     -- NULL = unknown
    page_numbers      TEXT NOT NULL DEFAULT '[]',  -- JSON array of ints
    refs              TEXT NOT NULL DEFAULT '[]',  -- JSON array of strings
    token_count       INTEGER NOT NULL DEFAULT 0,
    parent_chunk_id   TEXT NOT NULL DEFAULT '',
    embedding         BLOB NOT NULL,               -- little-endian float32
    embedding_model   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks (collection);
CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (collection, document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document_type ON chunks (collection, document_type);
CREATE INDEX IF NOT EXISTS idx_chunks_chunk_type ON chunks (collection, chunk_type);
CREATE INDEX IF NOT EXISTS idx_chunks_clause ON chunks (collection, clause_number);
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(chunk_id UNINDEXED, content);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return kberr.Wrap(kberr.KindConnection, op, "schema migration failed", err)
	}
	return nil
}

// AddChunks validates and upserts chunks in batches of 100, returning the
// number written. Each batch is one transaction.
func (s *SQLiteStore) AddChunks(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	const op = "vecstore.SQLiteStore.AddChunks"

	for i := range chunks {
		if err := chunks[i].Validate(s.cfg.Dimensions); err != nil {
			return 0, err
		}
	}

	written := 0
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.upsertBatch(ctx, chunks[start:end]); err != nil {
			return written, kberr.Wrap(kberr.KindConnection, op, "upsert batch failed", err)
		}
		written += end - start
	}
	return written, nil
}

// upsertBatch writes one batch of chunks inside a transaction, replacing
// existing rows and keeping the FTS mirror in sync.
func (s *SQLiteStore) upsertBatch(ctx context.Context, chunks []chunk.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const insert = `
INSERT INTO chunks (chunk_id, collection, content, content_hash, document_id,
                    document_title, document_type, section_title, section_hierarchy,
                    chunk_type, clause_number, normative, page_numbers, refs,
                    token_count, parent_chunk_id, embedding, embedding_model)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chunk_id) DO UPDATE SET
    collection=excluded.collection, content=excluded.content,
    content_hash=excluded.content_hash, document_id=excluded.document_id,
    document_title=excluded.document_title, document_type=excluded.document_type,
    section_title=excluded.section_title, section_hierarchy=excluded.section_hierarchy,
    chunk_type=excluded.chunk_type, clause_number=excluded.clause_number,
    normative=excluded.normative, page_numbers=excluded.page_numbers,
    refs=excluded.refs, token_count=excluded.token_count,
    parent_chunk_id=excluded.parent_chunk_id, embedding=excluded.embedding,
    embedding_model=excluded.embedding_model`

	for _, c := range chunks {
		var normative any
		if c.Normative != nil {
			normative = boolInt(*c.Normative)
		}
		_, err := tx.ExecContext(ctx, insert,
			c.ID, s.collection, c.Content, c.ContentHash, c.DocumentID,
			c.DocumentTitle, c.DocumentType, c.SectionTitle, jsonArray(c.SectionHierarchy),
			string(c.ChunkType), c.ClauseNumber, normative, jsonInts(c.PageNumbers),
			jsonArray(c.References), c.TokenCount, c.ParentChunkID,
			encodeVector(c.Embedding), c.EmbeddingModel,
		)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, c.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)`, c.ID, c.Content); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// sqliteFilterColumns whitelists the payload fields a Filter may reference
// and maps them to their column names.
var sqliteFilterColumns = map[string]string{
	"chunk_id":        "chunk_id",
	"document_id":     "document_id",
	"document_type":   "document_type",
	"section_title":   "section_title",
	"chunk_type":      "chunk_type",
	"clause_number":   "clause_number",
	"normative":       "normative",
	"embedding_model": "embedding_model",
	"parent_chunk_id": "parent_chunk_id",
}

// Search pre-filters candidate rows in SQL, then ranks them by cosine
// similarity against the query embedding.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]Hit, error) {
	const op = "vecstore.SQLiteStore.Search"

	where := []string{"collection = ?"}
	args := []any{s.collection}
	for field, value := range opts.Filter {
		col, ok := sqliteFilterColumns[field]
		if !ok {
			return nil, kberr.New(kberr.KindValidation, op, "unsupported filter field %q", field)
		}
		switch v := value.(type) {
		case string:
			where = append(where, col+" = ?")
			args = append(args, v)
		case bool:
			where = append(where, col+" = ?")
			args = append(args, boolInt(v))
		case int:
			where = append(where, col+" = ?")
			args = append(args, v)
		case []string:
			if len(v) == 0 {
				continue
			}
			placeholders := strings.TrimRight(strings.Repeat("?,", len(v)), ",")
			where = append(where, col+" IN ("+placeholders+")")
			for _, item := range v {
				args = append(args, item)
			}
		default:
			return nil, kberr.New(kberr.KindValidation, op,
				"unsupported filter value type %T for field %q", value, field)
		}
	}

	query := `
SELECT chunk_id, content, content_hash, document_id, document_title, document_type,
       section_title, section_hierarchy, chunk_type, clause_number, normative,
       page_numbers, refs, token_count, parent_chunk_id, embedding, embedding_model
FROM   chunks
WHERE  ` + strings.Join(where, " AND ")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "candidate query failed", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		c, embedding, err := scanChunk(rows)
		if err != nil {
			return nil, kberr.Wrap(kberr.KindConnection, op, "row scan failed", err)
		}
		score := cosineSimilarity(queryEmbedding, embedding)
		// Threshold is inclusive, matching the primary store's native
		// score_threshold: a hit exactly at the cutoff survives.
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "row iteration failed", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// Stats reports the chunk count and a configuration echo. For this backend
// every stored chunk has exactly one vector.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	const op = "vecstore.SQLiteStore.Stats"

	var count uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, s.collection).Scan(&count)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "count failed", err)
	}

	return &Stats{
		CollectionName: s.collection,
		TotalChunks:    count,
		VectorsCount:   count,
		Config: map[string]any{
			"backend":         "sqlite",
			"path":            s.cfg.Path,
			"dimensions":      s.cfg.Dimensions,
			"embedding_model": s.cfg.EmbeddingModel,
		},
	}, nil
}

// HealthCheck pings the database. Side-effect free.
func (s *SQLiteStore) HealthCheck(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanChunk reads one row into a chunk plus its decoded embedding.
func scanChunk(rows *sql.Rows) (chunk.Chunk, []float32, error) {
	var c chunk.Chunk
	var hierarchy, pages, refs string
	var normative sql.NullInt64
	var blob []byte

	err := rows.Scan(&c.ID, &c.Content, &c.ContentHash, &c.DocumentID, &c.DocumentTitle,
		&c.DocumentType, &c.SectionTitle, &hierarchy, (*string)(&c.ChunkType),
		&c.ClauseNumber, &normative, &pages, &refs, &c.TokenCount,
		&c.ParentChunkID, &blob, &c.EmbeddingModel)
	if err != nil {
		return chunk.Chunk{}, nil, err
	}

	if normative.Valid {
		b := normative.Int64 != 0
		c.Normative = &b
	}
	_ = json.Unmarshal([]byte(hierarchy), &c.SectionHierarchy)
	_ = json.Unmarshal([]byte(pages), &c.PageNumbers)
	_ = json.Unmarshal([]byte(refs), &c.References)

	return c, decodeVector(blob), nil
}

// encodeVector serialises a float32 vector as a little-endian blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is degenerate or the lengths differ.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// jsonArray serialises a string slice, mapping nil to "[]".
func jsonArray(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// jsonInts serialises an int slice, mapping nil to "[]".
func jsonInts(items []int) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// boolInt maps a bool to its SQLite integer form.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
