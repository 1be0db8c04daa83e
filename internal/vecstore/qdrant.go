package vecstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
)

// QdrantConfig holds connection parameters for the primary Qdrant store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string
	// Port is the Qdrant gRPC port (default: 6334).
	Port int
	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
	// CollectionBase is the unqualified collection name (default: sekb_knowledge).
	CollectionBase string
	// EmbeddingModel qualifies the collection name so vectors from
	// different models never mix.
	EmbeddingModel string
	// Dimensions is the vector length stored in the collection.
	Dimensions int
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
	// collection is the resolved version-qualified collection name.
	collection string
	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// chunkIDNamespace is the project-scoped UUIDv5 namespace under which chunk
// IDs are mapped to Qdrant point IDs. Deterministic, so re-ingesting a chunk
// overwrites its previous point instead of duplicating it.
var chunkIDNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("sekb.vecstore.chunks"))

// NewQdrantStore creates a QdrantStore and bootstraps its collection.
// Construction failures are classified so the Store Selector can decide
// between fallback (transient) and hard failure (configuration).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	const op = "vecstore.NewQdrantStore"

	if cfg == nil || cfg.Host == "" {
		return nil, kberr.New(kberr.KindValidation, op, "qdrant host is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, kberr.New(kberr.KindValidation, op, "dimensions must be positive")
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CollectionBase == "" {
		cfg.CollectionBase = "sekb_knowledge"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "failed to create qdrant client", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: CollectionName(cfg.CollectionBase, cfg.EmbeddingModel),
		cfg:        cfg,
	}
	if err := s.EnsureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Name returns the backend label.
func (s *QdrantStore) Name() string { return "qdrant" }

// filterableKeywordFields are the payload fields that get a keyword index
// at collection bootstrap so exact-match and any-of filters stay fast.
var filterableKeywordFields = []string{
	"document_id",
	"document_type",
	"section_title",
	"chunk_type",
	"clause_number",
	"embedding_model",
	"parent_chunk_id",
}

// EnsureCollection creates the collection if it does not already exist,
// then creates the payload indexes: keyword indexes on the filterable
// fields, a bool index on normative, and a full-text index on content.
// All index creation is idempotent on the Qdrant side.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	const op = "vecstore.QdrantStore.EnsureCollection"

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return kberr.Wrap(kberr.KindConnection, op, "failed to check collection existence", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.cfg.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return kberr.Wrap(kberr.KindConnection, op,
				fmt.Sprintf("failed to create collection %q", s.collection), err)
		}
	}

	for _, field := range filterableKeywordFields {
		if err := s.createFieldIndex(ctx, field, qdrant.FieldType_FieldTypeKeyword, nil); err != nil {
			return err
		}
	}
	if err := s.createFieldIndex(ctx, "normative", qdrant.FieldType_FieldTypeBool, nil); err != nil {
		return err
	}

	// Full-text index on content for keyword-assisted filtering.
	textParams := &qdrant.PayloadIndexParams{
		IndexParams: &qdrant.PayloadIndexParams_TextIndexParams{
			TextIndexParams: &qdrant.TextIndexParams{
				Tokenizer: qdrant.TokenizerType_Word,
				Lowercase: qdrant.PtrOf(true),
			},
		},
	}
	return s.createFieldIndex(ctx, "content", qdrant.FieldType_FieldTypeText, textParams)
}

// createFieldIndex creates one payload index, classifying failures.
func (s *QdrantStore) createFieldIndex(ctx context.Context, field string, ft qdrant.FieldType, params *qdrant.PayloadIndexParams) error {
	const op = "vecstore.QdrantStore.EnsureCollection"

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName:   s.collection,
		FieldName:        field,
		FieldType:        &ft,
		FieldIndexParams: params,
	})
	if err != nil {
		return kberr.Wrap(kberr.KindConnection, op,
			fmt.Sprintf("failed to create payload index on %q", field), err)
	}
	return nil
}

// AddChunks validates and upserts chunks in batches of 100, returning the
// number written. The first invalid chunk aborts the whole call before any
// network write.
func (s *QdrantStore) AddChunks(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	const op = "vecstore.QdrantStore.AddChunks"

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

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(c.ID)),
				Vectors: qdrant.NewVectors(c.Embedding...),
				Payload: qdrant.NewValueMap(chunkPayload(c)),
			})
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return written, kberr.Wrap(kberr.KindConnection, op, "upsert failed", err)
		}
		written += len(points)
	}

	return written, nil
}

// Search performs a filtered cosine similarity search.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]Hit, error) {
	const op = "vecstore.QdrantStore.Search"

	limit := uint64(opts.Limit)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.ScoreThreshold > 0 {
		req.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}
	if len(opts.Filter) > 0 {
		filter, err := qdrantFilter(opts.Filter)
		if err != nil {
			return nil, err
		}
		req.Filter = filter
	}

	results, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "search failed", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Chunk: chunkFromPayload(r.Payload),
			Score: r.Score,
		})
	}
	return hits, nil
}

// Stats reports point/vector counts and a sanitised configuration echo.
func (s *QdrantStore) Stats(ctx context.Context) (*Stats, error) {
	const op = "vecstore.QdrantStore.Stats"

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "failed to read collection info", err)
	}

	stats := &Stats{
		CollectionName: s.collection,
		Config: map[string]any{
			"backend":         "qdrant",
			"host":            s.cfg.Host,
			"port":            s.cfg.Port,
			"dimensions":      s.cfg.Dimensions,
			"embedding_model": s.cfg.EmbeddingModel,
		},
	}
	if info.PointsCount != nil {
		stats.TotalChunks = *info.PointsCount
	}
	if info.IndexedVectorsCount != nil {
		stats.VectorsCount = *info.IndexedVectorsCount
	}
	return stats, nil
}

// HealthCheck calls the Qdrant HealthCheck RPC. Side-effect free.
func (s *QdrantStore) HealthCheck(ctx context.Context) bool {
	_, err := s.client.HealthCheck(ctx)
	return err == nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID maps an arbitrary chunk ID to a deterministic UUIDv5 point ID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(chunkID)).String()
}

// chunkPayload flattens a chunk into the Qdrant payload map. The original
// chunk ID rides in the payload because point IDs are UUID-mapped.
func chunkPayload(c chunk.Chunk) map[string]any {
	payload := map[string]any{
		"chunk_id":        c.ID,
		"content":         c.Content,
		"content_hash":    c.ContentHash,
		"document_id":     c.DocumentID,
		"document_title":  c.DocumentTitle,
		"document_type":   c.DocumentType,
		"section_title":   c.SectionTitle,
		"chunk_type":      string(c.ChunkType),
		"clause_number":   c.ClauseNumber,
		"token_count":     int64(c.TokenCount),
		"parent_chunk_id": c.ParentChunkID,
		"embedding_model": c.EmbeddingModel,
	}
	if c.Normative != nil {
		payload["normative"] = *c.Normative
	}
	if len(c.SectionHierarchy) > 0 {
		payload["section_hierarchy"] = toAnySlice(c.SectionHierarchy)
	}
	if len(c.References) > 0 {
		payload["references"] = toAnySlice(c.References)
	}
	if len(c.PageNumbers) > 0 {
		pages := make([]any, len(c.PageNumbers))
		for i, p := range c.PageNumbers {
			pages[i] = int64(p)
		}
		payload["page_numbers"] = pages
	}
	return payload
}

// chunkFromPayload rebuilds the stored chunk metadata from a point payload.
// The embedding is never read back.
func chunkFromPayload(payload map[string]*qdrant.Value) chunk.Chunk {
	c := chunk.Chunk{}
	if payload == nil {
		return c
	}

	getString := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}

	c.ID = getString("chunk_id")
	c.Content = getString("content")
	c.ContentHash = getString("content_hash")
	c.DocumentID = getString("document_id")
	c.DocumentTitle = getString("document_title")
	c.DocumentType = getString("document_type")
	c.SectionTitle = getString("section_title")
	c.ChunkType = chunk.Type(getString("chunk_type"))
	c.ClauseNumber = getString("clause_number")
	c.ParentChunkID = getString("parent_chunk_id")
	c.EmbeddingModel = getString("embedding_model")

	if v, ok := payload["token_count"]; ok {
		c.TokenCount = int(v.GetIntegerValue())
	}
	if v, ok := payload["normative"]; ok {
		b := v.GetBoolValue()
		c.Normative = &b
	}
	if v, ok := payload["section_hierarchy"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			c.SectionHierarchy = append(c.SectionHierarchy, item.GetStringValue())
		}
	}
	if v, ok := payload["references"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			c.References = append(c.References, item.GetStringValue())
		}
	}
	if v, ok := payload["page_numbers"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			c.PageNumbers = append(c.PageNumbers, int(item.GetIntegerValue()))
		}
	}
	return c
}

// qdrantFilter converts a Filter into Qdrant match conditions. Scalars
// become exact matches; []string becomes an any-of keyword match.
func qdrantFilter(f Filter) (*qdrant.Filter, error) {
	const op = "vecstore.QdrantStore.Search"

	must := make([]*qdrant.Condition, 0, len(f))
	for field, value := range f {
		switch v := value.(type) {
		case string:
			must = append(must, qdrant.NewMatch(field, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(field, v))
		case int:
			must = append(must, qdrant.NewMatchInt(field, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(field, v))
		case []string:
			must = append(must, qdrant.NewMatchKeywords(field, v...))
		default:
			return nil, kberr.New(kberr.KindValidation, op,
				"unsupported filter value type %T for field %q", value, field)
		}
	}
	return &qdrant.Filter{Must: must}, nil
}

// toAnySlice widens a string slice for qdrant.NewValueMap.
func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
