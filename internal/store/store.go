// Package store implements the vector store (§4.3): a durable bbolt-backed
// chunk record store, an in-memory brute-force cosine index rebuilt from it
// at startup, and a bleve-backed keyword index for the retriever's
// keyword-only fallback search.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"go.etcd.io/bbolt"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/embedding"
	"github.com/obernety/mindweave/internal/retriever"
)

var (
	bucketChunks     = []byte("chunks")
	bucketSourceFile = []byte("source_file_index")
	bucketMeta       = []byte("meta")

	keyVectorDim     = []byte("vector_dim")
	keySchemaVersion = []byte("schema_version")

	schemaVersion = "1"
)

// Filter narrows a search or delete to a subset of the corpus.
type Filter struct {
	Modality   chunk.Modality // zero value matches any modality
	SourceFile string         // empty matches any source file
}

func (f Filter) matches(c *chunk.Chunk) bool {
	if f.Modality != "" && c.Modality != f.Modality {
		return false
	}
	if f.SourceFile != "" && c.SourceFile != f.SourceFile {
		return false
	}
	return true
}

// Hit pairs a chunk with its similarity to a search vector.
type Hit struct {
	Chunk      *chunk.Chunk
	Similarity float64
}

// Store is the vector store. It holds a durable bbolt file as the source
// of truth and an in-memory index mirroring it for fast cosine search,
// kept consistent under a single-writer-multi-reader lock.
type Store struct {
	db        *bbolt.DB
	index     bleve.Index
	vectorDim int

	mu     sync.RWMutex
	chunks map[string]*chunk.Chunk
}

// Open opens (creating if necessary) a store backed by boltPath for chunk
// records and keywordIndexDir for the full-text index, enforcing that
// every stored chunk has exactly vectorDim embedding entries.
func Open(boltPath string, keywordIndexDir string, vectorDim int) (*Store, error) {
	db, err := bbolt.Open(boltPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &apperr.StorageError{Kind: apperr.StorageRead, Cause: fmt.Errorf("open bolt file: %w", err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketSourceFile, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchemaVersion) == nil {
			if err := meta.Put(keySchemaVersion, []byte(schemaVersion)); err != nil {
				return err
			}
		}
		if meta.Get(keyVectorDim) == nil {
			if err := meta.Put(keyVectorDim, []byte(fmt.Sprint(vectorDim))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &apperr.StorageError{Kind: apperr.StorageWrite, Cause: fmt.Errorf("initialize buckets: %w", err)}
	}

	index, err := bleve.Open(keywordIndexDir)
	if err != nil {
		mapping := bleve.NewIndexMapping()
		index, err = bleve.New(keywordIndexDir, mapping)
		if err != nil {
			db.Close()
			return nil, &apperr.StorageError{Kind: apperr.StorageWrite, Cause: fmt.Errorf("open keyword index: %w", err)}
		}
	}

	s := &Store{db: db, index: index, vectorDim: vectorDim, chunks: make(map[string]*chunk.Chunk)}
	if err := s.rebuildIndex(); err != nil {
		db.Close()
		index.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying bolt file and keyword index.
func (s *Store) Close() error {
	idxErr := s.index.Close()
	dbErr := s.db.Close()
	if dbErr != nil {
		return dbErr
	}
	return idxErr
}

type persistedChunk struct {
	ID         string
	Modality   chunk.Modality
	Content    string
	SourceFile string
	SourceType chunk.SourceType
	Metadata   map[string]any
	Embedding  []float32
	Confidence float64
	CreatedAt  time.Time
}

func toPersisted(c *chunk.Chunk) persistedChunk {
	return persistedChunk{
		ID: c.ID, Modality: c.Modality, Content: c.Content, SourceFile: c.SourceFile,
		SourceType: c.SourceType, Metadata: c.Metadata, Embedding: c.Embedding,
		Confidence: c.Confidence, CreatedAt: c.CreatedAt,
	}
}

func fromPersisted(p persistedChunk) *chunk.Chunk {
	return &chunk.Chunk{
		ID: p.ID, Modality: p.Modality, Content: p.Content, SourceFile: p.SourceFile,
		SourceType: p.SourceType, Metadata: p.Metadata, Embedding: p.Embedding,
		Confidence: p.Confidence, CreatedAt: p.CreatedAt,
	}
}

func (s *Store) rebuildIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		return b.ForEach(func(k, v []byte) error {
			var p persistedChunk
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode chunk %s: %w", k, err)
			}
			s.chunks[p.ID] = fromPersisted(p)
			return nil
		})
	})
}

// Add atomically inserts chunks. Any chunk lacking an embedding, or
// sharing an id with an existing chunk, is rejected and nothing is
// inserted.
func (s *Store) Add(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if !c.HasEmbedding() {
			return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: fmt.Errorf("chunk %s has no embedding", c.ID)}
		}
		if len(c.Embedding) != s.vectorDim {
			return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: fmt.Errorf("chunk %s embedding dim %d != %d", c.ID, len(c.Embedding), s.vectorDim)}
		}
		if _, exists := s.chunks[c.ID]; exists {
			return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: fmt.Errorf("duplicate chunk id %s", c.ID)}
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		chunksB := tx.Bucket(bucketChunks)
		sourceB := tx.Bucket(bucketSourceFile)
		for _, c := range chunks {
			raw, err := json.Marshal(toPersisted(c))
			if err != nil {
				return err
			}
			if err := chunksB.Put([]byte(c.ID), raw); err != nil {
				return err
			}
			ids, err := readIDSet(sourceB, c.SourceFile)
			if err != nil {
				return err
			}
			ids[c.ID] = true
			if err := writeIDSet(sourceB, c.SourceFile, ids); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: err}
	}

	for _, c := range chunks {
		s.chunks[c.ID] = c
		if err := s.index.Index(c.ID, map[string]any{"content": c.Content}); err != nil {
			return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: fmt.Errorf("keyword-index chunk %s: %w", c.ID, err)}
		}
	}
	return nil
}

func readIDSet(b *bbolt.Bucket, sourceFile string) (map[string]bool, error) {
	raw := b.Get([]byte(sourceFile))
	if raw == nil {
		return make(map[string]bool), nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func writeIDSet(b *bbolt.Bucket, sourceFile string, set map[string]bool) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return b.Put([]byte(sourceFile), raw)
}

// Search performs exact cosine-similarity search over the in-memory index,
// filtered by filter, returning the top k results ordered by descending
// similarity.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Hit
	for _, c := range s.chunks {
		if !filter.matches(c) {
			continue
		}
		sim := embedding.CosineSimilarity(vector, c.Embedding)
		hits = append(hits, Hit{Chunk: c, Similarity: sim})
	}
	sortHitsDesc(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SearchModality implements retriever.Store by wrapping Search with a
// modality-only filter.
func (s *Store) SearchModality(ctx context.Context, vector []float32, modality chunk.Modality, k int) ([]retriever.StoreHit, error) {
	hits, err := s.Search(ctx, vector, k, Filter{Modality: modality})
	if err != nil {
		return nil, err
	}
	out := make([]retriever.StoreHit, len(hits))
	for i, h := range hits {
		out[i] = retriever.StoreHit{Chunk: h.Chunk, CosineSim: h.Similarity}
	}
	return out, nil
}

// KeywordMatchCounts returns, for each id, the number of whole-word
// case-insensitive keyword hits in that chunk's content, counted by a
// direct scan of the stored content (wholeWordCount), not by the bleve
// index.
func (s *Store) KeywordMatchCounts(ctx context.Context, ids []string, keywords []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(keywords) == 0 {
		return counts, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	for id := range idSet {
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		counts[id] = countKeywordHits(c.Content, keywords)
	}
	return counts, nil
}

// SearchKeywordModality implements retriever.Store's empty-pool fallback
// (§4.6's two-pass escalation): a keyword-only bleve query scoped to
// modality, used when a modality's semantic candidate pool comes back
// empty. bleve's score is an unbounded relevance score rather than a
// cosine similarity, so it is squashed into (-1, 1) before being handed to
// the retriever's usual RelevanceFromCosine mapping.
func (s *Store) SearchKeywordModality(ctx context.Context, query string, modality chunk.Modality, k int) ([]retriever.StoreHit, error) {
	hits, err := s.SearchKeyword(ctx, query, Filter{Modality: modality}, k)
	if err != nil {
		return nil, err
	}
	out := make([]retriever.StoreHit, len(hits))
	for i, h := range hits {
		out[i] = retriever.StoreHit{Chunk: h.Chunk, CosineSim: bleveScoreToCosine(h.Similarity)}
	}
	return out, nil
}

func bleveScoreToCosine(score float64) float64 {
	if score < 0 {
		score = 0
	}
	normalized := score / (1 + score)
	return 2*normalized - 1
}

// SearchKeyword queries the bleve index directly, the retriever's
// fallback path when a modality's semantic candidate pool is empty.
func (s *Store) SearchKeyword(ctx context.Context, query string, filter Filter, k int) ([]Hit, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, k*4, 0, false) // over-fetch, then apply filter below.

	res, err := s.index.Search(req)
	if err != nil {
		return nil, &apperr.StorageError{Kind: apperr.StorageRead, Cause: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Hit
	for _, r := range res.Hits {
		c, ok := s.chunks[r.ID]
		if !ok || !filter.matches(c) {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Similarity: r.Score})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// Delete removes every chunk matching filter, cascading the source-file
// index and the keyword index.
func (s *Store) Delete(ctx context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []string
	for id, c := range s.chunks {
		if filter.matches(c) {
			toDelete = append(toDelete, id)
		}
	}
	if len(toDelete) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		chunksB := tx.Bucket(bucketChunks)
		sourceB := tx.Bucket(bucketSourceFile)
		touched := make(map[string]bool)
		for _, id := range toDelete {
			c := s.chunks[id]
			touched[c.SourceFile] = true
			if err := chunksB.Delete([]byte(id)); err != nil {
				return err
			}
		}
		for sourceFile := range touched {
			ids, err := readIDSet(sourceB, sourceFile)
			if err != nil {
				return err
			}
			for _, id := range toDelete {
				delete(ids, id)
			}
			if len(ids) == 0 {
				if err := sourceB.Delete([]byte(sourceFile)); err != nil {
					return err
				}
				continue
			}
			if err := writeIDSet(sourceB, sourceFile, ids); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: err}
	}

	for _, id := range toDelete {
		delete(s.chunks, id)
		_ = s.index.Delete(id)
	}
	return nil
}

// Reset drops the entire corpus, leaving the store immediately usable.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketSourceFile} {
			if err := tx.DeleteBucket(b); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &apperr.StorageError{Kind: apperr.StorageWrite, Cause: err}
	}

	for id := range s.chunks {
		_ = s.index.Delete(id)
	}
	s.chunks = make(map[string]*chunk.Chunk)
	return nil
}

// Count returns the number of chunks currently stored.
func (s *Store) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// CountByModality returns per-modality chunk counts, for stats().
func (s *Store) CountByModality(ctx context.Context) map[chunk.Modality]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[chunk.Modality]int)
	for _, c := range s.chunks {
		out[c.Modality]++
	}
	return out
}

func sortHitsDesc(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
}

func countKeywordHits(content string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += wholeWordCount(content, kw)
	}
	return total
}
