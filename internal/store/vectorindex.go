package store

import (
	"context"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Pharbi/arachnid/internal/vector"
)

// VectorIndex backs Store.NearestByTuning with a per-web chromem-go
// collection of living agents' tuning vectors. The spawn protocol's
// lineage-reuse check and failure-warning inheritance do not query it: they
// walk Ancestors/Descendants and scan web-memory entries instead.
//
// chromem-go collections normally generate embeddings from text via a
// configured embedding function; tuning vectors are already embeddings, so
// each collection here is created with an embedding function that panics if
// ever invoked, and documents are always added with a precomputed
// Embedding and queried through QueryEmbedding, never through the
// text-query path.
type VectorIndex struct {
	mu          sync.Mutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// NewVectorIndex constructs an empty, in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		db:          chromem.NewDB(),
		collections: map[string]*chromem.Collection{},
	}
}

func unusedEmbeddingFunc(context.Context, string) ([]float32, error) {
	panic("vectorindex: text embedding path must never be invoked, tuning vectors are precomputed")
}

func (idx *VectorIndex) collectionFor(webID string) *chromem.Collection {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	c, ok := idx.collections[webID]
	if ok {
		return c
	}
	c, err := idx.db.GetOrCreateCollection(webID, nil, unusedEmbeddingFunc)
	if err != nil {
		// GetOrCreateCollection on a fresh in-memory DB with a valid name
		// cannot fail; a panic here would indicate a chromem-go internal
		// invariant break, not a caller error.
		panic(err)
	}
	idx.collections[webID] = c
	return c
}

func toFloat32(v vector.Vector) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Upsert (re-)indexes agentID's tuning vector within webID's collection.
func (idx *VectorIndex) Upsert(webID, agentID string, tuning vector.Vector) {
	if len(tuning) == 0 {
		return
	}
	c := idx.collectionFor(webID)
	_ = c.AddDocument(context.Background(), chromem.Document{
		ID:        agentID,
		Embedding: toFloat32(tuning),
	})
}

// Remove drops agentID from webID's index, e.g. once it terminates.
func (idx *VectorIndex) Remove(webID, agentID string) {
	idx.mu.Lock()
	c, ok := idx.collections[webID]
	idx.mu.Unlock()
	if !ok {
		return
	}
	_ = c.Delete(context.Background(), nil, nil, agentID)
}

// Query returns up to topK agent ids nearest to v by cosine similarity.
func (idx *VectorIndex) Query(webID string, v vector.Vector, topK int) []string {
	if topK <= 0 || len(v) == 0 {
		return nil
	}
	idx.mu.Lock()
	c, ok := idx.collections[webID]
	idx.mu.Unlock()
	if !ok {
		return nil
	}
	n := topK
	if count := c.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return nil
	}
	results, err := c.QueryEmbedding(context.Background(), toFloat32(v), n, nil, nil)
	if err != nil {
		return nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
