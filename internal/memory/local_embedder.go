package memory

import (
	"context"
	"hash/fnv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const hashedEmbeddingDims = 256

// HashedEmbedder is the default Embedder: a feature-hashing bag-of-words
// vectorizer (no external embedding-model call, no API key). It is a
// local implementation (hash/fnv plus gonum's floats for normalization)
// because wiring a real embedding model here
// would mean adding a second LLM provider SDK (the pack's only embedding
// example, nevindra-oasis's provider/gemini, is Gemini-specific) purely
// to vectorize text for similarity search, when spec §1 already scopes
// the LLM surface to Anthropic. It is adequate for the same single-
// instance, approximate-recall use case SQLiteVectorStore itself targets
// (see its doc comment); a deployment wanting real semantic embeddings
// swaps in a different Embedder without internal/memory noticing.
type HashedEmbedder struct{}

func NewHashedEmbedder() HashedEmbedder { return HashedEmbedder{} }

func (HashedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, hashedEmbeddingDims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%hashedEmbeddingDims]++
	}

	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}

	out := make([]float32, hashedEmbeddingDims)
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}
