package ai

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/minio/highwayhash"
	"github.com/rs/zerolog/log"
)

// Cache stores embeddings by key. A missing key is reported with ok == false.
type Cache interface {
	GetEmbedding(ctx context.Context, key string) (vec []float32, ok bool, err error)
	PutEmbedding(ctx context.Context, key string, vec []float32) error
}

// CacheKey identifies the embedding of text under model.
func CacheKey(model, text string) string {
	sum := highwayhash.Sum128([]byte(model+"\x00"+text), hashKey)
	return hex.EncodeToString(sum[:])
}

// CachedClient serves embeddings from a Cache and only sends misses to the
// wrapped client, still in a single batch. Cache failures count as misses.
type CachedClient struct {
	client Client
	cache  Cache
	model  string
}

// NewCachedClient wraps client. model namespaces the keys so switching models never
// mixes vectors.
func NewCachedClient(client Client, cache Cache, model string) *CachedClient {
	return &CachedClient{client: client, cache: cache, model: model}
}

func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		keys[i] = CacheKey(c.model, t)
		vec, ok, err := c.cache.GetEmbedding(ctx, keys[i])
		if err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("embedding cache lookup failed")
		}
		if ok && len(vec) > 0 {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.client.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		if err := c.cache.PutEmbedding(ctx, keys[i], vectors[j]); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("embedding cache store failed")
		}
	}
	return out, nil
}

func (c *CachedClient) Dim() int {
	return c.client.Dim()
}
