// Package embcache decorates an embedder with a two-tier cache: an
// in-process LRU for hot queries and a Redis tier shared across instances.
// Bank-branch queries repeat heavily, so most retrievals never reach the
// embedding provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
	"github.com/tonnylei0321/bankfind/internal/metrics"
)

// CachedEmbedder caches embeddings in front of the real provider.
type CachedEmbedder struct {
	inner  domain.Embedder
	client rueidis.Client
	hot    *lru.Cache[string, []float32]
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates the caching decorator. hotSize is the in-process LRU capacity;
// ttl bounds the Redis tier.
func New(
	inner domain.Embedder, client rueidis.Client, keyPrefix string,
	hotSize int, ttl time.Duration, logger *zap.Logger,
) (*CachedEmbedder, error) {
	hot, err := lru.New[string, []float32](hotSize)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		hot:    hot,
		prefix: keyPrefix + "emb_cache:",
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Embed returns a cached embedding or calls the inner embedder. Cache hits
// report zero token usage.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.hot.Get(key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hot", "hit").Inc()
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hot", "miss").Inc()

	if vec, ok := c.getRedis(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("redis", "hit").Inc()
		c.hot.Add(key, vec)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("redis", "miss").Inc()

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.hot.Add(key, result.Embedding)
	c.putRedis(ctx, key, result.Embedding)
	return result, nil
}

// BatchEmbed serves what it can from cache and forwards only the misses.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.hot.Get(key); ok {
			out.Embeddings[i] = vec
			continue
		}
		if vec, ok := c.getRedis(ctx, key); ok {
			c.hot.Add(key, vec)
			out.Embeddings[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"batch embed: got %d vectors for %d texts", len(res.Embeddings), len(missTexts))
	}

	for j, i := range missIdx {
		key := c.cacheKey(missTexts[j])
		c.hot.Add(key, res.Embeddings[j])
		c.putRedis(ctx, key, res.Embeddings[j])
		out.Embeddings[i] = res.Embeddings[j]
	}
	out.PromptTokens = res.PromptTokens
	out.TotalTokens = res.TotalTokens
	return out, nil
}

// HealthCheck delegates to the inner embedder when it supports checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getRedis(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.logger.Warn("failed to read cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putRedis(ctx context.Context, key string, vec []float32) {
	cmd := c.client.B().Set().Key(key).Value(vectorToCacheValue(vec)).
		Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Warn("failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheValue(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("malformed vector payload of %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
