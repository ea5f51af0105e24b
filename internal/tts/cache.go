package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

const defaultCacheBytes = 64 << 20

// CachedProvider memoizes synthesized clips by voice and text. Agent lines
// repeat across calls, so most of them are synthesized once per run.
type CachedProvider struct {
	Provider
	cache *ristretto.Cache
}

// NewCachedProvider wraps p with an in-memory cache holding up to maxBytes
// of audio. maxBytes <= 0 selects 64 MiB.
func NewCachedProvider(p Provider, maxBytes int64) (*CachedProvider, error) {
	if maxBytes <= 0 {
		maxBytes = defaultCacheBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create tts cache: %w", err)
	}
	return &CachedProvider{Provider: p, cache: cache}, nil
}

func (c *CachedProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	key := cacheKey(c.Provider.Name(), voice.ID, text)
	if v, ok := c.cache.Get(key); ok {
		return v.(AudioResult), nil
	}
	res, err := c.Provider.Synthesize(ctx, text, voice)
	if err != nil {
		return AudioResult{}, err
	}
	c.cache.Set(key, res, int64(len(res.Data)))
	return res, nil
}

// Wait blocks until pending cache writes are visible.
func (c *CachedProvider) Wait() { c.cache.Wait() }

func (c *CachedProvider) Close() error {
	c.cache.Close()
	return c.Provider.Close()
}

func cacheKey(provider, voiceID, text string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + voiceID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
