package syncer

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/model"
)

// WrapMetadataCache puts an expiring LRU in front of src's metadata lookups.
// Document bodies are never cached. A non-positive size or ttl returns src.
func WrapMetadataCache(src Remote, size int, ttl time.Duration) Remote {
	if src == nil || size <= 0 || ttl <= 0 {
		return src
	}
	return &cachedRemote{
		next:  src,
		cache: expirable.NewLRU[string, model.Metadata](size, nil, ttl),
	}
}

type cachedRemote struct {
	next  Remote
	cache *expirable.LRU[string, model.Metadata]
}

func (c *cachedRemote) Metadata(ctx context.Context, path string) (*model.Metadata, error) {
	if cached, ok := c.cache.Get(path); ok {
		logutil.GetLogger(ctx).Debug("metadata cache hit", zap.String("path", path))
		meta := cached
		return &meta, nil
	}
	meta, err := c.next.Metadata(ctx, path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, *meta)
	return meta, nil
}

func (c *cachedRemote) FetchDocument(ctx context.Context, path string) (string, error) {
	return c.next.FetchDocument(ctx, path)
}
