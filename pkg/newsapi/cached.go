package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feed-ai-go/pkg/cache"
	"feed-ai-go/pkg/log"
)

type cachedClient struct {
	next  Client
	store cache.Store
	ttl   time.Duration
}

// NewCachedClient reuses search results for identical queries within ttl.
// Cache failures are logged and fall through to the wrapped client.
func NewCachedClient(next Client, store cache.Store, ttl time.Duration) Client {
	if store == nil || ttl <= 0 {
		return next
	}
	return &cachedClient{next: next, store: store, ttl: ttl}
}

func cacheKey(q Query) string {
	return fmt.Sprintf("news:%s:%s:%s:%d", strings.ToLower(q.Keyword), q.Language, q.SortBy, q.PageSize)
}

func (c *cachedClient) Search(ctx context.Context, q Query) ([]Article, error) {
	key := cacheKey(q)
	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		log.Warnf("[NewsAPI] cache get failed, key=%s, error: %v", key, err)
	} else if ok {
		var articles []Article
		if err := json.Unmarshal(raw, &articles); err == nil {
			return articles, nil
		}
	}

	articles, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(articles); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			log.Warnf("[NewsAPI] cache set failed, key=%s, error: %v", key, err)
		}
	}
	return articles, nil
}
