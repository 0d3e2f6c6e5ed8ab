package providers

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/dshills/codescan/internal/cache"
)

// Cached serves repeated requests from the response cache. Only successful
// completions are stored.
type Cached struct {
	next  Completer
	model string
	cache *cache.Cache
	hits  func()
	log   *zap.Logger
}

// NewCached wraps next with c. A nil or disabled cache returns next unchanged.
func NewCached(next Completer, model string, c *cache.Cache) Completer {
	if c == nil || !c.Enabled() {
		return next
	}
	return &Cached{next: next, model: model, cache: c, log: zap.NewNop()}
}

// SetLogger sets the logger used to report cache write failures.
func (c *Cached) SetLogger(l *zap.Logger) {
	if l != nil {
		c.log = l
	}
}

// OnHit registers a callback invoked on every cache hit.
func (c *Cached) OnHit(fn func()) { c.hits = fn }

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Complete(ctx context.Context, req Request) (string, error) {
	key := cache.BuildCacheKey(c.next.Name(), c.model, req.System, req.Prompt,
		strconv.Itoa(maxTokens(req)),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.FormatFloat(req.TopP, 'f', -1, 64))
	if text, ok := c.cache.Get(key); ok {
		if c.hits != nil {
			c.hits()
		}
		return text, nil
	}
	text, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.cache.Put(key, text); err != nil {
		c.log.Debug("cache write failed", zap.Error(err))
	}
	return text, nil
}
