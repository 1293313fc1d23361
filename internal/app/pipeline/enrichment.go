package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

type EnrichmentConfig struct {
	ToleranceDeg float64
	Timeout      time.Duration
	// MinInterval spaces lookups apart; zero leaves only the coordinate policy.
	MinInterval time.Duration
}

// EnrichmentCache holds the last weather lookup and decides when a new
// sample warrants another one. At most one lookup is in flight.
type EnrichmentCache struct {
	provider ports.WeatherProvider
	cfg      EnrichmentConfig
	limiter  *rate.Limiter
	obs      ports.Observability
	onUpdate func(*domain.Enrichment)
	now      func() time.Time

	mu       sync.Mutex
	current  *domain.Enrichment
	inFlight bool
	wg       sync.WaitGroup
}

// NewEnrichmentCache builds an empty cache. onUpdate runs under the cache lock
// after each successful lookup.
func NewEnrichmentCache(p ports.WeatherProvider, cfg EnrichmentConfig, obs ports.Observability, onUpdate func(*domain.Enrichment)) *EnrichmentCache {
	if cfg.ToleranceDeg <= 0 {
		cfg.ToleranceDeg = 0.01
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := &EnrichmentCache{
		provider: p,
		cfg:      cfg,
		obs:      obs,
		onUpdate: onUpdate,
		now:      time.Now,
	}
	if cfg.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return c
}

// Offer considers a sample for enrichment and reports whether a lookup was
// started. The lookup runs asynchronously under its own timeout.
func (c *EnrichmentCache) Offer(ctx context.Context, s *domain.Sample) bool {
	pos, ok := s.Position()
	if !ok {
		return false
	}

	c.mu.Lock()
	if c.current != nil && c.current.Source.Near(pos, c.cfg.ToleranceDeg) {
		c.mu.Unlock()
		c.obs.IncCounter(ports.MetricWeatherCacheHits, 1)
		return false
	}
	if c.inFlight {
		c.mu.Unlock()
		return false
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.lookup(ctx, pos)
	return true
}

func (c *EnrichmentCache) lookup(ctx context.Context, pos domain.Coordinates) {
	defer c.wg.Done()

	lctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.obs.IncCounter(ports.MetricWeatherLookups, 1)
	start := time.Now()
	cond, err := c.provider.Lookup(lctx, pos)
	c.obs.ObserveLatency(ports.LatencyWeatherLookup, time.Since(start).Seconds())

	if err != nil {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
		c.obs.IncCounter(ports.MetricWeatherFailures, 1)
		c.obs.LogWarn("weather_lookup_failed", err,
			ports.Field{Key: "provider", Value: c.provider.Name()},
			ports.Field{Key: "lat", Value: pos.Lat},
			ports.Field{Key: "lng", Value: pos.Lng})
		return
	}

	rec := &domain.Enrichment{
		Source:     pos,
		Provider:   c.provider.Name(),
		FetchedAt:  c.now(),
		Conditions: cond,
	}
	c.mu.Lock()
	c.current = rec
	if c.onUpdate != nil {
		c.onUpdate(rec)
	}
	c.inFlight = false
	c.mu.Unlock()
	c.obs.LogInfo("weather_updated",
		ports.Field{Key: "provider", Value: rec.Provider},
		ports.Field{Key: "temp_c", Value: cond.AmbientTempC},
		ports.Field{Key: "condition", Value: cond.Condition})
}

// Current returns a copy of the cached record, or nil before the first success.
func (c *EnrichmentCache) Current() *domain.Enrichment {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// Wait blocks until any in-flight lookup has finished.
func (c *EnrichmentCache) Wait() {
	c.wg.Wait()
}
