// Package router orchestrates the adapter registry, scoring, and the route
// cache to answer best-route and top-N route requests.
package router

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/bridge"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/otel"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/registry"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/routecache"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/scoring"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// ErrNoValidRoutes is returned when no candidate survives health checks and
// preference filtering. This is an expected outcome under tight constraints,
// not a bug; callers should relax preferences or retry later.
var ErrNoValidRoutes = errors.New("no valid routes available")

// defaultAdapterTimeout bounds a single adapter's metrics query so one slow
// bridge cannot stall the whole request
const defaultAdapterTimeout = 5 * time.Second

// deadlineSafetyBuffer is added on top of the estimated completion time when
// computing a route's execution deadline
const deadlineSafetyBuffer = 10 * time.Minute

// Calculator answers routing requests against the live adapter set
type Calculator struct {
	registry       *registry.Registry
	scorer         *scoring.Scorer
	cache          *routecache.Cache
	adapterTimeout time.Duration
	clock          clock.Clock
	onCacheHit     func()
}

// NewCalculator wires a calculator over the given registry, scorer and cache
func NewCalculator(reg *registry.Registry, scorer *scoring.Scorer, cache *routecache.Cache) *Calculator {
	return &Calculator{
		registry:       reg,
		scorer:         scorer,
		cache:          cache,
		adapterTimeout: defaultAdapterTimeout,
		clock:          clock.New(),
	}
}

// WithAdapterTimeout overrides the per-adapter query timeout
func (c *Calculator) WithAdapterTimeout(timeout time.Duration) *Calculator {
	if timeout > 0 {
		c.adapterTimeout = timeout
	}
	return c
}

// WithClock injects a clock, used by tests to control deadlines
func (c *Calculator) WithClock(cl clock.Clock) *Calculator {
	c.clock = cl
	return c
}

// WithCacheHitHook installs a callback invoked whenever a request is served
// from the route cache, used for metrics.
func (c *Calculator) WithCacheHitHook(hook func()) *Calculator {
	c.onCacheHit = hook
	return c
}

// scoredRoute pairs a candidate with its score and enumeration position
type scoredRoute struct {
	route model.Route
	score int64
	order int
}

// FindOptimalRoute returns the single highest-scoring route for the request,
// serving from the cache when a fresh entry exists.
func (c *Calculator) FindOptimalRoute(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID, prefs model.RoutePreferences) (*model.Route, error) {
	ctx, span := otel.Tracer().Start(ctx, "router.FindOptimalRoute")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("src_chain", int64(srcChain)),
		attribute.Int64("dst_chain", int64(dstChain)),
		attribute.String("mode", string(prefs.Mode)),
	)

	key := routecache.Key(tokenIn, tokenOut, amount, srcChain, dstChain, prefs)
	if cached, ok := c.cache.Get(key); ok {
		if c.onCacheHit != nil {
			c.onCacheHit()
		}
		logrus.WithFields(logrus.Fields{
			"bridge": cached.Route.Bridge,
			"score":  cached.Score,
		}).Debug("Route served from cache")
		route := cached.Route
		return &route, nil
	}

	candidates, err := c.rankCandidates(ctx, tokenIn, tokenOut, amount, srcChain, dstChain, prefs)
	if err != nil {
		return nil, err
	}

	best := candidates[0]
	c.cache.Put(best.route, prefs, best.score)

	logrus.WithFields(logrus.Fields{
		"bridge":     best.route.Bridge,
		"score":      best.score,
		"candidates": len(candidates),
	}).Info("Optimal route selected")
	route := best.route
	return &route, nil
}

// FindMultipleRoutes returns up to maxRoutes candidates ordered by descending
// score. Ties keep the original adapter enumeration order, so identical
// inputs always produce the same ordering.
func (c *Calculator) FindMultipleRoutes(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID, prefs model.RoutePreferences, maxRoutes int) ([]model.Route, error) {
	ctx, span := otel.Tracer().Start(ctx, "router.FindMultipleRoutes")
	defer span.End()

	candidates, err := c.rankCandidates(ctx, tokenIn, tokenOut, amount, srcChain, dstChain, prefs)
	if err != nil {
		return nil, err
	}

	if maxRoutes > 0 && len(candidates) > maxRoutes {
		candidates = candidates[:maxRoutes]
	}

	routes := make([]model.Route, len(candidates))
	for i, sc := range candidates {
		routes[i] = sc.route
	}
	return routes, nil
}

// CacheRoute lets a caller seed the cache with an externally validated route,
// e.g. right after execution, so an identical request inside the TTL window
// skips rediscovery.
func (c *Calculator) CacheRoute(route model.Route, prefs model.RoutePreferences) {
	score := c.scorer.Score(&route, prefs.Mode)
	c.cache.Put(route, prefs, score)
}

// rankCandidates queries, filters and scores the adapter set, returning the
// survivors sorted by descending score.
func (c *Calculator) rankCandidates(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID, prefs model.RoutePreferences) ([]scoredRoute, error) {
	quotes := c.collectQuotes(ctx, tokenIn, tokenOut, amount, srcChain, dstChain)
	if err := ctx.Err(); err != nil {
		// Cancellation discards partial results; nothing was written to
		// the cache or the registry.
		return nil, err
	}

	var candidates []scoredRoute
	now := c.clock.Now()
	for _, q := range quotes {
		if !passesPreferences(q.metrics, amount, prefs) {
			continue
		}

		amountOut := expectedOutput(amount, q.metrics.BridgeFeeWei, prefs.EffectiveSlippageBps())
		if amountOut.Sign() <= 0 {
			continue
		}

		route := model.Route{
			Bridge:     q.adapter.Name(),
			TokenIn:    tokenIn,
			TokenOut:   tokenOut,
			AmountIn:   new(big.Int).Set(amount),
			AmountOut:  amountOut,
			SrcChainID: srcChain,
			DstChainID: dstChain,
			Metrics:    *q.metrics,
			Deadline:   now.Add(time.Duration(q.metrics.EstimatedTimeMinutes)*time.Minute + deadlineSafetyBuffer),
		}
		candidates = append(candidates, scoredRoute{
			route: route,
			score: c.scorer.Score(&route, prefs.Mode),
			order: q.order,
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoValidRoutes
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})
	return candidates, nil
}

// adapterQuote is one adapter's answer for the request
type adapterQuote struct {
	adapter bridge.Adapter
	metrics *model.RouteMetrics
	order   int
}

// collectQuotes fans out to every healthy adapter in parallel with a bounded
// per-adapter timeout. A failing or unsupported adapter contributes nothing;
// it never aborts the search.
func (c *Calculator) collectQuotes(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID) []adapterQuote {
	adapters := c.registry.List()

	results := make([]*adapterQuote, len(adapters))
	var wg sync.WaitGroup

	for i, adapter := range adapters {
		if !c.registry.IsHealthy(adapter.Name()) {
			logrus.WithField("bridge", adapter.Name()).Debug("Skipping unhealthy adapter")
			continue
		}

		wg.Add(1)
		go func(order int, a bridge.Adapter) {
			defer wg.Done()

			qctx, cancel := context.WithTimeout(ctx, c.adapterTimeout)
			defer cancel()

			supported, err := a.SupportsRoute(qctx, tokenIn, tokenOut, srcChain, dstChain)
			if err != nil {
				logrus.WithField("bridge", a.Name()).WithError(err).Warn("Adapter support check failed")
				return
			}
			if !supported {
				return
			}

			metrics, err := a.GetRouteMetrics(qctx, tokenIn, tokenOut, amount, srcChain, dstChain)
			if err != nil {
				logrus.WithField("bridge", a.Name()).WithError(err).Warn("Adapter metrics query failed")
				return
			}

			results[order] = &adapterQuote{adapter: a, metrics: metrics, order: order}
		}(i, adapter)
	}
	wg.Wait()

	// Compact in enumeration order; the slot index keeps ranking
	// deterministic for identical inputs.
	quotes := make([]adapterQuote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

// expectedOutput estimates the delivered amount after the bridge fee and
// slippage: (amount - fee) * (10000 - slippageBps) / 10000.
func expectedOutput(amount, bridgeFee *big.Int, slippageBps int64) *big.Int {
	out := new(big.Int).Set(amount)
	if bridgeFee != nil {
		out.Sub(out, bridgeFee)
	}
	if out.Sign() <= 0 {
		return out
	}
	out.Mul(out, big.NewInt(model.BpsDenominator-slippageBps))
	out.Div(out, big.NewInt(model.BpsDenominator))
	return out
}
