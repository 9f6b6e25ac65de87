package router

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/registry"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/routecache"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/scoring"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

var (
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdt = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
)

// fakeAdapter is a scriptable in-memory adapter
type fakeAdapter struct {
	name       string
	metrics    model.RouteMetrics
	supports   bool
	quoteErr   error
	supportErr error
	quoteCalls int64
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) SupportsRoute(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (bool, error) {
	return a.supports, a.supportErr
}

func (a *fakeAdapter) GetRouteMetrics(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID) (*model.RouteMetrics, error) {
	atomic.AddInt64(&a.quoteCalls, 1)
	if a.quoteErr != nil {
		return nil, a.quoteErr
	}
	m := a.metrics
	return &m, nil
}

func (a *fakeAdapter) GetAvailableLiquidity(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (*big.Int, error) {
	return a.metrics.AvailableLiquidity, nil
}

func goodMetrics(costWei int64, minutes int64) model.RouteMetrics {
	return model.RouteMetrics{
		TotalCostWei:         big.NewInt(costWei),
		BridgeFeeWei:         big.NewInt(costWei / 2),
		EstimatedTimeMinutes: minutes,
		SuccessRate:          95,
		AvailableLiquidity:   new(big.Int).Mul(big.NewInt(1e18), big.NewInt(100)),
		CongestionLevel:      10,
	}
}

func newTestCalculator(t *testing.T, adapters ...*fakeAdapter) (*Calculator, *registry.Registry, *routecache.Cache) {
	t.Helper()

	reg := registry.New()
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
	}

	cache := routecache.New()
	scorer := scoring.NewScorer(scoring.NewWeightTable())
	return NewCalculator(reg, scorer, cache), reg, cache
}

func TestFindOptimalRoutePicksBestScore(t *testing.T) {
	cheap := &fakeAdapter{name: "cheap", supports: true, metrics: goodMetrics(1e15, 30)}
	dear := &fakeAdapter{name: "dear", supports: true, metrics: goodMetrics(8e16, 30)}
	calc, _, _ := newTestCalculator(t, cheap, dear)

	prefs := model.RoutePreferences{Mode: model.ModeCheapest}
	route, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, prefs)
	require.NoError(t, err)

	assert.Equal(t, "cheap", route.Bridge)
	assert.Equal(t, types.ChainEthereum, route.SrcChainID)
	assert.Equal(t, types.ChainArbitrum, route.DstChainID)
	assert.True(t, route.AmountOut.Sign() > 0)
	assert.True(t, route.Deadline.After(time.Now()))
}

func TestFindOptimalRouteServedFromCache(t *testing.T) {
	adapter := &fakeAdapter{name: "hop", supports: true, metrics: goodMetrics(1e15, 10)}
	calc, _, _ := newTestCalculator(t, adapter)

	var hits int64
	calc.WithCacheHitHook(func() { atomic.AddInt64(&hits, 1) })

	prefs := model.RoutePreferences{Mode: model.ModeBalanced}
	amount := big.NewInt(1e18)

	_, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, amount,
		types.ChainEthereum, types.ChainArbitrum, prefs)
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt64(&adapter.quoteCalls))

	// Identical request inside the TTL window must not touch the adapter
	_, err = calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, prefs)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&adapter.quoteCalls))
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))

	// A different amount is a different request
	_, err = calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(2e18),
		types.ChainEthereum, types.ChainArbitrum, prefs)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&adapter.quoteCalls))
}

func TestFindOptimalRouteFailureIsolation(t *testing.T) {
	broken := &fakeAdapter{name: "broken", supports: true, quoteErr: errors.New("rpc down"), metrics: goodMetrics(1e15, 10)}
	unsupported := &fakeAdapter{name: "unsupported", supports: false, metrics: goodMetrics(1e15, 10)}
	flaky := &fakeAdapter{name: "flaky", supports: true, supportErr: errors.New("timeout"), metrics: goodMetrics(1e15, 10)}
	working := &fakeAdapter{name: "working", supports: true, metrics: goodMetrics(2e15, 20)}
	calc, _, _ := newTestCalculator(t, broken, unsupported, flaky, working)

	route, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, model.RoutePreferences{Mode: model.ModeBalanced})
	require.NoError(t, err)
	assert.Equal(t, "working", route.Bridge)
}

func TestFindOptimalRouteSkipsUnhealthyAdapters(t *testing.T) {
	adapter := &fakeAdapter{name: "hop", supports: true, metrics: goodMetrics(1e15, 10)}
	calc, reg, _ := newTestCalculator(t, adapter)

	// A single failure out of one transfer drops the adapter below 90%
	require.NoError(t, reg.ReportOutcome("hop", false, time.Minute, nil))

	_, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, model.RoutePreferences{Mode: model.ModeBalanced})
	assert.ErrorIs(t, err, ErrNoValidRoutes)
	assert.EqualValues(t, 0, atomic.LoadInt64(&adapter.quoteCalls))
}

func TestFindOptimalRouteNoAdapters(t *testing.T) {
	calc, _, _ := newTestCalculator(t)

	_, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, model.RoutePreferences{Mode: model.ModeBalanced})
	assert.ErrorIs(t, err, ErrNoValidRoutes)
}

func TestFindOptimalRoutePreferenceFiltering(t *testing.T) {
	slow := &fakeAdapter{name: "slow", supports: true, metrics: goodMetrics(1e15, 50)}
	fast := &fakeAdapter{name: "fast", supports: true, metrics: goodMetrics(5e15, 5)}
	illiquid := &fakeAdapter{name: "illiquid", supports: true, metrics: model.RouteMetrics{
		TotalCostWei:         big.NewInt(1e14),
		BridgeFeeWei:         big.NewInt(5e13),
		EstimatedTimeMinutes: 5,
		SuccessRate:          99,
		AvailableLiquidity:   big.NewInt(1), // cannot cover the amount
		CongestionLevel:      0,
	}}
	calc, _, _ := newTestCalculator(t, slow, fast, illiquid)

	prefs := model.RoutePreferences{Mode: model.ModeCheapest, MaxTimeMinutes: 20}
	route, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, prefs)
	require.NoError(t, err)
	assert.Equal(t, "fast", route.Bridge)

	// With an unreachable fee cap on top, nothing survives
	prefs.MaxFeeWei = big.NewInt(1)
	_, err = calc.FindOptimalRoute(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, prefs)
	assert.ErrorIs(t, err, ErrNoValidRoutes)
}

func TestFindMultipleRoutesOrdering(t *testing.T) {
	a := &fakeAdapter{name: "a", supports: true, metrics: goodMetrics(6e16, 30)}
	b := &fakeAdapter{name: "b", supports: true, metrics: goodMetrics(1e15, 30)}
	c := &fakeAdapter{name: "c", supports: true, metrics: goodMetrics(3e16, 30)}
	calc, _, _ := newTestCalculator(t, a, b, c)

	prefs := model.RoutePreferences{Mode: model.ModeCheapest}
	routes, err := calc.FindMultipleRoutes(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, prefs, 0)
	require.NoError(t, err)
	require.Len(t, routes, 3)

	assert.Equal(t, "b", routes[0].Bridge)
	assert.Equal(t, "c", routes[1].Bridge)
	assert.Equal(t, "a", routes[2].Bridge)

	// Truncation keeps the top of the same ordering
	top, err := calc.FindMultipleRoutes(context.Background(), usdc, usdt, big.NewInt(1e18),
		types.ChainEthereum, types.ChainArbitrum, prefs, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Bridge)
}

func TestFindMultipleRoutesDeterministicTieBreak(t *testing.T) {
	// Identical metrics produce identical scores; enumeration order decides
	first := &fakeAdapter{name: "first", supports: true, metrics: goodMetrics(1e15, 30)}
	second := &fakeAdapter{name: "second", supports: true, metrics: goodMetrics(1e15, 30)}
	calc, _, _ := newTestCalculator(t, first, second)

	prefs := model.RoutePreferences{Mode: model.ModeBalanced}
	for i := 0; i < 5; i++ {
		routes, err := calc.FindMultipleRoutes(context.Background(), usdc, usdt, big.NewInt(1e18),
			types.ChainEthereum, types.ChainArbitrum, prefs, 0)
		require.NoError(t, err)
		require.Len(t, routes, 2)
		assert.Equal(t, "first", routes[0].Bridge)
		assert.Equal(t, "second", routes[1].Bridge)
	}
}

func TestCacheRouteSeedsCache(t *testing.T) {
	adapter := &fakeAdapter{name: "hop", supports: true, metrics: goodMetrics(1e15, 10)}
	calc, _, _ := newTestCalculator(t, adapter)

	prefs := model.RoutePreferences{Mode: model.ModeBalanced}
	amount := big.NewInt(1e18)
	route := model.Route{
		Bridge:     "hop",
		TokenIn:    usdc,
		TokenOut:   usdt,
		AmountIn:   amount,
		AmountOut:  big.NewInt(1e18 - 1e15),
		SrcChainID: types.ChainEthereum,
		DstChainID: types.ChainArbitrum,
		Metrics:    goodMetrics(1e15, 10),
	}
	calc.CacheRoute(route, prefs)

	// The seeded entry is served without ever querying the adapter
	got, err := calc.FindOptimalRoute(context.Background(), usdc, usdt, amount,
		types.ChainEthereum, types.ChainArbitrum, prefs)
	require.NoError(t, err)
	assert.Equal(t, "hop", got.Bridge)
	assert.EqualValues(t, 0, atomic.LoadInt64(&adapter.quoteCalls))
}

func TestExpectedOutput(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		fee      int64
		slippage int64
		expected int64
	}{
		{"no fee no slippage", 10000, 0, 0, 10000},
		{"fee only", 10000, 1000, 0, 9000},
		{"slippage only", 10000, 0, 50, 9950},
		{"fee then slippage", 10000, 1000, 100, 8910},
		{"fee swallows amount", 100, 200, 50, -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expectedOutput(big.NewInt(tt.amount), big.NewInt(tt.fee), tt.slippage)
			assert.EqualValues(t, tt.expected, got.Int64())
		})
	}
}
