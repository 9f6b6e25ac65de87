package routecache

import (
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

var (
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdt = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
)

func testCachedRoute(amount *big.Int) model.Route {
	return model.Route{
		Bridge:     "hop",
		TokenIn:    usdc,
		TokenOut:   usdt,
		AmountIn:   amount,
		AmountOut:  new(big.Int).Set(amount),
		SrcChainID: types.ChainEthereum,
		DstChainID: types.ChainArbitrum,
	}
}

func TestKeyDeterminism(t *testing.T) {
	amount := big.NewInt(1e18)
	prefs := model.RoutePreferences{Mode: model.ModeBalanced, MaxSlippageBps: 50}

	a := Key(usdc, usdt, amount, types.ChainEthereum, types.ChainArbitrum, prefs)
	b := Key(usdc, usdt, big.NewInt(1e18), types.ChainEthereum, types.ChainArbitrum, prefs)
	if a != b {
		t.Error("identical requests must produce identical keys")
	}

	tests := []struct {
		name string
		key  common.Hash
	}{
		{"different amount", Key(usdc, usdt, big.NewInt(2e18), types.ChainEthereum, types.ChainArbitrum, prefs)},
		{"different token", Key(usdt, usdc, amount, types.ChainEthereum, types.ChainArbitrum, prefs)},
		{"different chain", Key(usdc, usdt, amount, types.ChainEthereum, types.ChainOptimism, prefs)},
		{"different mode", Key(usdc, usdt, amount, types.ChainEthereum, types.ChainArbitrum,
			model.RoutePreferences{Mode: model.ModeFastest, MaxSlippageBps: 50})},
		{"different slippage", Key(usdc, usdt, amount, types.ChainEthereum, types.ChainArbitrum,
			model.RoutePreferences{Mode: model.ModeBalanced, MaxSlippageBps: 100})},
		{"added fee cap", Key(usdc, usdt, amount, types.ChainEthereum, types.ChainArbitrum,
			model.RoutePreferences{Mode: model.ModeBalanced, MaxSlippageBps: 50, MaxFeeWei: big.NewInt(1)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key == a {
				t.Error("changed request must produce a different key")
			}
		})
	}
}

func TestGetWithinTTL(t *testing.T) {
	mock := clock.NewMock()
	c := New().WithClock(mock)

	prefs := model.RoutePreferences{Mode: model.ModeBalanced}
	route := testCachedRoute(big.NewInt(1e18))
	key := c.Put(route, prefs, 87)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a cache hit immediately after Put")
	}
	if got.Route.Bridge != "hop" || got.Score != 87 {
		t.Errorf("cached entry = %s/%d, want hop/87", got.Route.Bridge, got.Score)
	}

	mock.Add(59 * time.Second)
	if _, ok := c.Get(key); !ok {
		t.Error("entry inside the TTL window must still be served")
	}

	mock.Add(2 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Error("entry past the TTL window must not be served")
	}
}

func TestSetTTLAppliesToExistingEntries(t *testing.T) {
	mock := clock.NewMock()
	c := New().WithClock(mock)

	key := c.Put(testCachedRoute(big.NewInt(1e18)), model.RoutePreferences{Mode: model.ModeBalanced}, 50)

	// Entry is 90s old: expired under the default 60s window
	mock.Add(90 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Fatal("entry should be expired under the default TTL")
	}

	// Widening the TTL revives it; validity is judged at read time
	c.SetTTL(5 * time.Minute)
	if _, ok := c.Get(key); !ok {
		t.Error("entry should be valid again under the widened TTL")
	}

	// Narrowing expires it once more
	c.SetTTL(10 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Error("entry should be expired under the narrowed TTL")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()

	key := c.Put(testCachedRoute(big.NewInt(1e18)), model.RoutePreferences{Mode: model.ModeBalanced}, 50)
	if _, ok := c.Get(key); !ok {
		t.Fatal("expected a cache hit before invalidation")
	}

	c.Invalidate(key)
	if _, ok := c.Get(key); ok {
		t.Error("invalidated entry must not be served")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after invalidation, want 0", c.Len())
	}
}

func TestPutOverwrites(t *testing.T) {
	c := New()
	prefs := model.RoutePreferences{Mode: model.ModeBalanced}
	route := testCachedRoute(big.NewInt(1e18))

	c.Put(route, prefs, 50)
	better := route
	better.Bridge = "across"
	key := c.Put(better, prefs, 90)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.Route.Bridge != "across" || got.Score != 90 {
		t.Errorf("entry = %s/%d, want across/90", got.Route.Bridge, got.Score)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
