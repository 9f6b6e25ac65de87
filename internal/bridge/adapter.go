// Package bridge defines the capability interface consumed from bridge
// integrations and provides an HTTP-backed client implementation.
package bridge

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// Adapter is the fixed method set every bridge integration exposes.
// Any call may fail or time out; the routing core treats that as "adapter
// unavailable for this request", never as a fatal error.
type Adapter interface {
	// Name returns the unique display name of the bridge
	Name() string

	// SupportsRoute reports whether the bridge can serve this token and chain pair
	SupportsRoute(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (bool, error)

	// GetRouteMetrics quotes cost, time, reliability and liquidity for a transfer
	GetRouteMetrics(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID) (*model.RouteMetrics, error)

	// GetAvailableLiquidity returns the liquidity currently serveable on the pair
	GetAvailableLiquidity(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (*big.Int, error)
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}
