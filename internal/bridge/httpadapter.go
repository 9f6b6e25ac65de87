package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// HTTPAdapter talks to a remote bridge integration over a small JSON quote
// protocol. Calls go through a circuit breaker so a flapping bridge stops
// being queried instead of slowing every routing request down.
type HTTPAdapter struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPAdapter creates a client for a remote bridge endpoint
func NewHTTPAdapter(name, baseURL, apiKey string) *HTTPAdapter {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"bridge": name,
				"from":   from.String(),
				"to":     to.String(),
			}).Warn("Bridge adapter breaker state changed")
		},
	}

	return &HTTPAdapter{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: StandardClient(newRetryClient()),
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Name returns the bridge display name
func (a *HTTPAdapter) Name() string {
	return a.name
}

// quoteRequest is the wire format sent to the remote bridge
type quoteRequest struct {
	TokenIn    common.Address `json:"token_in"`
	TokenOut   common.Address `json:"token_out"`
	Amount     string         `json:"amount,omitempty"`
	SrcChainID types.ChainID  `json:"src_chain_id"`
	DstChainID types.ChainID  `json:"dst_chain_id"`
}

// quoteResponse is the wire format returned by the remote bridge
type quoteResponse struct {
	TotalCostWei         string `json:"total_cost_wei"`
	BridgeFeeWei         string `json:"bridge_fee_wei"`
	EstimatedTimeMinutes int64  `json:"estimated_time_minutes"`
	SuccessRate          int64  `json:"success_rate"`
	AvailableLiquidity   string `json:"available_liquidity"`
	CongestionLevel      int64  `json:"congestion_level"`
}

// SupportsRoute asks the remote bridge whether it serves the pair
func (a *HTTPAdapter) SupportsRoute(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (bool, error) {
	body := quoteRequest{TokenIn: tokenIn, TokenOut: tokenOut, SrcChainID: srcChain, DstChainID: dstChain}

	var response struct {
		Supported bool `json:"supported"`
	}
	if err := a.post(ctx, "/v1/supports", body, &response); err != nil {
		return false, err
	}
	return response.Supported, nil
}

// GetRouteMetrics quotes the remote bridge for a specific transfer
func (a *HTTPAdapter) GetRouteMetrics(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID) (*model.RouteMetrics, error) {
	body := quoteRequest{
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		Amount:     amount.String(),
		SrcChainID: srcChain,
		DstChainID: dstChain,
	}

	var response quoteResponse
	if err := a.post(ctx, "/v1/quote", body, &response); err != nil {
		return nil, err
	}

	totalCost, ok := new(big.Int).SetString(response.TotalCostWei, 10)
	if !ok {
		return nil, fmt.Errorf("bridge %s returned malformed cost %q", a.name, response.TotalCostWei)
	}
	bridgeFee, ok := new(big.Int).SetString(response.BridgeFeeWei, 10)
	if !ok {
		return nil, fmt.Errorf("bridge %s returned malformed fee %q", a.name, response.BridgeFeeWei)
	}
	liquidity, ok := new(big.Int).SetString(response.AvailableLiquidity, 10)
	if !ok {
		return nil, fmt.Errorf("bridge %s returned malformed liquidity %q", a.name, response.AvailableLiquidity)
	}

	return &model.RouteMetrics{
		TotalCostWei:         totalCost,
		BridgeFeeWei:         bridgeFee,
		EstimatedTimeMinutes: response.EstimatedTimeMinutes,
		SuccessRate:          response.SuccessRate,
		AvailableLiquidity:   liquidity,
		CongestionLevel:      response.CongestionLevel,
	}, nil
}

// GetAvailableLiquidity asks the remote bridge for serveable liquidity on the pair
func (a *HTTPAdapter) GetAvailableLiquidity(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (*big.Int, error) {
	body := quoteRequest{TokenIn: tokenIn, TokenOut: tokenOut, SrcChainID: srcChain, DstChainID: dstChain}

	var response struct {
		AvailableLiquidity string `json:"available_liquidity"`
	}
	if err := a.post(ctx, "/v1/liquidity", body, &response); err != nil {
		return nil, err
	}

	liquidity, ok := new(big.Int).SetString(response.AvailableLiquidity, 10)
	if !ok {
		return nil, fmt.Errorf("bridge %s returned malformed liquidity %q", a.name, response.AvailableLiquidity)
	}
	return liquidity, nil
}

// post sends a JSON request through the circuit breaker and decodes the reply
func (a *HTTPAdapter) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}

	_, err = a.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if a.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+a.apiKey)
		}

		logrus.Debugf("Querying bridge %s: %s", a.name, path)
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error querying bridge %s: %w", a.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("bridge %s error: status %d, body: %s", a.name, resp.StatusCode, string(raw))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("error decoding response from %s: %w", a.name, err)
		}
		return nil, nil
	})
	return err
}
