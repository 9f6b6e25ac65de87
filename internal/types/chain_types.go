// Package types contains shared type definitions used across multiple packages
package types

// ChainID identifies a blockchain network supported by the settlement switch
type ChainID uint64

// Supported blockchain networks
const (
	ChainEthereum  ChainID = 1
	ChainOptimism  ChainID = 10
	ChainBSC       ChainID = 56
	ChainPolygon   ChainID = 137
	ChainBase      ChainID = 8453
	ChainArbitrum  ChainID = 42161
	ChainAvalanche ChainID = 43114
)

// Name returns the canonical lowercase name for well-known chains,
// or an empty string for chains not in the table.
func (c ChainID) Name() string {
	switch c {
	case ChainEthereum:
		return "ethereum"
	case ChainOptimism:
		return "optimism"
	case ChainBSC:
		return "binance"
	case ChainPolygon:
		return "polygon"
	case ChainBase:
		return "base"
	case ChainArbitrum:
		return "arbitrum"
	case ChainAvalanche:
		return "avalanche"
	}
	return ""
}

// ChainConfig holds configuration for a specific blockchain network
type ChainConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	RPCEndpoint string `json:"rpc_endpoint" yaml:"rpc_endpoint"`
	APIEndpoint string `json:"api_endpoint" yaml:"api_endpoint"`
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// CongestionThreshold is the congestion level (0-100) above which the
	// dynamic fee multiplier starts to climb for this chain.
	CongestionThreshold int64 `json:"congestion_threshold" yaml:"congestion_threshold"`
}
