package main

import (
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/bridge"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/scoring"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// registerRoutes attaches every endpoint to the router
func (s *Server) registerRoutes(r *mux.Router) {
	r.Use(s.rateLimitMiddleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/routes/optimal", s.instrument("routes_optimal", s.handleOptimalRoute)).Methods(http.MethodPost)
	api.HandleFunc("/routes/list", s.instrument("routes_list", s.handleRouteList)).Methods(http.MethodPost)
	api.HandleFunc("/routes/cache", s.instrument("routes_cache", s.handleCacheRoute)).Methods(http.MethodPost)

	api.HandleFunc("/fees/quote", s.instrument("fees_quote", s.handleFeeQuote)).Methods(http.MethodPost)
	api.HandleFunc("/fees/collect", s.instrument("fees_collect", s.handleFeeCollect)).Methods(http.MethodPost)
	api.HandleFunc("/fees/distribute", s.instrument("fees_distribute", s.handleFeeDistribute)).Methods(http.MethodPost)
	api.HandleFunc("/fees/history/{transferID}", s.handleFeeHistory).Methods(http.MethodGet)
	api.HandleFunc("/fees/collected/{token}", s.handleCollectedFees).Methods(http.MethodGet)
	api.HandleFunc("/fees/distribution", s.handleGetDistribution).Methods(http.MethodGet)

	api.HandleFunc("/adapters", s.handleListAdapters).Methods(http.MethodGet)
	api.HandleFunc("/adapters/register", s.handleRegisterAdapter).Methods(http.MethodPost)
	api.HandleFunc("/adapters/{name}", s.handleRemoveAdapter).Methods(http.MethodDelete)
	api.HandleFunc("/adapters/{name}/health", s.handleAdapterHealth).Methods(http.MethodGet)
	api.HandleFunc("/adapters/{name}/outcome", s.handleOutcome).Methods(http.MethodPost)

	policy := api.PathPrefix("/policy").Subrouter()
	policy.Use(s.authMiddleware)
	policy.HandleFunc("/fees/{category}", s.handleUpdateFeeStructure).Methods(http.MethodPut)
	policy.HandleFunc("/weights/{mode}", s.handleUpdateWeights).Methods(http.MethodPut)
	policy.HandleFunc("/congestion/{chainID}/params", s.handleUpdateFeeParams).Methods(http.MethodPut)
	policy.HandleFunc("/congestion/{chainID}/level", s.handleCongestionLevel).Methods(http.MethodPost)
	policy.HandleFunc("/distribution", s.handleSetDistribution).Methods(http.MethodPut)
	policy.HandleFunc("/exemptions", s.handleSetExemption).Methods(http.MethodPut)
	policy.HandleFunc("/discounts", s.handleSetDiscount).Methods(http.MethodPut)
	policy.HandleFunc("/treasury", s.handleUpdateTreasury).Methods(http.MethodPut)
	policy.HandleFunc("/cache-ttl", s.handleSetCacheTTL).Methods(http.MethodPut)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// routeRequest is the wire format for routing queries
type routeRequest struct {
	TokenIn    string `json:"token_in"`
	TokenOut   string `json:"token_out"`
	Amount     string `json:"amount"`
	SrcChainID uint64 `json:"src_chain_id"`
	DstChainID uint64 `json:"dst_chain_id"`

	Mode           string `json:"mode,omitempty"`
	MaxFeeWei      string `json:"max_fee_wei,omitempty"`
	MaxTimeMinutes int64  `json:"max_time_minutes,omitempty"`
	MaxSlippageBps int64  `json:"max_slippage_bps,omitempty"`

	MaxRoutes int `json:"max_routes,omitempty"`
}

// preferences converts the wire fields into route preferences
func (r routeRequest) preferences() (model.RoutePreferences, error) {
	prefs := model.RoutePreferences{
		Mode:           model.ModeBalanced,
		MaxTimeMinutes: r.MaxTimeMinutes,
		MaxSlippageBps: r.MaxSlippageBps,
	}
	if r.Mode != "" {
		mode := model.RouteMode(r.Mode)
		if !mode.Valid() {
			return prefs, errBadRequest("unknown routing mode: " + r.Mode)
		}
		prefs.Mode = mode
	}
	if r.MaxSlippageBps < 0 || r.MaxSlippageBps > model.BpsDenominator {
		return prefs, errBadRequest("max_slippage_bps must be 0-10000")
	}
	if r.MaxFeeWei != "" {
		maxFee, err := parseAmount(r.MaxFeeWei)
		if err != nil {
			return prefs, err
		}
		prefs.MaxFeeWei = maxFee
	}
	return prefs, nil
}

// handleOptimalRoute finds and signs the single best route for a request
func (s *Server) handleOptimalRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokenIn, tokenOut, amount, prefs, err := s.parseRouteRequest(req)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	route, err := s.calculator.FindOptimalRoute(r.Context(), tokenIn, tokenOut, amount,
		types.ChainID(req.SrcChainID), types.ChainID(req.DstChainID), prefs)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	score := s.scorer().Score(route, prefs.Mode)
	quote, err := s.signer.Sign(*route, score)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.routesScored.WithLabelValues(route.Bridge).Inc()
	s.jsonResponse(w, http.StatusOK, quote)
}

// handleRouteList returns up to max_routes candidates by descending score
func (s *Server) handleRouteList(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tokenIn, tokenOut, amount, prefs, err := s.parseRouteRequest(req)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	routes, err := s.calculator.FindMultipleRoutes(r.Context(), tokenIn, tokenOut, amount,
		types.ChainID(req.SrcChainID), types.ChainID(req.DstChainID), prefs, req.MaxRoutes)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"routes": routes,
		"count":  len(routes),
	})
}

// handleCacheRoute seeds the cache with an externally validated route
func (s *Server) handleCacheRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Route          model.Route `json:"route"`
		Mode           string      `json:"mode,omitempty"`
		MaxFeeWei      string      `json:"max_fee_wei,omitempty"`
		MaxTimeMinutes int64       `json:"max_time_minutes,omitempty"`
		MaxSlippageBps int64       `json:"max_slippage_bps,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	prefs, err := routeRequest{
		Mode:           req.Mode,
		MaxFeeWei:      req.MaxFeeWei,
		MaxTimeMinutes: req.MaxTimeMinutes,
		MaxSlippageBps: req.MaxSlippageBps,
	}.preferences()
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	s.calculator.CacheRoute(req.Route, prefs)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "cached"})
}

// handleFeeQuote computes the fee owed for a transfer without collecting it
func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
		Amount   string `json:"amount"`
		ChainID  uint64 `json:"chain_id"`
		Payer    string `json:"payer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	payer, err := parseAddress(req.Payer)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	fee, err := s.manager.CalculateFee(req.Category, amount, types.ChainID(req.ChainID), payer)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"category": req.Category,
		"fee":      fee.String(),
	})
}

// handleFeeCollect collects a fee from a payer
func (s *Server) handleFeeCollect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category   string `json:"category"`
		Token      string `json:"token"`
		Amount     string `json:"amount"`
		Payer      string `json:"payer"`
		TransferID string `json:"transfer_id"`
		Supplied   string `json:"supplied,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := parseAddress(req.Token)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	payer, err := parseAddress(req.Payer)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	var supplied *big.Int
	if req.Supplied != "" {
		supplied, err = parseAmount(req.Supplied)
		if err != nil {
			s.errorResponse(w, statusFor(err), err.Error())
			return
		}
	}

	if err := s.manager.CollectFee(req.Category, token, amount, payer, req.TransferID, supplied); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	s.metrics.feesCollected.WithLabelValues(req.Category).Inc()
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "collected"})
}

// handleFeeDistribute pays out the collected balance for a token
func (s *Server) handleFeeDistribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := parseAddress(req.Token)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.DistributeFees(token); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "distributed"})
}

// handleFeeHistory returns every fee record for a transfer id
func (s *Server) handleFeeHistory(w http.ResponseWriter, r *http.Request) {
	transferID := mux.Vars(r)["transferID"]
	records := s.manager.FeeHistory(transferID)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"transfer_id": transferID,
		"records":     records,
		"count":       len(records),
	})
}

// handleCollectedFees returns the undistributed balance for a token
func (s *Server) handleCollectedFees(w http.ResponseWriter, r *http.Request) {
	token, err := parseAddress(mux.Vars(r)["token"])
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"token":       token.Hex(),
		"collected":   s.manager.CollectedFees(token).String(),
		"distributed": s.manager.TotalDistributed(token).String(),
	})
}

// handleGetDistribution returns the active revenue shares
func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"shares":   s.manager.GetRevenueDistribution(),
		"treasury": s.manager.Treasury().Hex(),
	})
}

// handleListAdapters returns the registered adapters and their health
func (s *Server) handleListAdapters(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	health := make(map[string]model.BridgeHealth, len(names))
	for _, name := range names {
		if h, err := s.registry.HealthOf(name); err == nil {
			health[name] = h
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"adapters": names,
		"health":   health,
	})
}

// handleRegisterAdapter registers a remote bridge integration
func (s *Server) handleRegisterAdapter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		URL    string `json:"url"`
		APIKey string `json:"api_key,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		s.errorResponse(w, http.StatusBadRequest, "name and url are required")
		return
	}

	adapter := bridge.NewHTTPAdapter(req.Name, req.URL, req.APIKey)
	if err := s.registry.Register(adapter); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	s.metrics.adapterCount.Set(float64(len(s.registry.Names())))
	s.jsonResponse(w, http.StatusCreated, map[string]string{"status": "registered", "name": req.Name})
}

// handleRemoveAdapter removes an adapter from the routing set
func (s *Server) handleRemoveAdapter(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.registry.Deregister(name); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.metrics.adapterCount.Set(float64(len(s.registry.Names())))
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "removed", "name": name})
}

// handleAdapterHealth returns one adapter's health record
func (s *Server) handleAdapterHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	health, err := s.registry.HealthOf(name)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, health)
}

// handleOutcome records a completed transfer against an adapter's health
func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req struct {
		Success               bool   `json:"success"`
		CompletionTimeSeconds int64  `json:"completion_time_seconds"`
		Volume                string `json:"volume,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var volume *big.Int
	if req.Volume != "" {
		parsed, err := parseAmount(req.Volume)
		if err != nil {
			s.errorResponse(w, statusFor(err), err.Error())
			return
		}
		volume = parsed
	}

	err := s.registry.ReportOutcome(name, req.Success,
		time.Duration(req.CompletionTimeSeconds)*time.Second, volume)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// handleUpdateFeeStructure replaces the fee policy for a category
func (s *Server) handleUpdateFeeStructure(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	var req struct {
		BaseRateBps             int64  `json:"base_rate_bps"`
		MinFeeAmount            string `json:"min_fee_amount,omitempty"`
		MaxFeeAmount            string `json:"max_fee_amount,omitempty"`
		CongestionMultiplierBps int64  `json:"congestion_multiplier_bps"`
		Active                  bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fs := model.FeeStructure{
		BaseRateBps:             req.BaseRateBps,
		CongestionMultiplierBps: req.CongestionMultiplierBps,
		Active:                  req.Active,
	}
	if req.MinFeeAmount != "" {
		min, err := parseAmount(req.MinFeeAmount)
		if err != nil {
			s.errorResponse(w, statusFor(err), err.Error())
			return
		}
		fs.MinFeeAmount = min
	}
	if req.MaxFeeAmount != "" {
		max, err := parseAmount(req.MaxFeeAmount)
		if err != nil {
			s.errorResponse(w, statusFor(err), err.Error())
			return
		}
		fs.MaxFeeAmount = max
	}

	if err := s.feeStore.Update(category, fs); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated", "category": category})
}

// handleUpdateWeights replaces the scoring weights for a mode
func (s *Server) handleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	mode := model.RouteMode(mux.Vars(r)["mode"])

	var weights model.ScoringWeights
	if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.weights.Update(mode, weights); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated", "mode": string(mode)})
}

// handleUpdateFeeParams replaces a chain's congestion tuning
func (s *Server) handleUpdateFeeParams(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["chainID"])
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	var req struct {
		BaseGasPrice        string `json:"base_gas_price,omitempty"`
		CongestionThreshold int64  `json:"congestion_threshold"`
		MaxMultiplierBps    int64  `json:"max_multiplier_bps"`
		AdjustmentSpeedBps  int64  `json:"adjustment_speed_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := model.DynamicFeeParams{
		CongestionThreshold: req.CongestionThreshold,
		MaxMultiplierBps:    req.MaxMultiplierBps,
		AdjustmentSpeedBps:  req.AdjustmentSpeedBps,
	}
	if req.BaseGasPrice != "" {
		gas, err := parseAmount(req.BaseGasPrice)
		if err != nil {
			s.errorResponse(w, statusFor(err), err.Error())
			return
		}
		params.BaseGasPrice = gas
	}

	if err := s.congestion.UpdateParams(chainID, params); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleCongestionLevel reports a fresh congestion reading for a chain
func (s *Server) handleCongestionLevel(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["chainID"])
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	var req struct {
		Level int64 `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.congestion.UpdateCongestionLevel(chainID, req.Level); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":     "updated",
		"multiplier": s.congestion.Multiplier(chainID),
	})
}

// handleSetDistribution sets one recipient's revenue share
func (s *Server) handleSetDistribution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
		ShareBps  int64  `json:"share_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.SetRevenueDistribution(recipient, req.ShareBps); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleSetExemption marks or unmarks a payer as fee exempt
func (s *Server) handleSetExemption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payer  string `json:"payer"`
		Exempt bool   `json:"exempt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payer, err := parseAddress(req.Payer)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	s.manager.SetFeeExemption(payer, req.Exempt)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleSetDiscount sets a payer's discount rate
func (s *Server) handleSetDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payer       string `json:"payer"`
		DiscountBps int64  `json:"discount_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payer, err := parseAddress(req.Payer)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.SetDiscountRate(payer, req.DiscountBps); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleUpdateTreasury changes the treasury account
func (s *Server) handleUpdateTreasury(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Treasury string `json:"treasury"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	treasury, err := parseAddress(req.Treasury)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}

	if err := s.manager.UpdateTreasury(treasury); err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleSetCacheTTL changes the route cache validity window
func (s *Server) handleSetCacheTTL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TTLSeconds int64 `json:"ttl_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TTLSeconds <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "ttl_seconds must be positive")
		return
	}

	s.cache.SetTTL(time.Duration(req.TTLSeconds) * time.Second)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":   "operational",
		"uptime":   time.Since(startTime).String(),
		"version":  "1.0.0",
		"adapters": len(s.registry.Names()),
		"configuration": map[string]interface{}{
			"cache_ttl":       s.cache.TTL().String(),
			"cache_entries":   s.cache.Len(),
			"adapter_timeout": s.config.AdapterTimeout.String(),
			"fee_categories":  s.feeStore.Categories(),
		},
		"signer_key": s.signer.PublicKey(),
	})
}

// parseRouteRequest validates the shared fields of routing requests
func (s *Server) parseRouteRequest(req routeRequest) (common.Address, common.Address, *big.Int, model.RoutePreferences, error) {
	var prefs model.RoutePreferences

	tokenIn, err := parseAddress(req.TokenIn)
	if err != nil {
		return common.Address{}, common.Address{}, nil, prefs, err
	}
	tokenOut, err := parseAddress(req.TokenOut)
	if err != nil {
		return common.Address{}, common.Address{}, nil, prefs, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, prefs, err
	}
	if amount.Sign() <= 0 {
		return common.Address{}, common.Address{}, nil, prefs, errBadRequest("amount must be positive")
	}

	prefs, err = req.preferences()
	if err != nil {
		return common.Address{}, common.Address{}, nil, prefs, err
	}
	return tokenIn, tokenOut, amount, prefs, nil
}

// scorer returns a scorer over the live weight table
func (s *Server) scorer() *scoring.Scorer {
	return scoring.NewScorer(s.weights)
}

// instrument wraps a handler with request counting and timing
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		s.metrics.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		status := "success"
		if rec.status >= 400 {
			status = "error"
		}
		s.metrics.requestCounter.WithLabelValues(endpoint, status).Inc()
	}
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// jsonResponse writes a JSON body with the given status
func (s *Server) jsonResponse(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// errorResponse writes a JSON error body
func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	logrus.Warn(msg)
	s.jsonResponse(w, status, map[string]interface{}{
		"status": "error",
		"error":  msg,
	})
}
