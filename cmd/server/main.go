// Package main is the entry point for the settlement switch decision engine:
// bridge route selection and platform fee management for cross-chain
// stablecoin transfers.
package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/bridge"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/config"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/export"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/fees"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/otel"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/registry"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/routecache"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/router"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/scoring"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/security"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server holds the wired decision engine and its HTTP surface
type Server struct {
	config     config.Config
	registry   *registry.Registry
	calculator *router.Calculator
	cache      *routecache.Cache
	weights    *scoring.WeightTable
	feeStore   *fees.Store
	congestion *fees.CongestionModel
	manager    *fees.Manager
	ledger     *fees.MemoryLedger
	signer     *security.QuoteSigner
	exporter   *export.Exporter
	metrics    *serverMetrics
	rateLimit  *rate.Limiter
	server     *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	routeCacheHits  prometheus.Counter
	routesScored    *prometheus.CounterVec
	feesCollected   *prometheus.CounterVec
	adapterCount    prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switch_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switch_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		routeCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "switch_route_cache_hits_total",
				Help: "Total number of route requests served from cache",
			},
		),
		routesScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switch_routes_selected_total",
				Help: "Total number of routes selected, by bridge",
			},
			[]string{"bridge"},
		),
		feesCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switch_fees_collected_total",
				Help: "Total number of fee collections, by category",
			},
			[]string{"category"},
		),
		adapterCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "switch_registered_adapters",
				Help: "Number of registered bridge adapters",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.routeCacheHits,
		m.routesScored,
		m.feesCollected,
		m.adapterCount,
	)
	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Error loading configuration: %v", err)
	}

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server, err := NewServer(cfg)
	if err != nil {
		logrus.Fatalf("Error initializing server: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewServer wires the decision engine from configuration
func NewServer(cfg config.Config) (*Server, error) {
	weights := scoring.NewWeightTable()
	scorer := scoring.NewScorer(weights)

	cache := routecache.New()
	cache.SetTTL(cfg.CacheTTL)

	reg := registry.New()
	metrics := registerMetrics()
	calculator := router.NewCalculator(reg, scorer, cache).
		WithAdapterTimeout(cfg.AdapterTimeout).
		WithCacheHitHook(metrics.routeCacheHits.Inc)

	feeStore := fees.NewStore()
	congestion := fees.NewCongestionModel()
	ledger := fees.NewMemoryLedger()

	treasury := common.HexToAddress(cfg.Treasury)
	if treasury == (common.Address{}) {
		logrus.Warn("No treasury address configured; distributions will fail until one is set")
	}

	var exporterCfg export.Config
	if cfg.File != nil {
		exporterCfg = cfg.File.Export
	}
	exporter, err := export.NewExporter(exporterCfg)
	if err != nil {
		return nil, err
	}

	manager := fees.NewManager(feeStore, congestion, ledger, treasury).
		WithEventSink(exporter)

	var signer *security.QuoteSigner
	if keyHex := os.Getenv("QUOTE_SIGNING_KEY"); keyHex != "" {
		signer, err = security.NewQuoteSignerFromHex(keyHex)
	} else {
		signer, err = security.NewQuoteSigner()
	}
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:     cfg,
		registry:   reg,
		calculator: calculator,
		cache:      cache,
		weights:    weights,
		feeStore:   feeStore,
		congestion: congestion,
		manager:    manager,
		ledger:     ledger,
		signer:     signer,
		exporter:   exporter,
		metrics:    metrics,
		rateLimit:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}

	if cfg.File != nil {
		if err := s.applyBootstrap(cfg.File); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"cache_ttl":       cfg.CacheTTL,
		"adapter_timeout": cfg.AdapterTimeout,
		"adapters":        len(reg.Names()),
	}).Info("Settlement switch initialized")
	return s, nil
}

// applyBootstrap loads adapters, chain tuning, weight profiles and fee
// categories from the YAML config file.
func (s *Server) applyBootstrap(file *config.FileConfig) error {
	for _, ac := range file.Adapters {
		adapter := bridge.NewHTTPAdapter(ac.Name, ac.URL, ac.APIKey)
		if err := s.registry.Register(adapter); err != nil {
			return err
		}
	}
	s.metrics.adapterCount.Set(float64(len(s.registry.Names())))

	for chainID, tuning := range file.Chains {
		if !tuning.Enabled {
			continue
		}
		params := model.DynamicFeeParams{
			CongestionThreshold: tuning.CongestionThreshold,
			MaxMultiplierBps:    tuning.MaxMultiplierBps,
			AdjustmentSpeedBps:  tuning.AdjustmentSpeedBps,
		}
		if err := s.congestion.UpdateParams(types.ChainID(chainID), params); err != nil {
			return err
		}
	}

	for mode, w := range file.Weights {
		if err := s.weights.Update(model.RouteMode(mode), w); err != nil {
			return err
		}
	}

	for category, fc := range file.Fees {
		fs := model.FeeStructure{
			BaseRateBps:             fc.BaseRateBps,
			CongestionMultiplierBps: fc.CongestionMultiplierBps,
			Active:                  fc.Active,
		}
		if fc.MinFeeAmount != "" {
			min, ok := new(big.Int).SetString(fc.MinFeeAmount, 10)
			if !ok {
				logrus.Fatalf("Invalid min fee amount for category %s: %s", category, fc.MinFeeAmount)
			}
			fs.MinFeeAmount = min
		}
		if fc.MaxFeeAmount != "" {
			max, ok := new(big.Int).SetString(fc.MaxFeeAmount, 10)
			if !ok {
				logrus.Fatalf("Invalid max fee amount for category %s: %s", category, fc.MaxFeeAmount)
			}
			fs.MaxFeeAmount = max
		}
		if err := s.feeStore.Update(category, fs); err != nil {
			return err
		}
	}
	return nil
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	r := mux.NewRouter()
	s.registerRoutes(r)

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}
	s.exporter.Close()

	logrus.Info("Server stopped")
}
