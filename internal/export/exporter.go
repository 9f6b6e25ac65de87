// Package export ships fee lifecycle events to an external webhook in batches.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// Config holds settings for the fee event exporter
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	BatchSize      int           `yaml:"batch_size"`
	ExportInterval time.Duration `yaml:"export_interval"`
	WebhookURL     string        `yaml:"webhook_url"`
	WebhookAPIKey  string        `yaml:"webhook_api_key,omitempty"`
}

// Event is one exported fee lifecycle entry
type Event struct {
	Kind      string           `json:"kind"` // "collected" or "distributed"
	Record    *model.FeeRecord `json:"record,omitempty"`
	Token     string           `json:"token,omitempty"`
	Total     string           `json:"total,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// Exporter batches fee events and posts them to the configured webhook on an
// interval or when the batch fills up. It satisfies the fee manager's event
// sink interface.
type Exporter struct {
	config     Config
	httpClient *http.Client

	mu     sync.Mutex
	batch  []Event
	cancel context.CancelFunc
}

// NewExporter creates and starts an exporter; it is a no-op when disabled
func NewExporter(cfg Config) (*Exporter, error) {
	if cfg.Enabled && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("exporter enabled but no webhook URL configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = time.Minute
	}

	e := &Exporter{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	if cfg.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go e.loop(ctx)
		logrus.WithFields(logrus.Fields{
			"interval":   cfg.ExportInterval,
			"batch_size": cfg.BatchSize,
		}).Info("Fee event exporter started")
	}
	return e, nil
}

// FeeCollected queues a collection event
func (e *Exporter) FeeCollected(record model.FeeRecord) {
	if !e.config.Enabled {
		return
	}
	rec := record
	e.add(Event{
		Kind:      "collected",
		Record:    &rec,
		Timestamp: time.Now().Unix(),
	})
}

// FeesDistributed queues a distribution event
func (e *Exporter) FeesDistributed(token common.Address, total *big.Int) {
	if !e.config.Enabled {
		return
	}
	e.add(Event{
		Kind:      "distributed",
		Token:     token.Hex(),
		Total:     total.String(),
		Timestamp: time.Now().Unix(),
	})
}

// Close stops the export loop and flushes the remaining batch
func (e *Exporter) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.flush()
}

func (e *Exporter) add(ev Event) {
	e.mu.Lock()
	e.batch = append(e.batch, ev)
	full := len(e.batch) >= e.config.BatchSize
	e.mu.Unlock()

	if full {
		e.flush()
	}
}

func (e *Exporter) loop(ctx context.Context) {
	ticker := time.NewTicker(e.config.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flush()
		}
	}
}

// flush posts the pending batch to the webhook
func (e *Exporter) flush() {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	batch := e.batch
	e.batch = nil
	e.mu.Unlock()

	payload, err := json.Marshal(map[string]interface{}{
		"source": "settlement-switch",
		"events": batch,
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode fee event batch")
		return
	}

	req, err := http.NewRequest(http.MethodPost, e.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		logrus.WithError(err).Warn("Failed to create webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("Fee event export failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logrus.Warnf("Fee event export rejected: status %d", resp.StatusCode)
		return
	}
	logrus.Debugf("Exported %d fee events", len(batch))
}
