package registry

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// stubAdapter is a minimal adapter for registry tests
type stubAdapter struct {
	name string
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) SupportsRoute(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (bool, error) {
	return true, nil
}

func (a *stubAdapter) GetRouteMetrics(ctx context.Context, tokenIn, tokenOut common.Address, amount *big.Int, srcChain, dstChain types.ChainID) (*model.RouteMetrics, error) {
	return &model.RouteMetrics{}, nil
}

func (a *stubAdapter) GetAvailableLiquidity(ctx context.Context, tokenIn, tokenOut common.Address, srcChain, dstChain types.ChainID) (*big.Int, error) {
	return new(big.Int), nil
}

func TestRegister(t *testing.T) {
	r := New()

	if err := r.Register(&stubAdapter{name: "hop"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&stubAdapter{name: "hop"}); err != ErrAdapterAlreadyRegistered {
		t.Errorf("duplicate Register() error = %v, want %v", err, ErrAdapterAlreadyRegistered)
	}
	if err := r.Register(nil); err != ErrNilAdapter {
		t.Errorf("nil Register() error = %v, want %v", err, ErrNilAdapter)
	}
	if err := r.Register(&stubAdapter{name: ""}); err != ErrNilAdapter {
		t.Errorf("unnamed Register() error = %v, want %v", err, ErrNilAdapter)
	}

	if !r.IsHealthy("hop") {
		t.Error("fresh adapter should start healthy")
	}
	h, err := r.HealthOf("hop")
	if err != nil {
		t.Fatalf("HealthOf() error = %v", err)
	}
	if h.TotalTransfers != 0 || h.TotalVolume.Sign() != 0 {
		t.Errorf("fresh adapter health not zeroed: %+v", h)
	}
}

func TestDeregister(t *testing.T) {
	r := New()
	for _, name := range []string{"hop", "across", "stargate"} {
		if err := r.Register(&stubAdapter{name: name}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	if err := r.Deregister("across"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}
	if err := r.Deregister("across"); err != ErrAdapterNotRegistered {
		t.Errorf("second Deregister() error = %v, want %v", err, ErrAdapterNotRegistered)
	}

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("Names() length = %d, want 2", len(names))
	}
	for _, name := range names {
		if name == "across" {
			t.Error("removed adapter still enumerated")
		}
	}
	if r.IsHealthy("across") {
		t.Error("removed adapter still reported healthy")
	}
}

func TestReportOutcomeAveraging(t *testing.T) {
	r := New()
	if err := r.Register(&stubAdapter{name: "hop"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.ReportOutcome("hop", true, 100*time.Second, big.NewInt(500)); err != nil {
		t.Fatalf("ReportOutcome() error = %v", err)
	}
	h, _ := r.HealthOf("hop")
	if h.AvgCompletionTime != 100*time.Second {
		t.Errorf("first sample avg = %v, want 100s", h.AvgCompletionTime)
	}

	if err := r.ReportOutcome("hop", true, 200*time.Second, big.NewInt(500)); err != nil {
		t.Fatalf("ReportOutcome() error = %v", err)
	}
	h, _ = r.HealthOf("hop")
	// (100s*9 + 200s) / 10
	if h.AvgCompletionTime != 110*time.Second {
		t.Errorf("smoothed avg = %v, want 110s", h.AvgCompletionTime)
	}
	if h.TotalTransfers != 2 || h.SuccessfulTransfers != 2 {
		t.Errorf("counters = %d/%d, want 2/2", h.SuccessfulTransfers, h.TotalTransfers)
	}
	if h.TotalVolume.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("volume = %s, want 1000", h.TotalVolume)
	}

	if err := r.ReportOutcome("unknown", true, time.Second, nil); err != ErrAdapterNotRegistered {
		t.Errorf("unknown adapter error = %v, want %v", err, ErrAdapterNotRegistered)
	}
}

func TestHealthThreshold(t *testing.T) {
	r := New()
	if err := r.Register(&stubAdapter{name: "hop"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// 9 successes and 1 failure is exactly 90%: still healthy
	for i := 0; i < 9; i++ {
		if err := r.ReportOutcome("hop", true, time.Minute, nil); err != nil {
			t.Fatalf("ReportOutcome() error = %v", err)
		}
	}
	if err := r.ReportOutcome("hop", false, time.Minute, nil); err != nil {
		t.Fatalf("ReportOutcome() error = %v", err)
	}
	if !r.IsHealthy("hop") {
		t.Error("adapter at exactly 90% should be healthy")
	}

	// One more failure drops the ratio below 90%
	if err := r.ReportOutcome("hop", false, time.Minute, nil); err != nil {
		t.Fatalf("ReportOutcome() error = %v", err)
	}
	if r.IsHealthy("hop") {
		t.Error("adapter below 90% should be unhealthy")
	}

	// Recovery: enough successes push the ratio back over the line
	for i := 0; i < 10; i++ {
		if err := r.ReportOutcome("hop", true, time.Minute, nil); err != nil {
			t.Fatalf("ReportOutcome() error = %v", err)
		}
	}
	if !r.IsHealthy("hop") {
		t.Error("recovered adapter should be healthy again")
	}
}

func TestHealthOfReturnsCopy(t *testing.T) {
	r := New()
	if err := r.Register(&stubAdapter{name: "hop"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.ReportOutcome("hop", true, time.Minute, big.NewInt(100)); err != nil {
		t.Fatalf("ReportOutcome() error = %v", err)
	}

	h, _ := r.HealthOf("hop")
	h.TotalVolume.SetInt64(0)

	fresh, _ := r.HealthOf("hop")
	if fresh.TotalVolume.Cmp(big.NewInt(100)) != 0 {
		t.Error("HealthOf() must return a copy, not the live record")
	}
}
