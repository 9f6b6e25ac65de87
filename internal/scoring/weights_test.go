package scoring

import (
	"testing"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

func TestWeightTableDefaults(t *testing.T) {
	table := NewWeightTable()

	for _, mode := range []model.RouteMode{model.ModeCheapest, model.ModeFastest, model.ModeBalanced} {
		w := table.Get(mode)
		if !w.Valid() {
			t.Errorf("default weights for %s violate the invariant: %+v", mode, w)
		}
	}

	if table.Get(model.ModeCheapest).Cost != 60 {
		t.Error("cheapest mode should weight cost at 60")
	}
	if table.Get(model.ModeFastest).Speed != 60 {
		t.Error("fastest mode should weight speed at 60")
	}
}

func TestWeightTableUpdate(t *testing.T) {
	tests := []struct {
		name    string
		mode    model.RouteMode
		weights model.ScoringWeights
		wantErr error
	}{
		{
			name:    "valid update",
			mode:    model.ModeBalanced,
			weights: model.ScoringWeights{Cost: 40, Speed: 30, Reliability: 20, Liquidity: 10},
			wantErr: nil,
		},
		{
			name:    "sum below 100",
			mode:    model.ModeBalanced,
			weights: model.ScoringWeights{Cost: 40, Speed: 30, Reliability: 20, Liquidity: 5},
			wantErr: ErrInvalidScoringWeights,
		},
		{
			name:    "sum above 100",
			mode:    model.ModeBalanced,
			weights: model.ScoringWeights{Cost: 40, Speed: 40, Reliability: 20, Liquidity: 10},
			wantErr: ErrInvalidScoringWeights,
		},
		{
			name:    "negative weight",
			mode:    model.ModeBalanced,
			weights: model.ScoringWeights{Cost: 110, Speed: -10, Reliability: 0, Liquidity: 0},
			wantErr: ErrInvalidScoringWeights,
		},
		{
			name:    "unknown mode",
			mode:    model.RouteMode("turbo"),
			weights: model.ScoringWeights{Cost: 25, Speed: 25, Reliability: 25, Liquidity: 25},
			wantErr: ErrUnknownMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewWeightTable()
			if err := table.Update(tt.mode, tt.weights); err != tt.wantErr {
				t.Errorf("Update() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWeightTableRejectedUpdateKeepsOld(t *testing.T) {
	table := NewWeightTable()
	before := table.Get(model.ModeBalanced)

	bad := model.ScoringWeights{Cost: 99, Speed: 99, Reliability: 99, Liquidity: 99}
	if err := table.Update(model.ModeBalanced, bad); err == nil {
		t.Fatal("Update() with invalid weights must fail")
	}

	if table.Get(model.ModeBalanced) != before {
		t.Error("rejected update must leave the previous weights in place")
	}
}

func TestWeightTableUnknownModeFallsBack(t *testing.T) {
	table := NewWeightTable()
	if table.Get(model.RouteMode("turbo")) != table.Get(model.ModeBalanced) {
		t.Error("unknown mode should fall back to the balanced profile")
	}
}
