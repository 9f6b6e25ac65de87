package main

import (
	"errors"
	"math/big"
	"net/http"
	"testing"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/fees"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/registry"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/router"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *big.Int
		wantErr bool
	}{
		{"plain integer", "1000", big.NewInt(1000), false},
		{"zero", "0", big.NewInt(0), false},
		{"wei scale value", "1000000000000000000", big.NewInt(1e18), false},
		{"negative", "-5", nil, true},
		{"not a number", "1.5e18", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got.Cmp(tt.want) != 0 {
				t.Errorf("parseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := parseAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}
	if _, err := parseAddress("0x1234"); err == nil {
		t.Error("short address accepted")
	}
	if _, err := parseAddress("hello"); err == nil {
		t.Error("non-hex address accepted")
	}
}

func TestParseChainID(t *testing.T) {
	id, err := parseChainID("42161")
	if err != nil {
		t.Fatalf("parseChainID() error = %v", err)
	}
	if id != types.ChainArbitrum {
		t.Errorf("parseChainID() = %d, want %d", id, types.ChainArbitrum)
	}
	if _, err := parseChainID("-1"); err == nil {
		t.Error("negative chain id accepted")
	}
	if _, err := parseChainID("mainnet"); err == nil {
		t.Error("non-numeric chain id accepted")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request input", errBadRequest("nope"), http.StatusBadRequest},
		{"no routes", router.ErrNoValidRoutes, http.StatusNotFound},
		{"unknown adapter", registry.ErrAdapterNotRegistered, http.StatusNotFound},
		{"duplicate adapter", registry.ErrAdapterAlreadyRegistered, http.StatusConflict},
		{"underpaid fee", fees.ErrInsufficientFeePayment, http.StatusPaymentRequired},
		{"invalid policy", fees.ErrInvalidDistribution, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
