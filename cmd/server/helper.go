package main

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/fees"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/registry"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/router"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/scoring"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// requestError marks a malformed client input
type requestError struct {
	msg string
}

func (e requestError) Error() string { return e.msg }

func errBadRequest(msg string) error { return requestError{msg: msg} }

// parseAmount parses a non-negative decimal string in the asset's smallest unit
func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errBadRequest("invalid amount: " + s)
	}
	if amount.Sign() < 0 {
		return nil, errBadRequest("amount must not be negative: " + s)
	}
	return amount, nil
}

// parseAddress parses a checksummed or plain hex address
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errBadRequest("invalid address: " + s)
	}
	return common.HexToAddress(s), nil
}

// parseChainID parses a chain id path segment
func parseChainID(s string) (types.ChainID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errBadRequest("invalid chain id: " + s)
	}
	return types.ChainID(id), nil
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrNoValidRoutes),
		errors.Is(err, registry.ErrAdapterNotRegistered),
		errors.Is(err, fees.ErrFeeStructureNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAdapterAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, fees.ErrInsufficientFeePayment):
		return http.StatusPaymentRequired
	case errors.Is(err, registry.ErrNilAdapter),
		errors.Is(err, fees.ErrInvalidFeeRate),
		errors.Is(err, fees.ErrInvalidFeeParams),
		errors.Is(err, fees.ErrInvalidCongestionLevel),
		errors.Is(err, fees.ErrInvalidRecipient),
		errors.Is(err, fees.ErrInvalidDistribution),
		errors.Is(err, fees.ErrExcessiveDiscount),
		errors.Is(err, scoring.ErrInvalidScoringWeights),
		errors.Is(err, scoring.ErrUnknownMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
