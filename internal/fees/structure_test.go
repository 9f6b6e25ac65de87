package fees

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

func TestStoreUpdateValidation(t *testing.T) {
	tests := []struct {
		name    string
		fs      model.FeeStructure
		wantErr error
	}{
		{
			name: "valid structure",
			fs: model.FeeStructure{
				BaseRateBps:             30,
				MinFeeAmount:            big.NewInt(1000),
				MaxFeeAmount:            big.NewInt(1e6),
				CongestionMultiplierBps: 2000,
				Active:                  true,
			},
			wantErr: nil,
		},
		{
			name:    "base rate over 10%",
			fs:      model.FeeStructure{BaseRateBps: 1001, Active: true},
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "negative base rate",
			fs:      model.FeeStructure{BaseRateBps: -1, Active: true},
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "congestion multiplier over 50%",
			fs:      model.FeeStructure{BaseRateBps: 30, CongestionMultiplierBps: 5001},
			wantErr: ErrInvalidFeeRate,
		},
		{
			name: "min above max",
			fs: model.FeeStructure{
				BaseRateBps:  30,
				MinFeeAmount: big.NewInt(2000),
				MaxFeeAmount: big.NewInt(1000),
			},
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "zero rate is allowed",
			fs:      model.FeeStructure{BaseRateBps: 0, Active: true},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.Update("protocol", tt.fs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, getErr := s.Get("protocol")
				assert.ErrorIs(t, getErr, ErrFeeStructureNotFound,
					"rejected update must not create the category")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStoreGetAndCategories(t *testing.T) {
	s := NewStore()

	_, err := s.Get("protocol")
	assert.ErrorIs(t, err, ErrFeeStructureNotFound)

	require.NoError(t, s.Update("protocol", model.FeeStructure{BaseRateBps: 30, Active: true}))
	require.NoError(t, s.Update("bridge", model.FeeStructure{BaseRateBps: 10, Active: true}))

	fs, err := s.Get("protocol")
	require.NoError(t, err)
	assert.EqualValues(t, 30, fs.BaseRateBps)

	assert.ElementsMatch(t, []string{"protocol", "bridge"}, s.Categories())

	// An update fully replaces the previous structure
	require.NoError(t, s.Update("protocol", model.FeeStructure{BaseRateBps: 50, Active: false}))
	fs, err = s.Get("protocol")
	require.NoError(t, err)
	assert.EqualValues(t, 50, fs.BaseRateBps)
	assert.False(t, fs.Active)
}
