package types_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/carbon/types"
)

func TestParseAccountID(t *testing.T) {
	canonical := "0x" + strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		want    types.AccountID
		wantErr bool
	}{
		{"canonical", canonical, types.AccountID(canonical), false},
		{"no prefix", strings.Repeat("ab", 32), types.AccountID(canonical), false},
		{"upper case", "0x" + strings.Repeat("AB", 32), types.AccountID(canonical), false},
		{"blackhole", strings.Repeat("0", 64), types.Blackhole, false},
		{"too short", "0xabcd", "", true},
		{"not hex", "0x" + strings.Repeat("zz", 32), "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseAccountID(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrInvalidAccount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccountIDText(t *testing.T) {
	var holder struct {
		Account types.AccountID `json:"account"`
	}
	err := json.Unmarshal([]byte(`{"account":"`+strings.Repeat("CD", 32)+`"}`), &holder)
	require.NoError(t, err)
	assert.Equal(t, types.AccountID("0x"+strings.Repeat("cd", 32)), holder.Account)

	err = json.Unmarshal([]byte(`{"account":"nope"}`), &holder)
	assert.ErrorIs(t, err, types.ErrInvalidAccount)
}

func TestBlackhole(t *testing.T) {
	assert.True(t, types.Blackhole.IsBlackhole())
	assert.False(t, types.MustParseAccountID(strings.Repeat("01", 32)).IsBlackhole())
	assert.Len(t, types.Blackhole.String(), 66)
}

func TestParseNumbers(t *testing.T) {
	e, err := types.ParseEditionID("42")
	require.NoError(t, err)
	assert.Equal(t, types.EditionID(42), e)

	_, err = types.ParseEditionID("-1")
	assert.Error(t, err)

	y, err := types.ParseYear("2023")
	require.NoError(t, err)
	assert.Equal(t, "2023", y.String())

	_, err = types.ParseYear("70000")
	assert.Error(t, err)

	r, err := types.ParseRetirementID("7")
	require.NoError(t, err)
	assert.Equal(t, types.RetirementID(7), r)
}

func TestSum(t *testing.T) {
	assert.Equal(t, types.CarbonUnit(0), types.Sum(nil))
	assert.Equal(t, types.CarbonUnit(65), types.Sum([]types.Holding{
		{EditionID: 0, Amount: 30},
		{EditionID: 3, Amount: 35},
	}))
}

func TestAdd(t *testing.T) {
	sum, ok := types.Add(30, 35)
	assert.True(t, ok)
	assert.Equal(t, types.CarbonUnit(65), sum)

	sum, ok = types.Add(1<<63, 1<<63-1)
	assert.True(t, ok)
	assert.Equal(t, types.CarbonUnit(math.MaxUint64), sum)

	_, ok = types.Add(1<<63, 1<<63)
	assert.False(t, ok)
}

func TestNewStampIsUTC(t *testing.T) {
	loc := time.FixedZone("plus5", 5*3600)
	s := types.NewStamp(9, time.Date(2024, 1, 2, 3, 4, 5, 0, loc))
	assert.Equal(t, uint64(9), s.BlockNumber)
	assert.Equal(t, time.UTC, s.Timestamp.Location())
	assert.False(t, s.IsZero())
	assert.True(t, types.Stamp{}.IsZero())
}
