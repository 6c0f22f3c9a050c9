package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseProfileRoundTrip(t *testing.T) {
	ms := int64(1735689600000) // 2025-01-01T00:00:00Z
	formatted := Format(ms)
	assert.Equal(t, "2025-01-01T00:00:00Z", formatted)

	parsed, err := ParseProfile(formatted)
	require.NoError(t, err)
	assert.Equal(t, ms, parsed)
}

func TestParseProfileRejectsNonProfile(t *testing.T) {
	_, err := ParseProfile("01/01/2025")
	assert.Error(t, err)

	_, err = ParseProfile("2025-01-01") // date only, not the full profile
	assert.Error(t, err)
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"nil", nil, 0},
		{"zero int64", int64(0), 0},
		{"milliseconds", int64(1735689600000), 1735689600000},
		{"seconds promoted", int64(1735689600), 1735689600000},
		{"float seconds", float64(1735689600), 1735689600000},
		{"profile string", "2025-01-01T00:00:00Z", 1735689600000},
		{"numeric string", "1735689600", 1735689600000},
		{"empty string", "", 0},
		{"garbage string", "not-a-time", 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParseTimeValue(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now.UnixMilli(), Parse(now))
	assert.Equal(t, int64(0), Parse(time.Time{}))
}

func TestZeroValueHandling(t *testing.T) {
	assert.True(t, IsZero(0))
	assert.False(t, IsZero(Now()))
	assert.Equal(t, "", Format(0))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Equal(t, time.Duration(0), Since(0))
	assert.Equal(t, time.Duration(0), Between(0, Now()))
}

func TestBetween(t *testing.T) {
	start := int64(1735689600000)
	end := start + 1500
	assert.Equal(t, 1500*time.Millisecond, Between(start, end))
}
