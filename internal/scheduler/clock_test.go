package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToReference(t *testing.T) {
	tests := []struct {
		name   string
		local  int
		offset int
		want   int
	}{
		{"same zone", 10, 0, 10},
		{"ahead wraps back", 2, 5, 21},
		{"behind", 9, -5, 14},
		{"behind wraps forward", 22, -5, 3},
		{"large positive offset", 0, 23, 1},
		{"large negative offset", 23, -23, 22},
		{"midnight", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToReference(tt.local, tt.offset))
		})
	}
}

func TestToReferenceRoundTrip(t *testing.T) {
	for offset := -MaxOffset; offset <= MaxOffset; offset++ {
		for hour := 0; hour < 24; hour++ {
			ref := ToReference(hour, offset)
			require.GreaterOrEqual(t, ref, 0)
			require.Less(t, ref, 24)
			require.Equal(t, hour, ((ref+offset)%24+24)%24, "hour=%d offset=%d", hour, offset)
			require.Equal(t, hour, ToLocal(ref, offset))
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "08:00", hour: 8},
		{in: "23:59", hour: 23, minute: 59},
		{in: "9:05", hour: 9, minute: 5},
		{in: " 10:30 ", hour: 10, minute: 30},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "aa:bb", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "+1:00", wantErr: true},
		{in: "123:00", wantErr: true},
		{in: "", wantErr: true},
		{in: "10:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hour, minute, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestTranslate(t *testing.T) {
	hour, minute, err := Translate("14:00", 3)
	require.NoError(t, err)
	assert.Equal(t, ToReference(14, 3), hour)
	assert.Equal(t, 0, minute)

	hour, minute, err = Translate("09:45", -5)
	require.NoError(t, err)
	assert.Equal(t, 14, hour)
	assert.Equal(t, 45, minute)

	_, _, err = Translate("09:00", 24)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	_, _, err = Translate("9am", 0)
	assert.ErrorIs(t, err, ErrInvalidClock)
}
