package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "rfc1123z",
			in:   "Sun, 01 Jun 2025 10:00:00 +0200",
			want: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc1123",
			in:   "Sun, 01 Jun 2025 10:00:00 GMT",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc3339",
			in:   "2025-06-01T10:00:00Z",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc3339 with offset",
			in:   "2025-06-01T10:00:00+02:00",
			want: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "single digit day",
			in:   "Sun, 1 Jun 2025 10:00:00 +0000",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDate(tt.in)
			require.NotNil(t, got)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location(), "parsed dates are normalized to UTC")
		})
	}
}

func TestParseDateUnparseable(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2025-13-45", "Sun 01 06 25"} {
		assert.Nil(t, parseDate(in), "parseDate(%q)", in)
	}
}
