package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiration(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name string
		ttl  time.Duration
		want int32
	}{
		{name: "never", ttl: 0, want: 0},
		{name: "relative", ttl: time.Hour, want: 3600},
		{name: "thirty days stays relative", ttl: 30 * 24 * time.Hour, want: 2_592_000},
		{name: "longer becomes absolute", ttl: 60 * 24 * time.Hour, want: 1_700_000_000 + 5_184_000},
		{name: "sub second rounds up", ttl: 300 * time.Millisecond, want: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, expiration(tt.ttl, now))
		})
	}
}
