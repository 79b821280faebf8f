package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryGateClaimOnce(t *testing.T) {
	g := NewMemoryGate()
	ctx := context.Background()

	ok, err := g.ClaimOnce(ctx, "payment:133189349850", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.ClaimOnce(ctx, "payment:133189349850", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// distinct keys are independent
	ok, err = g.ClaimOnce(ctx, "payment:other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryGateClaimExpires(t *testing.T) {
	g := NewMemoryGate()
	ctx := context.Background()

	ok, err := g.ClaimOnce(ctx, "payment:short", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = g.ClaimOnce(ctx, "payment:short", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryGateConcurrentSingleWinner(t *testing.T) {
	g := NewMemoryGate()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.ClaimOnce(ctx, "payment:race", time.Minute)
			require.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
}
