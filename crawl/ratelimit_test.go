package crawl_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceHost = "www.racingaustralia.horse"

func TestDomainLimiter(t *testing.T) {
	t.Parallel()

	t.Run("implements racecal.DomainLimiter interface", func(t *testing.T) {
		t.Parallel()
		var _ racecal.DomainLimiter = crawl.NewDomainLimiter(1)
	})

	t.Run("allows immediate request when under limit", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(10)

		start := time.Now()
		err := limiter.Wait(context.Background(), sourceHost)

		require.NoError(t, err)
		assert.Less(t, time.Since(start), 50*time.Millisecond, "first request should be immediate")
	})

	t.Run("spaces requests to the same host", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(10)
		require.NoError(t, limiter.Wait(context.Background(), sourceHost))

		start := time.Now()
		err := limiter.Wait(context.Background(), sourceHost)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "should wait for rate limit")
	})

	t.Run("source and provider hosts have independent limits", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(10)
		require.NoError(t, limiter.Wait(context.Background(), sourceHost))

		start := time.Now()
		err := limiter.Wait(context.Background(), "api.puntingform.com.au")

		require.NoError(t, err)
		assert.Less(t, time.Since(start), 50*time.Millisecond, "different host should not wait")
	})

	t.Run("non-positive rate disables limiting", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(0)

		start := time.Now()
		for range 20 {
			require.NoError(t, limiter.Wait(context.Background(), sourceHost))
		}
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(1)
		require.NoError(t, limiter.Wait(context.Background(), sourceHost))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := limiter.Wait(ctx, sourceHost)
		assert.Error(t, err, "should fail when context times out")
	})

	t.Run("concurrent probes all complete", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(100)

		var wg sync.WaitGroup
		var completed atomic.Int32
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Wait(context.Background(), sourceHost) == nil {
					completed.Add(1)
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, int32(5), completed.Load())
	})
}
