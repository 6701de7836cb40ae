package async_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/async"
)

func TestGo(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()

		f := async.Go(func() (int, error) { return 42, nil })
		v, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		f := async.Go(func() (int, error) { return 0, boom })
		_, err := f.Await()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("recovers panic", func(t *testing.T) {
		t.Parallel()

		f := async.Go(func() (int, error) { panic("kaboom") })
		_, err := f.Await()
		assert.ErrorIs(t, err, async.ErrPanicked)
	})

	t.Run("await with timeout", func(t *testing.T) {
		t.Parallel()

		blocked := make(chan struct{})
		f := async.Go(func() (int, error) {
			<-blocked
			return 1, nil
		})

		_, err := f.AwaitWithTimeout(10 * time.Millisecond)
		assert.ErrorIs(t, err, async.ErrTimeout)
		assert.False(t, f.IsComplete())

		close(blocked)
		v, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.True(t, f.IsComplete())
	})
}

func TestSettle(t *testing.T) {
	t.Parallel()

	t.Run("collects independent outcomes", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		futures := []*async.Future[int]{
			async.Go(func() (int, error) { return 1, nil }),
			async.Go(func() (int, error) { return 0, boom }),
			async.Go(func() (int, error) { return 3, nil }),
		}

		outcomes := async.Settle(futures...)
		require.Len(t, outcomes, 3)
		assert.Equal(t, 1, outcomes[0].Result)
		assert.NoError(t, outcomes[0].Err)
		assert.ErrorIs(t, outcomes[1].Err, boom)
		assert.Equal(t, 3, outcomes[2].Result)
		assert.NoError(t, outcomes[2].Err)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, async.Settle[int]())
	})
}
