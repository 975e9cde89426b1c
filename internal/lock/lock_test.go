package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"planted-staging/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker(5 * time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "upload-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locker.slots)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "upload-1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "upload-1")
	assert.ErrorIs(t, err, errors.ErrLockTimeout)

	unlock()
	unlock() // second call is a no-op

	again, err := locker.Lock(ctx, "upload-1")
	require.NoError(t, err)
	again()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker(time.Minute)

	unlock, err := locker.Lock(context.Background(), "upload-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Lock(ctx, "upload-1")
	assert.ErrorIs(t, err, context.Canceled)
}
