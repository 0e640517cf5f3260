// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitUntilPastTargetReturnsImmediately(t *testing.T) {
	err := WaitUntil(context.Background(), RealClock{}, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
}

func TestWaitUntilCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitUntil(ctx, RealClock{}, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitUntilSlicesLongWaits(t *testing.T) {
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	clock := &stepClock{now: base}
	target := base.Add(12 * time.Minute)

	err := WaitUntil(context.Background(), clock, target)
	require.NoError(t, err)

	// 12 minutes in 5-minute slices: 5 + 5 + 2.
	assert.Equal(t, 3, clock.timerCount())
	assert.False(t, clock.Now().Before(target), "wait returned before the target instant")
}

func TestWaitUntilShortWaitUsesSingleTimer(t *testing.T) {
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	clock := &stepClock{now: base}

	err := WaitUntil(context.Background(), clock, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, clock.timerCount())
}
