package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RemnantsOfSiren/partysync/types"
)

// failingBudget always errors on Remaining, to exercise fail-closed behavior.
type failingBudget struct{}

func (f *failingBudget) Remaining(_ context.Context, _ types.OperationClass) (int64, error) {
	return 0, errors.New("budget service unavailable")
}

func (f *failingBudget) Consume(types.OperationClass, int64) {}

// stepBudget reports zero allowance until released.
type stepBudget struct {
	mu       sync.Mutex
	released bool
}

func (s *stepBudget) Remaining(_ context.Context, _ types.OperationClass) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.released {
		return 0, nil
	}

	return 100, nil
}

func (s *stepBudget) Consume(types.OperationClass, int64) {}

func (s *stepBudget) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
}

func TestWindowBudgetConsumeAndRemaining(t *testing.T) {
	ctx := context.Background()
	budget := NewWindowBudget(10, 5, time.Minute)

	remaining, err := budget.Remaining(ctx, types.ClassRead)
	require.NoError(t, err)
	require.EqualValues(t, 10, remaining)

	budget.Consume(types.ClassRead, 4)
	remaining, err = budget.Remaining(ctx, types.ClassRead)
	require.NoError(t, err)
	require.EqualValues(t, 6, remaining)

	// Write class is independent of read class.
	remaining, err = budget.Remaining(ctx, types.ClassWrite)
	require.NoError(t, err)
	require.EqualValues(t, 5, remaining)

	// Over-consumption clamps at zero remaining.
	budget.Consume(types.ClassWrite, 20)
	remaining, err = budget.Remaining(ctx, types.ClassWrite)
	require.NoError(t, err)
	require.EqualValues(t, 0, remaining)
}

func TestWindowBudgetRollsWindow(t *testing.T) {
	ctx := context.Background()
	budget := NewWindowBudget(3, 3, 20*time.Millisecond)

	budget.Consume(types.ClassRead, 3)
	remaining, err := budget.Remaining(ctx, types.ClassRead)
	require.NoError(t, err)
	require.EqualValues(t, 0, remaining)

	time.Sleep(30 * time.Millisecond)

	remaining, err = budget.Remaining(ctx, types.ClassRead)
	require.NoError(t, err)
	require.EqualValues(t, 3, remaining, "allowance must replenish after the window rolls")
}

func TestGateFailsClosed(t *testing.T) {
	gate := NewGate(&failingBudget{}, 10*time.Millisecond, nil, nil)

	require.False(t, gate.Has(context.Background(), types.ClassRead, 1))
}

func TestGateHas(t *testing.T) {
	gate := NewGate(NewWindowBudget(2, 0, time.Minute), 10*time.Millisecond, nil, nil)
	ctx := context.Background()

	require.True(t, gate.Has(ctx, types.ClassRead, 2))
	require.False(t, gate.Has(ctx, types.ClassRead, 3))
	require.False(t, gate.Has(ctx, types.ClassWrite, 1))
}

func TestGateWait(t *testing.T) {
	t.Run("returns once budget is available", func(t *testing.T) {
		budget := &stepBudget{}
		gate := NewGate(budget, 5*time.Millisecond, nil, nil)

		go func() {
			time.Sleep(20 * time.Millisecond)
			budget.release()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		require.NoError(t, gate.Wait(ctx, 1, types.ClassRead, types.ClassWrite))
	})

	t.Run("cancellable while budget exhausted", func(t *testing.T) {
		gate := NewGate(&stepBudget{}, 5*time.Millisecond, nil, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		err := gate.Wait(ctx, 1, types.ClassWrite)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
