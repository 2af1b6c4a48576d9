package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/clock"
	"github.com/dmitrymomot/billingkit/pkg/notification"
)

func TestScheduleAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2014, time.June, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stores a pending entry", func(t *testing.T) {
		clk := clock.NewMock(now)
		sched := notification.NewMemoryScheduler(clk)
		entityID := uuid.New()

		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(time.Hour)))

		p, err := sched.FindPendingFor(ctx, notification.QueueOverdueCheck, entityID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, notification.QueueOverdueCheck, p.Queue)
		assert.Equal(t, entityID, p.EntityID)
		assert.Equal(t, now.Add(time.Hour), p.Effective)
		assert.Equal(t, now, p.CreatedAt)
	})

	t.Run("earliest time wins on re-insert", func(t *testing.T) {
		sched := notification.NewMemoryScheduler(clock.NewMock(now))
		entityID := uuid.New()

		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(10*time.Minute)))
		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(5*time.Minute)))
		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(15*time.Minute)))

		p, err := sched.FindPendingFor(ctx, notification.QueueOverdueCheck, entityID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, now.Add(5*time.Minute), p.Effective,
			"a due check must never slip later")
	})

	t.Run("at most one pending per entity", func(t *testing.T) {
		clk := clock.NewMock(now)
		sched := notification.NewMemoryScheduler(clk)
		entityID := uuid.New()

		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(time.Minute)))
		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(2*time.Minute)))

		assert.Len(t, sched.Due(notification.QueueOverdueCheck, now.Add(time.Hour)), 1)
	})

	t.Run("entities are independent", func(t *testing.T) {
		sched := notification.NewMemoryScheduler(clock.NewMock(now))
		a, b := uuid.New(), uuid.New()

		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, a, now.Add(time.Minute)))
		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, b, now.Add(2*time.Minute)))
		require.NoError(t, sched.CancelAllFor(ctx, notification.QueueOverdueCheck, a))

		pa, err := sched.FindPendingFor(ctx, notification.QueueOverdueCheck, a)
		require.NoError(t, err)
		assert.Nil(t, pa)

		pb, err := sched.FindPendingFor(ctx, notification.QueueOverdueCheck, b)
		require.NoError(t, err)
		assert.NotNil(t, pb)
	})

	t.Run("queues are independent", func(t *testing.T) {
		sched := notification.NewMemoryScheduler(clock.NewMock(now))
		entityID := uuid.New()

		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(time.Minute)))
		require.NoError(t, sched.ScheduleAt(ctx, notification.QueueSubscriptionPhase, entityID, now.Add(time.Minute)))
		require.NoError(t, sched.CancelAllFor(ctx, notification.QueueOverdueCheck, entityID))

		p, err := sched.FindPendingFor(ctx, notification.QueueSubscriptionPhase, entityID)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})

	t.Run("validation", func(t *testing.T) {
		sched := notification.NewMemoryScheduler(clock.NewMock(now))

		assert.ErrorIs(t, sched.ScheduleAt(ctx, "", uuid.New(), now), notification.ErrEmptyQueue)
		assert.ErrorIs(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, uuid.Nil, now), notification.ErrNilEntityID)
		assert.ErrorIs(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, uuid.New(), time.Time{}), notification.ErrZeroEffective)
		assert.ErrorIs(t, sched.CancelAllFor(ctx, "", uuid.New()), notification.ErrEmptyQueue)

		_, err := sched.FindPendingFor(ctx, "", uuid.New())
		assert.ErrorIs(t, err, notification.ErrEmptyQueue)
	})
}

func TestCancelAllFor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2014, time.June, 1, 12, 0, 0, 0, time.UTC)
	sched := notification.NewMemoryScheduler(clock.NewMock(now))
	entityID := uuid.New()

	require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, entityID, now.Add(time.Minute)))
	require.NoError(t, sched.CancelAllFor(ctx, notification.QueueOverdueCheck, entityID))

	p, err := sched.FindPendingFor(ctx, notification.QueueOverdueCheck, entityID)
	require.NoError(t, err)
	assert.Nil(t, p)

	assert.NoError(t, sched.CancelAllFor(ctx, notification.QueueOverdueCheck, entityID),
		"cancelling with nothing pending is a no-op")
}

func TestDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2014, time.June, 1, 12, 0, 0, 0, time.UTC)
	sched := notification.NewMemoryScheduler(clock.NewMock(now))

	dueNow := uuid.New()
	dueLater := uuid.New()
	require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, dueNow, now.Add(time.Minute)))
	require.NoError(t, sched.ScheduleAt(ctx, notification.QueueOverdueCheck, dueLater, now.Add(time.Hour)))

	due := sched.Due(notification.QueueOverdueCheck, now.Add(time.Minute))
	require.Len(t, due, 1)
	assert.Equal(t, dueNow, due[0].EntityID)

	assert.Len(t, sched.Due(notification.QueueOverdueCheck, now.Add(2*time.Hour)), 2)
	assert.Empty(t, sched.Due(notification.QueueOverdueCheck, now))
}
