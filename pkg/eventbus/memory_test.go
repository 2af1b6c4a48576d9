package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/eventbus"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestMemoryBusPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to named subscribers only", func(t *testing.T) {
		bus := eventbus.NewMemoryBus()
		var got []string
		bus.Subscribe("overdue.state.changed", func(ctx context.Context, e eventbus.Event) {
			got = append(got, e.EventName())
		})

		require.NoError(t, bus.Publish(ctx, testEvent{"overdue.state.changed"}))
		require.NoError(t, bus.Publish(ctx, testEvent{"subscription.timeline.changed"}))

		assert.Equal(t, []string{"overdue.state.changed"}, got)
	})

	t.Run("wildcard subscribers see everything in order", func(t *testing.T) {
		bus := eventbus.NewMemoryBus()
		var got []string
		bus.SubscribeAll(func(ctx context.Context, e eventbus.Event) {
			got = append(got, "all:"+e.EventName())
		})
		bus.Subscribe("a", func(ctx context.Context, e eventbus.Event) {
			got = append(got, "named:"+e.EventName())
		})

		require.NoError(t, bus.Publish(ctx, testEvent{"a"}))

		assert.Equal(t, []string{"all:a", "named:a"}, got, "wildcard subscribers run first")
	})

	t.Run("nil event rejected", func(t *testing.T) {
		bus := eventbus.NewMemoryBus()
		assert.ErrorIs(t, bus.Publish(ctx, nil), eventbus.ErrNilEvent)
	})

	t.Run("nil subscriber ignored", func(t *testing.T) {
		bus := eventbus.NewMemoryBus()
		bus.Subscribe("a", nil)
		bus.SubscribeAll(nil)
		assert.NoError(t, bus.Publish(ctx, testEvent{"a"}))
	})
}
