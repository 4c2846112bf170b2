package handler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"ecf-service/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, sub *Subscription) model.DeviceEvent {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return model.DeviceEvent{}
}

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	all := bus.Subscribe()
	coupons := bus.Subscribe(model.EventCouponChanged)

	device := uuid.New()
	bus.Publish(model.DeviceEvent{EventType: model.EventDeviceConnected, DeviceID: device})
	bus.Publish(model.DeviceEvent{EventType: model.EventCouponChanged, DeviceID: device})

	assert.Equal(t, model.EventDeviceConnected, receive(t, all).EventType)
	assert.Equal(t, model.EventCouponChanged, receive(t, all).EventType)
	assert.Equal(t, model.EventCouponChanged, receive(t, coupons).EventType)

	coupons.Close()
	coupons.Close()
	assert.Equal(t, 1, bus.Subscribers())

	cancel()
	require.NoError(t, <-done)
	_, ok := <-all.C
	assert.False(t, ok, "Run closes the remaining subscriptions")
	assert.Zero(t, bus.Subscribers())
}

func TestEventBusPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	for i := 0; i < busBuffer+10; i++ {
		bus.Publish(model.DeviceEvent{EventType: model.EventStatusChange})
	}
	assert.Len(t, bus.events, busBuffer)
}
