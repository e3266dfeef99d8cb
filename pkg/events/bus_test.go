package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversInline(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	bus.Subscribe("node:start", func(_ string, payload map[string]interface{}) {
		got = append(got, payload["node_id"].(string))
	})

	bus.Publish("node:start", map[string]interface{}{"node_id": "a"})
	bus.Publish("node:start", map[string]interface{}{"node_id": "b"})

	// Synchronous delivery: both handlers already ran.
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewBus(nil)
	assert.NotPanics(t, func() {
		bus.Publish("execution:complete", nil)
	})
}

func TestHandlerPanicDoesNotPropagate(t *testing.T) {
	bus := NewBus(nil)

	delivered := false
	bus.Subscribe("execution:failed", func(string, map[string]interface{}) {
		panic("boom")
	})
	bus.Subscribe("execution:failed", func(string, map[string]interface{}) {
		delivered = true
	})

	assert.NotPanics(t, func() {
		bus.Publish("execution:failed", map[string]interface{}{})
	})
	assert.True(t, delivered, "later subscribers still run after a panic")
}

func TestFamilySubscription(t *testing.T) {
	bus := NewBus(nil)

	var names []string
	bus.Subscribe("email:*", func(event string, _ map[string]interface{}) {
		names = append(names, event)
	})

	bus.Publish("email:sent", nil)
	bus.Publish("email:failed", nil)
	bus.Publish("form:submitted", nil)

	assert.Equal(t, []string{"email:sent", "email:failed"}, names)
}

func TestMultipleSubscribersOrder(t *testing.T) {
	bus := NewBus(nil)

	var order []int
	bus.Subscribe("timer:expired", func(string, map[string]interface{}) { order = append(order, 1) })
	bus.Subscribe("timer:expired", func(string, map[string]interface{}) { order = append(order, 2) })

	bus.Publish("timer:expired", map[string]interface{}{})
	assert.Equal(t, []int{1, 2}, order)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	cancel := bus.Subscribe("node:start", func(string, map[string]interface{}) { calls++ })

	bus.Publish("node:start", nil)
	cancel()
	bus.Publish("node:start", nil)

	assert.Equal(t, 1, calls)

	// Cancelling twice is harmless.
	assert.NotPanics(t, cancel)
}
