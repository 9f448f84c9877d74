package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe(OrderCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})

	require.NoError(t, bus.PublishJSON(OrderCreated, map[string]string{"order_id": "o1"}))
	require.NoError(t, bus.PublishJSON(EnquiryCreated, map[string]string{"enquiry_id": "e1"}))

	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	assert.Equal(t, "o1", payload["order_id"])
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")

	calls := 0
	bus.Subscribe(MergeCompleted, func(Event) error { return boom })
	bus.Subscribe(MergeCompleted, func(Event) error {
		calls++
		return nil
	})

	err := bus.PublishJSON(MergeCompleted, map[string]int{"merged": 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestSubscribeAny(t *testing.T) {
	bus := NewEventBus()
	var types []string
	bus.Subscribe(Any, func(e Event) error {
		types = append(types, e.Type)
		return nil
	})

	require.NoError(t, bus.Publish(Event{Type: EnquiryCreated}))
	require.NoError(t, bus.Publish(Event{Type: OrderPaymentToggled}))
	assert.Equal(t, []string{EnquiryCreated, OrderPaymentToggled}, types)
}

func TestPublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus()
	assert.Error(t, bus.PublishJSON(OrderCreated, make(chan int)))
}
