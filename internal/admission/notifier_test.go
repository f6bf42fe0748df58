package admission

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	occurredAt := atHour(10)

	first := NewEvent(EventSlotCreated, occurredAt)
	second := NewEvent(EventSlotCreated, occurredAt)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, EventSlotCreated, first.Type)
	assert.Equal(t, occurredAt, first.OccurredAt)
}

func TestEvent_JSONOmitsEmptyFields(t *testing.T) {
	event := NewEvent(EventNoAssignment, time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC))
	event.SlotID = 4
	event.Reason = ReasonNoRequests

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "no_assignment", decoded["type"])
	assert.Equal(t, float64(4), decoded["slot_id"])
	assert.Equal(t, ReasonNoRequests, decoded["reason"])
	assert.NotContains(t, decoded, "principal")
	assert.NotContains(t, decoded, "urgency")
}

func TestMultiNotifier_FansOut(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	multi := MultiNotifier{first, second}

	event := NewEvent(EventSlotAssigned, atHour(13))
	event.SlotID = 7
	multi.Publish(event)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, event.ID, first.events[0].ID)
	assert.Equal(t, event.ID, second.events[0].ID)
}

func TestRedisNotifier_UnreachableBrokerReturns(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	notifier := NewRedisNotifier(client, "admission_events", logger.New("error"))

	// The publish is bounded and its failure swallowed, so core operations
	// holding the mutex are never stalled by a dead broker.
	start := time.Now()
	assert.NotPanics(t, func() {
		notifier.Publish(NewEvent(EventSlotAssigned, atHour(13)))
	})
	assert.Less(t, time.Since(start), redisPublishTimeout+time.Second)
}

func TestMultiNotifier_Empty(t *testing.T) {
	var multi MultiNotifier

	assert.NotPanics(t, func() {
		multi.Publish(NewEvent(EventSlotCreated, atHour(9)))
	})
}
