package admission

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/types"
	"github.com/redis/go-redis/v9"
)

// EventType identifies an outbound admission notification
type EventType string

const (
	EventSlotCreated          EventType = "slot_created"
	EventAppointmentRequested EventType = "appointment_requested"
	EventSlotAssigned         EventType = "slot_assigned"
	EventNoAssignment         EventType = "no_assignment"
	EventSurgeonAuthorized    EventType = "surgeon_authorized"
	EventPatientAuthorized    EventType = "patient_authorized"
)

// No-assignment reasons
const (
	ReasonNoRequests  = "no requests received"
	ReasonNoCandidate = "no suitable candidate found"
)

// Event is an outbound admission notification. Events are fire-and-forget and
// emitted at most once per triggering state transition; they never feed back
// into control flow.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	SlotID     uint64          `json:"slot_id,omitempty"`
	Principal  types.Principal `json:"principal,omitempty"`
	Urgency    *uint8          `json:"urgency,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent creates an event with a fresh ID and the given occurrence time
func NewEvent(eventType EventType, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: occurredAt,
	}
}

// Notifier consumes outbound admission events
type Notifier interface {
	Publish(event Event)
}

// LogNotifier writes events to the structured log
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

// Publish logs the event
func (n *LogNotifier) Publish(event Event) {
	entry := n.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"slot_id":    event.SlotID,
		"principal":  string(event.Principal),
		"reason":     event.Reason,
	})
	if event.Urgency != nil {
		entry = entry.WithField("urgency", *event.Urgency)
	}
	entry.Info("Admission event")
}

// redisPublishTimeout bounds each PUBLISH; notifications run while the core
// holds its mutex, so a slow broker must never stall admission operations.
const redisPublishTimeout = 2 * time.Second

// RedisNotifier publishes events to a Redis channel for external observers
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *logger.Logger
}

// NewRedisNotifier creates a Redis-backed notifier
func NewRedisNotifier(client *redis.Client, channel string, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  log,
	}
}

// Publish pushes the event onto the configured channel. Delivery failures are
// logged and swallowed; notifications never abort the triggering operation.
func (n *RedisNotifier) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Errorf("Failed to marshal event %s: %v", event.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Errorf("Failed to publish event %s to channel %s: %v", event.ID, n.channel, err)
	}
}

// MultiNotifier fans an event out to several notifiers
type MultiNotifier []Notifier

// Publish delivers the event to every notifier in order
func (m MultiNotifier) Publish(event Event) {
	for _, n := range m {
		n.Publish(event)
	}
}
