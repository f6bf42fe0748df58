package admission

import (
	"github.com/medrex/slot-admission/pkg/database"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/types"
)

// EventStore persists admission events and closed-slot records to postgres
// for audit. It is subscribed as an outbound observer: the core never reads
// it back, and write failures are logged without aborting the triggering
// operation.
type EventStore struct {
	db     *database.DB
	logger *logger.Logger
}

// NewEventStore creates a postgres-backed event store
func NewEventStore(db *database.DB, log *logger.Logger) *EventStore {
	return &EventStore{
		db:     db,
		logger: log,
	}
}

// Publish implements Notifier by appending the event to the audit table
func (s *EventStore) Publish(event Event) {
	query := `
		INSERT INTO admission_events (
			id, event_type, slot_id, principal, urgency, reason, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var urgency interface{}
	if event.Urgency != nil {
		urgency = int16(*event.Urgency)
	}

	_, err := s.db.Exec(query,
		event.ID,
		string(event.Type),
		int64(event.SlotID),
		string(event.Principal),
		urgency,
		event.Reason,
		event.OccurredAt,
	)

	if err != nil {
		s.logger.Errorf("Failed to persist event %s: %v", event.ID, err)
	}
}

// SaveSlotRecord upserts a closed-slot record
func (s *EventStore) SaveSlotRecord(summary *types.SlotSummary) error {
	query := `
		INSERT INTO slot_records (
			id, state, assigned, assigned_to, assigned_urgency,
			created_at, assigned_at, capacity, bookings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			assigned = EXCLUDED.assigned,
			assigned_to = EXCLUDED.assigned_to,
			assigned_urgency = EXCLUDED.assigned_urgency,
			assigned_at = EXCLUDED.assigned_at,
			bookings = EXCLUDED.bookings`

	var assignedTo interface{}
	if summary.AssignedTo != nil {
		assignedTo = string(*summary.AssignedTo)
	}
	var assignedUrgency interface{}
	if summary.AssignedUrgency != nil {
		assignedUrgency = int16(*summary.AssignedUrgency)
	}

	_, err := s.db.Exec(query,
		int64(summary.ID),
		string(summary.State),
		summary.Assigned,
		assignedTo,
		assignedUrgency,
		summary.CreatedAt,
		summary.AssignedAt,
		int16(summary.Capacity),
		int16(summary.Bookings),
	)

	if err != nil {
		s.logger.Errorf("Failed to save slot record %d: %v", summary.ID, err)
		return err
	}

	return nil
}
