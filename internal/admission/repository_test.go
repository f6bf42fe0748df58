package admission

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medrex/slot-admission/pkg/database"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestEventStore(t *testing.T) (*EventStore, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewEventStore(&database.DB{DB: db}, logger.New("error"))

	cleanup := func() {
		db.Close()
	}

	return store, mock, cleanup
}

func TestEventStore_Publish(t *testing.T) {
	store, mock, cleanup := setupTestEventStore(t)
	defer cleanup()

	urgency := uint8(9)
	event := NewEvent(EventSlotAssigned, atHour(13))
	event.SlotID = 4
	event.Principal = patientB
	event.Urgency = &urgency

	mock.ExpectExec("INSERT INTO admission_events").
		WithArgs(
			event.ID,
			string(EventSlotAssigned),
			int64(4),
			string(patientB),
			int16(9),
			"",
			event.OccurredAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store.Publish(event)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_Publish_NullUrgency(t *testing.T) {
	store, mock, cleanup := setupTestEventStore(t)
	defer cleanup()

	event := NewEvent(EventNoAssignment, atHour(17))
	event.SlotID = 2
	event.Reason = ReasonNoRequests

	mock.ExpectExec("INSERT INTO admission_events").
		WithArgs(
			event.ID,
			string(EventNoAssignment),
			int64(2),
			"",
			nil,
			ReasonNoRequests,
			event.OccurredAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store.Publish(event)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_Publish_SwallowsWriteError(t *testing.T) {
	store, mock, cleanup := setupTestEventStore(t)
	defer cleanup()

	event := NewEvent(EventSlotCreated, atHour(10))
	event.SlotID = 1

	mock.ExpectExec("INSERT INTO admission_events").
		WillReturnError(errors.New("connection reset"))

	// Publish never surfaces the failure to the triggering operation
	assert.NotPanics(t, func() {
		store.Publish(event)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_SaveSlotRecord_Assigned(t *testing.T) {
	store, mock, cleanup := setupTestEventStore(t)
	defer cleanup()

	assignedTo := patientB
	assignedUrgency := uint8(9)
	assignedAt := atHour(13)
	summary := &types.SlotSummary{
		ID:              1,
		State:           types.StateClosed,
		Assigned:        true,
		AssignedTo:      &assignedTo,
		AssignedUrgency: &assignedUrgency,
		CreatedAt:       atHour(10),
		AssignedAt:      &assignedAt,
		Capacity:        2,
		Bookings:        2,
	}

	mock.ExpectExec("INSERT INTO slot_records").
		WithArgs(
			int64(1),
			string(types.StateClosed),
			true,
			string(patientB),
			int16(9),
			summary.CreatedAt,
			assignedAt,
			int16(2),
			int16(2),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.SaveSlotRecord(summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_SaveSlotRecord_Unassigned(t *testing.T) {
	store, mock, cleanup := setupTestEventStore(t)
	defer cleanup()

	summary := &types.SlotSummary{
		ID:        3,
		State:     types.StateClosed,
		CreatedAt: atHour(10),
		Capacity:  4,
		Bookings:  0,
	}

	mock.ExpectExec("INSERT INTO slot_records").
		WithArgs(
			int64(3),
			string(types.StateClosed),
			false,
			nil,
			nil,
			summary.CreatedAt,
			nil,
			int16(4),
			int16(0),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.SaveSlotRecord(summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_SaveSlotRecord_WriteError(t *testing.T) {
	store, mock, cleanup := setupTestEventStore(t)
	defer cleanup()

	summary := &types.SlotSummary{
		ID:        1,
		State:     types.StateClosed,
		CreatedAt: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		Capacity:  2,
	}

	mock.ExpectExec("INSERT INTO slot_records").
		WillReturnError(errors.New("connection reset"))

	assert.Error(t, store.SaveSlotRecord(summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}
