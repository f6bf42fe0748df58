package types

import (
	"time"

	"github.com/medrex/slot-admission/pkg/sealed"
)

// Principal is an opaque identity token. The identity substrate (wallet keys,
// session tokens, certificates) is an external concern; the core only compares
// principals for equality and uses them as map keys.
type Principal string

// SlotState represents the lifecycle stage of a slot. The uncreated stage is
// represented by the slot's absence from the slot table.
type SlotState string

const (
	StateOpen   SlotState = "open"
	StateClosed SlotState = "closed"
)

// Capacity and field bounds enforced by the admission controller.
const (
	MinCapacity    uint8 = 1
	MaxCapacity    uint8 = 10
	MinUrgency     uint8 = 1
	MaxUrgency     uint8 = 10
	MinSurgeryType uint8 = 1
	MaxSurgeryType uint8 = 20
)

// EmergencyLevel is the sentinel urgency recorded by an emergency assignment.
// It is an administrative marker, not a revealed patient-submitted value.
const EmergencyLevel uint8 = 255

// Slot is the schedulable unit. ID, Capacity and CreatedAt are immutable after
// creation; only State, the assignment fields, Bookings and Requesters mutate.
type Slot struct {
	ID              uint64          `json:"id"`
	State           SlotState       `json:"state"`
	Assigned        bool            `json:"assigned"`
	AssignedTo      *Principal      `json:"assigned_to,omitempty"`
	AssignedUrgency *uint8          `json:"assigned_urgency,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	AssignedAt      *time.Time      `json:"assigned_at,omitempty"`
	Requesters      []Principal     `json:"requesters"`
	Capacity        uint8           `json:"capacity"`
	Bookings        uint8           `json:"bookings"`
	SealedSurgeon   *sealed.Value   `json:"-"`
	SealedSchedule  *sealed.Value   `json:"-"`
}

// Request is a single patient's submission against a slot. Requests are
// created once per (slot, principal) pair and never updated or deleted; the
// duplicate-request rule relies on this.
type Request struct {
	SlotID            uint64        `json:"slot_id"`
	Patient           Principal     `json:"patient"`
	SealedUrgency     *sealed.Value `json:"-"`
	SealedPatientID   *sealed.Value `json:"-"`
	SealedSurgeryType *sealed.Value `json:"-"`
	Submitted         bool          `json:"submitted"`
	SubmittedAt       time.Time     `json:"submitted_at"`
}

// SlotSummary is the read-only view of a slot returned by query operations.
type SlotSummary struct {
	ID              uint64     `json:"id"`
	State           SlotState  `json:"state"`
	Assigned        bool       `json:"assigned"`
	AssignedTo      *Principal `json:"assigned_to,omitempty"`
	AssignedUrgency *uint8     `json:"assigned_urgency,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	RequestCount    int        `json:"request_count"`
	Capacity        uint8      `json:"capacity"`
	Bookings        uint8      `json:"bookings"`
}

// Summary builds the read-only view of a slot.
func (s *Slot) Summary() *SlotSummary {
	return &SlotSummary{
		ID:              s.ID,
		State:           s.State,
		Assigned:        s.Assigned,
		AssignedTo:      s.AssignedTo,
		AssignedUrgency: s.AssignedUrgency,
		CreatedAt:       s.CreatedAt,
		AssignedAt:      s.AssignedAt,
		RequestCount:    len(s.Requesters),
		Capacity:        s.Capacity,
		Bookings:        s.Bookings,
	}
}

// RequestStatus is the per-patient view of their request against a slot.
type RequestStatus struct {
	SlotID      uint64     `json:"slot_id"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}
