package admission

import (
	"fmt"
	"sync"
	"time"

	"github.com/medrex/slot-admission/pkg/clock"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/monitoring"
	"github.com/medrex/slot-admission/pkg/sealed"
	"github.com/medrex/slot-admission/pkg/types"
)

// CorePrincipal is the identity under which the core itself holds read grants
// on sealed request fields.
const CorePrincipal types.Principal = "slot-admission-core"

type requestKey struct {
	slotID  uint64
	patient types.Principal
}

// Core owns the slot lifecycle state machine, the request table and the
// monotonic slot counter. Every mutating operation runs to completion under a
// single mutex, so no caller ever observes partial effects; failed calls
// leave all state unchanged.
type Core struct {
	mu       sync.Mutex
	logger   *logger.Logger
	registry *AccessRegistry
	policy   *WindowPolicy
	provider sealed.Provider
	clock    clock.Clock
	notifier Notifier
	selector *Selector

	currentID uint64
	slots     map[uint64]*types.Slot
	requests  map[requestKey]*types.Request
}

// NewCore creates the admission core. The counter starts at 1 with slot 1 in
// the uncreated stage.
func NewCore(registry *AccessRegistry, policy *WindowPolicy, provider sealed.Provider, clk clock.Clock, notifier Notifier, log *logger.Logger) *Core {
	return &Core{
		logger:   log,
		registry: registry,
		policy:   policy,
		provider: provider,
		clock:    clk,
		notifier: notifier,
		selector: NewSelector(&providerRevealer{
			provider:      provider,
			corePrincipal: string(CorePrincipal),
		}),
		currentID: 1,
		slots:     make(map[uint64]*types.Slot),
		requests:  make(map[requestKey]*types.Request),
	}
}

// AuthorizeSurgeon adds target to the surgeon set. Admin-only.
func (c *Core) AuthorizeSurgeon(caller, target types.Principal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.AuthorizeSurgeon(caller, target); err != nil {
		c.fail("authorize_surgeon", err)
		return err
	}

	event := NewEvent(EventSurgeonAuthorized, c.clock.Now())
	event.Principal = target
	c.notifier.Publish(event)

	monitoring.RecordOperation("authorize_surgeon", nil)
	return nil
}

// AuthorizePatient adds target to the patient set. Admin-only.
func (c *Core) AuthorizePatient(caller, target types.Principal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.AuthorizePatient(caller, target); err != nil {
		c.fail("authorize_patient", err)
		return err
	}

	event := NewEvent(EventPatientAuthorized, c.clock.Now())
	event.Principal = target
	c.notifier.Publish(event)

	monitoring.RecordOperation("authorize_patient", nil)
	return nil
}

// CreateSlot opens a new scheduling slot. The caller must be an authorized
// surgeon, the call must fall inside business hours, and the current slot must
// be uncreated or already closed. The surgeon identity and schedule time are
// sealed; only the core holds a read grant on them.
func (c *Core) CreateSlot(caller types.Principal, surgeonID string, scheduleTime time.Time, capacity uint8) (*types.SlotSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if !c.registry.IsSurgeon(caller) {
		err := types.NewAuthorizationError(types.ErrCodeNotSurgeon, "caller is not an authorized surgeon")
		c.fail("create_slot", err)
		return nil, err
	}

	if !c.policy.BusinessHour(now) {
		err := types.NewWindowViolation("slot creation is only allowed during business hours")
		c.fail("create_slot", err)
		return nil, err
	}

	if current, ok := c.slots[c.currentID]; ok && current.State == types.StateOpen && !current.Assigned {
		err := types.NewStateConflict(types.ErrCodeSlotOpen, fmt.Sprintf("slot %d is still open", c.currentID))
		c.fail("create_slot", err)
		return nil, err
	}

	if capacity < types.MinCapacity || capacity > types.MaxCapacity {
		err := types.NewValidationError("capacity out of range", map[string]interface{}{
			"capacity": capacity,
			"min":      types.MinCapacity,
			"max":      types.MaxCapacity,
		})
		c.fail("create_slot", err)
		return nil, err
	}

	sealedSurgeon, err := c.provider.Seal([]byte(surgeonID))
	if err != nil {
		admErr := types.NewInternalError(types.ErrCodeSealingFailed, "failed to seal surgeon identity", err)
		c.fail("create_slot", admErr)
		return nil, admErr
	}
	sealedSchedule, err := sealed.SealInt64(c.provider, scheduleTime.Unix())
	if err != nil {
		admErr := types.NewInternalError(types.ErrCodeSealingFailed, "failed to seal schedule time", err)
		c.fail("create_slot", admErr)
		return nil, admErr
	}
	c.provider.GrantRead(sealedSurgeon, string(CorePrincipal))
	c.provider.GrantRead(sealedSchedule, string(CorePrincipal))

	// A closed current slot means the previous lifecycle finished without an
	// assignment round advancing the counter (emergency path); move on to a
	// fresh id before opening.
	if current, ok := c.slots[c.currentID]; ok && current.State == types.StateClosed {
		c.currentID++
	}

	slot := &types.Slot{
		ID:             c.currentID,
		State:          types.StateOpen,
		CreatedAt:      now,
		Requesters:     []types.Principal{},
		Capacity:       capacity,
		SealedSurgeon:  sealedSurgeon,
		SealedSchedule: sealedSchedule,
	}
	c.slots[slot.ID] = slot

	event := NewEvent(EventSlotCreated, now)
	event.SlotID = slot.ID
	event.Principal = caller
	c.notifier.Publish(event)

	c.logger.Infof("Opened slot %d with capacity %d", slot.ID, capacity)
	monitoring.RecordOperation("create_slot", nil)
	monitoring.SetCurrentBookings(0)
	return slot.Summary(), nil
}

// RequestAppointment records a patient request against the current slot. The
// urgency, patient identity and surgery type are sealed; the submitter and
// the core each hold a read grant. Rejections are atomic: a failed call
// leaves the slot and request table untouched.
func (c *Core) RequestAppointment(caller types.Principal, patientID string, urgency, surgeryType uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if !c.registry.IsPatient(caller) {
		err := types.NewAuthorizationError(types.ErrCodeNotPatient, "caller is not an authorized patient")
		c.fail("request_appointment", err)
		return err
	}

	slot := c.slots[c.currentID]
	if !c.policy.RequestsOpen(slot, now) {
		err := types.NewWindowViolation("requests are not open for the current slot")
		c.fail("request_appointment", err)
		return err
	}

	if urgency < types.MinUrgency || urgency > types.MaxUrgency {
		err := types.NewValidationError("urgency out of range", map[string]interface{}{
			"urgency": urgency,
			"min":     types.MinUrgency,
			"max":     types.MaxUrgency,
		})
		c.fail("request_appointment", err)
		return err
	}

	if surgeryType < types.MinSurgeryType || surgeryType > types.MaxSurgeryType {
		err := types.NewValidationError("surgery type out of range", map[string]interface{}{
			"surgery_type": surgeryType,
			"min":          types.MinSurgeryType,
			"max":          types.MaxSurgeryType,
		})
		c.fail("request_appointment", err)
		return err
	}

	key := requestKey{slotID: slot.ID, patient: caller}
	if _, exists := c.requests[key]; exists {
		err := types.NewDuplicateRequest(fmt.Sprintf("principal already has a request for slot %d", slot.ID))
		c.fail("request_appointment", err)
		return err
	}

	if slot.Bookings >= slot.Capacity {
		err := types.NewCapacityExceeded(fmt.Sprintf("slot %d is at capacity %d", slot.ID, slot.Capacity))
		c.fail("request_appointment", err)
		return err
	}

	sealedUrgency, err := sealed.SealUint8(c.provider, urgency)
	if err != nil {
		admErr := types.NewInternalError(types.ErrCodeSealingFailed, "failed to seal urgency", err)
		c.fail("request_appointment", admErr)
		return admErr
	}
	sealedPatientID, err := c.provider.Seal([]byte(patientID))
	if err != nil {
		admErr := types.NewInternalError(types.ErrCodeSealingFailed, "failed to seal patient identity", err)
		c.fail("request_appointment", admErr)
		return admErr
	}
	sealedSurgeryType, err := sealed.SealUint8(c.provider, surgeryType)
	if err != nil {
		admErr := types.NewInternalError(types.ErrCodeSealingFailed, "failed to seal surgery type", err)
		c.fail("request_appointment", admErr)
		return admErr
	}
	for _, v := range []*sealed.Value{sealedUrgency, sealedPatientID, sealedSurgeryType} {
		c.provider.GrantRead(v, string(caller))
		c.provider.GrantRead(v, string(CorePrincipal))
	}

	c.requests[key] = &types.Request{
		SlotID:            slot.ID,
		Patient:           caller,
		SealedUrgency:     sealedUrgency,
		SealedPatientID:   sealedPatientID,
		SealedSurgeryType: sealedSurgeryType,
		Submitted:         true,
		SubmittedAt:       now,
	}
	slot.Requesters = append(slot.Requesters, caller)
	slot.Bookings++

	event := NewEvent(EventAppointmentRequested, now)
	event.SlotID = slot.ID
	event.Principal = caller
	c.notifier.Publish(event)

	c.logger.Infof("Recorded request for slot %d (%d/%d booked)", slot.ID, slot.Bookings, slot.Capacity)
	monitoring.RecordOperation("request_appointment", nil)
	monitoring.SetCurrentBookings(slot.Bookings)
	return nil
}

// ProcessAssignments runs an assignment round against the current slot. Any
// caller may trigger it during an assignment hour. The round always closes
// the slot and advances the counter; whether a requester wins depends on the
// revealed urgencies, ties resolving to the earliest requester.
func (c *Core) ProcessAssignments(caller types.Principal) (*types.SlotSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if !c.policy.AssignmentHour(now) {
		err := types.NewWindowViolation("assignments only run at the configured assignment hours")
		c.fail("process_assignments", err)
		return nil, err
	}

	slot := c.slots[c.currentID]
	if slot == nil || slot.State != types.StateOpen || slot.Assigned {
		err := types.NewStateConflict(types.ErrCodeSlotUnavailable, "no open unassigned slot to process")
		c.fail("process_assignments", err)
		return nil, err
	}

	// The counter advances regardless of outcome; the closed slot id is never
	// reused.
	defer func() { c.currentID++ }()

	slot.State = types.StateClosed

	if len(slot.Requesters) == 0 {
		event := NewEvent(EventNoAssignment, now)
		event.SlotID = slot.ID
		event.Reason = ReasonNoRequests
		c.notifier.Publish(event)

		c.logger.Infof("Closed slot %d: no requests received", slot.ID)
		monitoring.RecordOperation("process_assignments", nil)
		monitoring.RecordAssignment("no_requests")
		return slot.Summary(), nil
	}

	requests := make([]*types.Request, 0, len(slot.Requesters))
	for _, patient := range slot.Requesters {
		requests = append(requests, c.requests[requestKey{slotID: slot.ID, patient: patient}])
	}

	selection, revealErrs := c.selector.Select(requests)
	for _, err := range revealErrs {
		c.failSilently("process_assignments", err)
	}

	if selection == nil {
		event := NewEvent(EventNoAssignment, now)
		event.SlotID = slot.ID
		event.Reason = ReasonNoCandidate
		c.notifier.Publish(event)

		c.logger.Infof("Closed slot %d: no suitable candidate found", slot.ID)
		monitoring.RecordOperation("process_assignments", nil)
		monitoring.RecordAssignment("no_candidate")
		return slot.Summary(), nil
	}

	urgency := selection.Urgency
	winner := selection.Winner
	slot.Assigned = true
	slot.AssignedTo = &winner
	slot.AssignedUrgency = &urgency
	assignedAt := now
	slot.AssignedAt = &assignedAt

	event := NewEvent(EventSlotAssigned, now)
	event.SlotID = slot.ID
	event.Principal = winner
	event.Urgency = &urgency
	c.notifier.Publish(event)

	c.logger.Infof("Assigned slot %d with urgency %d", slot.ID, urgency)
	monitoring.RecordOperation("process_assignments", nil)
	monitoring.RecordAssignment("assigned")
	return slot.Summary(), nil
}

// EmergencyAssign bypasses the selection path. Admin-only; the target slot
// must be open and unassigned and the patient must have a request on record.
// It runs outside the assignment-hour window and does not advance the
// counter, so it can target the current slot or leave historical ids intact.
func (c *Core) EmergencyAssign(caller types.Principal, slotID uint64, patient types.Principal) (*types.SlotSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if caller != c.registry.Admin() {
		err := types.NewAuthorizationError(types.ErrCodeNotAdmin, "only the admin may emergency-assign")
		c.fail("emergency_assign", err)
		return nil, err
	}

	slot, ok := c.slots[slotID]
	if !ok || slot.State != types.StateOpen || slot.Assigned {
		err := types.NewStateConflict(types.ErrCodeSlotUnavailable, fmt.Sprintf("slot %d is not open and unassigned", slotID))
		c.fail("emergency_assign", err)
		return nil, err
	}

	if _, exists := c.requests[requestKey{slotID: slotID, patient: patient}]; !exists {
		err := types.NewNotFoundError(fmt.Sprintf("no request from principal for slot %d", slotID))
		c.fail("emergency_assign", err)
		return nil, err
	}

	// The sentinel emergency level marks an administrative assignment; it is
	// not a revealed patient-submitted value.
	urgency := types.EmergencyLevel
	slot.State = types.StateClosed
	slot.Assigned = true
	slot.AssignedTo = &patient
	slot.AssignedUrgency = &urgency
	assignedAt := now
	slot.AssignedAt = &assignedAt

	event := NewEvent(EventSlotAssigned, now)
	event.SlotID = slotID
	event.Principal = patient
	event.Urgency = &urgency
	c.notifier.Publish(event)

	c.logger.Audit(string(caller), "emergency_assign", slotID, true, nil)
	monitoring.RecordOperation("emergency_assign", nil)
	monitoring.RecordAssignment("emergency")
	return slot.Summary(), nil
}

// CurrentSlot returns the read-only view of the current slot
func (c *Core) CurrentSlot() (*types.SlotSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[c.currentID]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("slot %d has not been created yet", c.currentID))
	}
	return slot.Summary(), nil
}

// SlotByID returns the read-only view of any slot, current or historical
func (c *Core) SlotByID(slotID uint64) (*types.SlotSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[slotID]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("slot %d does not exist", slotID))
	}
	return slot.Summary(), nil
}

// CurrentID returns the value of the slot counter
func (c *Core) CurrentID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

// RequestStatus returns the caller's request status for the current slot
func (c *Core) RequestStatus(caller types.Principal) *types.RequestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := &types.RequestStatus{SlotID: c.currentID}
	if req, ok := c.requests[requestKey{slotID: c.currentID, patient: caller}]; ok {
		status.Submitted = true
		submittedAt := req.SubmittedAt
		status.SubmittedAt = &submittedAt
	}
	return status
}

// Requesters returns the ordered requester list for a slot. Admin-only.
func (c *Core) Requesters(caller types.Principal, slotID uint64) ([]types.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.registry.Admin() {
		return nil, types.NewAuthorizationError(types.ErrCodeNotAdmin, "only the admin may list requesters")
	}

	slot, ok := c.slots[slotID]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("slot %d does not exist", slotID))
	}

	requesters := make([]types.Principal, len(slot.Requesters))
	copy(requesters, slot.Requesters)
	return requesters, nil
}

// CurrentHour returns the hour of day under the window policy's arithmetic
func (c *Core) CurrentHour() int {
	return c.policy.HourOfDay(c.clock.Now())
}

// fail records a rejected operation in the log and metrics
func (c *Core) fail(operation string, err error) {
	c.logger.WithError(err).Warnf("Rejected %s", operation)
	monitoring.RecordOperation(operation, err)
	if admErr, ok := types.GetAdmissionError(err); ok {
		monitoring.RecordError(operation, string(admErr.Type))
	}
}

// failSilently records a swallowed internal error (reveal failures during
// selection) without surfacing it to the caller
func (c *Core) failSilently(operation string, err error) {
	c.logger.WithError(err).Warnf("Swallowed internal error during %s", operation)
	monitoring.RecordError(operation, string(types.ErrorTypeInternal))
}
