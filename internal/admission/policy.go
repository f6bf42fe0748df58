package admission

import (
	"time"

	"github.com/medrex/slot-admission/pkg/config"
	"github.com/medrex/slot-admission/pkg/types"
)

// WindowPolicy holds the time-window guards: a business-hour window during
// which slots may be created and requested, and the discrete hours at which
// assignment rounds may run. All predicates are pure functions of the
// injected current time.
type WindowPolicy struct {
	openHour        int
	closeHour       int
	assignmentHours map[int]struct{}
}

// NewWindowPolicy creates a policy from configuration
func NewWindowPolicy(cfg *config.PolicyConfig) *WindowPolicy {
	hours := make(map[int]struct{}, len(cfg.AssignmentHours))
	for _, h := range cfg.AssignmentHours {
		hours[h] = struct{}{}
	}
	return &WindowPolicy{
		openHour:        cfg.OpenHour,
		closeHour:       cfg.CloseHour,
		assignmentHours: hours,
	}
}

// DefaultWindowPolicy returns the standard policy: business window [8,18),
// assignment hours 9, 13 and 17.
func DefaultWindowPolicy() *WindowPolicy {
	return NewWindowPolicy(&config.PolicyConfig{
		OpenHour:        8,
		CloseHour:       18,
		AssignmentHours: []int{9, 13, 17},
	})
}

// HourOfDay returns the hour of day for now, computed as
// (epochSeconds / 3600) mod 24 so midnight wrap-around is exact.
func (p *WindowPolicy) HourOfDay(now time.Time) int {
	return int((now.Unix() / 3600) % 24)
}

// BusinessHour reports whether now falls inside the business window
func (p *WindowPolicy) BusinessHour(now time.Time) bool {
	h := p.HourOfDay(now)
	return h >= p.openHour && h < p.closeHour
}

// AssignmentHour reports whether now falls on one of the assignment hours
func (p *WindowPolicy) AssignmentHour(now time.Time) bool {
	_, ok := p.assignmentHours[p.HourOfDay(now)]
	return ok
}

// RequestsOpen reports whether the slot currently accepts patient requests
func (p *WindowPolicy) RequestsOpen(slot *types.Slot, now time.Time) bool {
	return slot != nil && slot.State == types.StateOpen && !slot.Assigned && p.BusinessHour(now)
}
