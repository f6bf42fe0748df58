package admission

import (
	"github.com/medrex/slot-admission/pkg/sealed"
	"github.com/medrex/slot-admission/pkg/types"
)

// UrgencyRevealer obtains the plaintext urgency of a request. It is the only
// seam through which sealed urgencies are read in bulk; a real homomorphic
// comparator can replace it without touching the selection algorithm.
type UrgencyRevealer interface {
	RevealUrgency(req *types.Request) (uint8, error)
}

// providerRevealer reveals the submitted sealed urgency through the provider,
// acting as the core principal, which holds a read grant on every request.
type providerRevealer struct {
	provider      sealed.Provider
	corePrincipal string
}

func (r *providerRevealer) RevealUrgency(req *types.Request) (uint8, error) {
	return sealed.RevealUint8(r.provider, req.SealedUrgency, r.corePrincipal)
}

// Selection is the outcome of an assignment round over a non-empty requester
// list.
type Selection struct {
	Winner  types.Principal
	Urgency uint8
}

// Selector picks the winning request by revealed urgency
type Selector struct {
	revealer UrgencyRevealer
}

// NewSelector creates a selector backed by the given revealer
func NewSelector(revealer UrgencyRevealer) *Selector {
	return &Selector{revealer: revealer}
}

// Select scans requests in submission order and keeps the current best only
// on a strictly greater urgency, so ties resolve to the earliest requester.
// Requests whose urgency cannot be revealed are skipped; if none can be
// revealed, Select returns no selection.
func (s *Selector) Select(requests []*types.Request) (*Selection, []error) {
	var best *Selection
	var revealErrs []error

	for _, req := range requests {
		urgency, err := s.revealer.RevealUrgency(req)
		if err != nil {
			revealErrs = append(revealErrs, err)
			continue
		}
		if best == nil || urgency > best.Urgency {
			best = &Selection{Winner: req.Patient, Urgency: urgency}
		}
	}

	return best, revealErrs
}
