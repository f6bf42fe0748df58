package admission

import (
	"sync"

	"github.com/medrex/slot-admission/pkg/types"
)

// AccessRegistry maintains the sets of principals authorized as surgeons and
// patients, plus the single admin principal fixed at construction. Membership
// is monotonic: there is no revocation.
type AccessRegistry struct {
	admin    types.Principal
	mu       sync.RWMutex
	surgeons map[types.Principal]struct{}
	patients map[types.Principal]struct{}
}

// NewAccessRegistry creates a registry with the given admin principal
func NewAccessRegistry(admin types.Principal) *AccessRegistry {
	return &AccessRegistry{
		admin:    admin,
		surgeons: make(map[types.Principal]struct{}),
		patients: make(map[types.Principal]struct{}),
	}
}

// Admin returns the admin principal
func (r *AccessRegistry) Admin() types.Principal {
	return r.admin
}

// AuthorizeSurgeon adds target to the surgeon set. Admin-only, idempotent.
func (r *AccessRegistry) AuthorizeSurgeon(caller, target types.Principal) error {
	if caller != r.admin {
		return types.NewAuthorizationError(types.ErrCodeNotAdmin, "only the admin may authorize surgeons")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.surgeons[target] = struct{}{}
	return nil
}

// AuthorizePatient adds target to the patient set. Admin-only, idempotent.
func (r *AccessRegistry) AuthorizePatient(caller, target types.Principal) error {
	if caller != r.admin {
		return types.NewAuthorizationError(types.ErrCodeNotAdmin, "only the admin may authorize patients")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[target] = struct{}{}
	return nil
}

// IsSurgeon reports whether p is an authorized surgeon
func (r *AccessRegistry) IsSurgeon(p types.Principal) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.surgeons[p]
	return ok
}

// IsPatient reports whether p is an authorized patient
func (r *AccessRegistry) IsPatient(p types.Principal) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.patients[p]
	return ok
}
