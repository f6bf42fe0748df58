package admission

import (
	"testing"

	"github.com/medrex/slot-admission/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizeSurgeon_AdminOnly(t *testing.T) {
	registry := NewAccessRegistry("admin")

	err := registry.AuthorizeSurgeon("someone-else", "surgeon-s")
	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthorization))
	assert.False(t, registry.IsSurgeon("surgeon-s"))

	err = registry.AuthorizeSurgeon("admin", "surgeon-s")
	assert.NoError(t, err)
	assert.True(t, registry.IsSurgeon("surgeon-s"))
}

func TestAuthorizePatient_AdminOnly(t *testing.T) {
	registry := NewAccessRegistry("admin")

	err := registry.AuthorizePatient("surgeon-s", "patient-a")
	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthorization))

	err = registry.AuthorizePatient("admin", "patient-a")
	assert.NoError(t, err)
	assert.True(t, registry.IsPatient("patient-a"))
}

func TestAuthorize_Idempotent(t *testing.T) {
	registry := NewAccessRegistry("admin")

	assert.NoError(t, registry.AuthorizeSurgeon("admin", "surgeon-s"))
	assert.NoError(t, registry.AuthorizeSurgeon("admin", "surgeon-s"))
	assert.True(t, registry.IsSurgeon("surgeon-s"))
}

func TestMembership_Disjoint(t *testing.T) {
	registry := NewAccessRegistry("admin")

	assert.NoError(t, registry.AuthorizeSurgeon("admin", "surgeon-s"))

	assert.False(t, registry.IsPatient("surgeon-s"))
	assert.False(t, registry.IsSurgeon("patient-a"))
	assert.Equal(t, types.Principal("admin"), registry.Admin())
}
