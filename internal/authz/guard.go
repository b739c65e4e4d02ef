package authz

import (
	"github.com/taskhive/taskhive/internal/models"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/metrics"
)

// Capability is an atomic permission checked before a mutation.
type Capability string

const (
	CapView          Capability = "view"
	CapEditTasks     Capability = "editTasks"
	CapManageMembers Capability = "manageMembers"
	CapRenameList    Capability = "renameList"
	CapDeleteList    Capability = "deleteList"
)

// matrix is the closed role/capability table. Absent entries deny.
var matrix = map[models.Role]map[Capability]bool{
	models.RoleOwner: {
		CapView:          true,
		CapEditTasks:     true,
		CapManageMembers: true,
		CapRenameList:    true,
		CapDeleteList:    true,
	},
	models.RoleEditor: {
		CapView:          true,
		CapEditTasks:     true,
		CapManageMembers: true,
	},
	models.RoleViewer: {
		CapView: true,
	},
}

// Can reports whether the role grants the capability.
func Can(role models.Role, capability Capability) bool {
	return matrix[role][capability]
}

// Authorize checks the user's role on the list against the required
// capability. It is a pure decision over already-loaded state and must run
// before any write; a deny aborts the operation with ACCESS_DENIED.
func Authorize(list *models.List, uid string, capability Capability) error {
	role, ok := list.RoleOf(uid)
	if !ok || !Can(role, capability) {
		metrics.AuthorizationDecisions.WithLabelValues(string(capability), "deny").Inc()
		return apperrors.ErrAccessDenied
	}

	metrics.AuthorizationDecisions.WithLabelValues(string(capability), "allow").Inc()
	return nil
}

// CanGrant enforces the owner-escalation rule: only an existing owner may
// grant the owner role; editors may grant editor or viewer.
func CanGrant(actorRole, grantedRole models.Role) bool {
	if grantedRole == models.RoleOwner {
		return actorRole == models.RoleOwner
	}
	return Can(actorRole, CapManageMembers)
}
