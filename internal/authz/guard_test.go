package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/models"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
)

func TestCapabilityMatrix(t *testing.T) {
	cases := []struct {
		role models.Role
		cap  Capability
		want bool
	}{
		{models.RoleOwner, CapView, true},
		{models.RoleOwner, CapEditTasks, true},
		{models.RoleOwner, CapManageMembers, true},
		{models.RoleOwner, CapRenameList, true},
		{models.RoleOwner, CapDeleteList, true},

		{models.RoleEditor, CapView, true},
		{models.RoleEditor, CapEditTasks, true},
		{models.RoleEditor, CapManageMembers, true},
		{models.RoleEditor, CapRenameList, false},
		{models.RoleEditor, CapDeleteList, false},

		{models.RoleViewer, CapView, true},
		{models.RoleViewer, CapEditTasks, false},
		{models.RoleViewer, CapManageMembers, false},
		{models.RoleViewer, CapRenameList, false},
		{models.RoleViewer, CapDeleteList, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Can(tc.role, tc.cap), "%s/%s", tc.role, tc.cap)
	}

	// Unknown roles hold nothing.
	require.False(t, Can(models.Role("ghost"), CapView))
}

func TestAuthorizeDeniesNonMembers(t *testing.T) {
	list := &models.List{
		OwnerID: "owner",
		Members: []models.ListMember{
			{UserID: "owner", Role: models.RoleOwner},
			{UserID: "viewer", Role: models.RoleViewer},
		},
	}

	require.NoError(t, Authorize(list, "owner", CapDeleteList))
	require.NoError(t, Authorize(list, "viewer", CapView))

	err := Authorize(list, "viewer", CapEditTasks)
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)

	err = Authorize(list, "stranger", CapView)
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestCanGrantOwnerEscalation(t *testing.T) {
	require.True(t, CanGrant(models.RoleOwner, models.RoleOwner))
	require.True(t, CanGrant(models.RoleOwner, models.RoleEditor))
	require.True(t, CanGrant(models.RoleEditor, models.RoleEditor))
	require.True(t, CanGrant(models.RoleEditor, models.RoleViewer))

	require.False(t, CanGrant(models.RoleEditor, models.RoleOwner))
	require.False(t, CanGrant(models.RoleViewer, models.RoleOwner))
	require.False(t, CanGrant(models.RoleViewer, models.RoleViewer))
}
