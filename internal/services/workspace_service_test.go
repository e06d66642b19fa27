package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/database/testutil"
	"github.com/camdenwatts/teamspace/internal/models"
	apperrors "github.com/camdenwatts/teamspace/pkg/errors"
)

func newWorkspaceService(t *testing.T) (*WorkspaceService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	service, err := NewWorkspaceService(db, nil)
	require.NoError(t, err)
	return service, db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateWorkspaceEnrolsOwner(t *testing.T) {
	service, db := newWorkspaceService(t)
	owner := seedUser(t, db, "owner@acme.test")

	workspace, err := service.Create(context.Background(), CreateWorkspaceInput{
		Name:    "Acme Rockets",
		OwnerID: owner.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "acme-rockets", workspace.Slug)

	var member models.WorkspaceMember
	require.NoError(t, db.First(&member, "workspace_id = ? AND user_id = ?", workspace.ID, owner.ID).Error)
	require.Equal(t, models.RoleOwner, member.Role)
	require.Equal(t, models.MemberStatusActive, member.Status)
	require.NotNil(t, member.JoinedAt)
}

func TestCreateWorkspaceDuplicateSlug(t *testing.T) {
	service, db := newWorkspaceService(t)
	owner := seedUser(t, db, "owner@acme.test")

	_, err := service.Create(context.Background(), CreateWorkspaceInput{Name: "Acme", OwnerID: owner.ID})
	require.NoError(t, err)

	_, err = service.Create(context.Background(), CreateWorkspaceInput{Name: "Acme", OwnerID: owner.ID})
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestUpdateWorkspace(t *testing.T) {
	service, db := newWorkspaceService(t)
	owner := seedUser(t, db, "owner@acme.test")
	workspace, err := service.Create(context.Background(), CreateWorkspaceInput{Name: "Acme", OwnerID: owner.ID})
	require.NoError(t, err)

	name := "Acme Industries"
	updated, err := service.Update(context.Background(), workspace.ID, UpdateWorkspaceInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Acme Industries", updated.Name)
	require.Equal(t, "acme", updated.Slug)
}

func TestDeleteWorkspaceIsOwnerOnly(t *testing.T) {
	service, db := newWorkspaceService(t)
	owner := seedUser(t, db, "owner@acme.test")
	admin := seedUser(t, db, "admin@acme.test")
	workspace, err := service.Create(context.Background(), CreateWorkspaceInput{Name: "Acme", OwnerID: owner.ID})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      admin.ID,
		Role:        models.RoleAdmin,
		Status:      models.MemberStatusActive,
	}).Error)

	require.ErrorIs(t, service.Delete(context.Background(), workspace.ID, admin.ID), apperrors.ErrForbidden)
	require.NoError(t, service.Delete(context.Background(), workspace.ID, owner.ID))

	_, err = service.GetByID(context.Background(), workspace.ID)
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestListMembersPaginated(t *testing.T) {
	service, db := newWorkspaceService(t)
	owner := seedUser(t, db, "owner@acme.test")
	workspace, err := service.Create(context.Background(), CreateWorkspaceInput{Name: "Acme", OwnerID: owner.ID})
	require.NoError(t, err)

	for _, email := range []string{"a@acme.test", "b@acme.test"} {
		user := seedUser(t, db, email)
		require.NoError(t, db.Create(&models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      user.ID,
			Role:        models.RoleMember,
			Status:      models.MemberStatusActive,
		}).Error)
	}

	members, total, err := service.ListMembers(context.Background(), workspace.ID, 1, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, members, 2)
}

func TestRemoveMember(t *testing.T) {
	service, db := newWorkspaceService(t)
	owner := seedUser(t, db, "owner@acme.test")
	member := seedUser(t, db, "member@acme.test")
	workspace, err := service.Create(context.Background(), CreateWorkspaceInput{Name: "Acme", OwnerID: owner.ID})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      member.ID,
		Role:        models.RoleMember,
		Status:      models.MemberStatusActive,
	}).Error)

	// Ordinary members cannot remove anyone.
	err = service.RemoveMember(context.Background(), workspace.ID, owner.ID, member.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// The owner cannot be removed at all.
	err = service.RemoveMember(context.Background(), workspace.ID, owner.ID, owner.ID)
	require.ErrorIs(t, err, ErrCannotRemoveOwner)

	require.NoError(t, service.RemoveMember(context.Background(), workspace.ID, member.ID, owner.ID))
	_, _, err = service.ListMembers(context.Background(), workspace.ID, 1, 10)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspace.ID, member.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Rockets":    "acme-rockets",
		"  Hello  World ": "hello-world",
		"Ops/2024!":       "ops-2024",
	}
	for input, want := range cases {
		require.Equal(t, want, Slugify(input))
	}
}
