package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/internal/models"
)

func TestAnalyticsEmptyWorkspace(t *testing.T) {
	f := newInvitationFixture(t)

	analytics, err := f.service.Analytics(context.Background(), f.workspace.ID)
	require.NoError(t, err)
	require.Zero(t, analytics.Total)
	require.Zero(t, analytics.AcceptanceRate)
	require.Empty(t, analytics.ByRole)
	require.Empty(t, analytics.ByDepartment)
}

func TestAnalyticsFunnel(t *testing.T) {
	f := newInvitationFixture(t)

	accepted := f.invite(t, "a@acme.test")
	jane := f.createUser(t, "a@acme.test")
	_, err := f.service.Accept(context.Background(), accepted.Token, jane.ID)
	require.NoError(t, err)

	declined := f.invite(t, "b@acme.test")
	_, err = f.service.Decline(context.Background(), declined.Token, "")
	require.NoError(t, err)

	f.invite(t, "c@acme.test")

	analytics, err := f.service.Analytics(context.Background(), f.workspace.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, analytics.Total)
	require.EqualValues(t, 1, analytics.Accepted)
	require.EqualValues(t, 1, analytics.Declined)
	require.EqualValues(t, 1, analytics.Pending)
	require.Zero(t, analytics.Expired)

	// accepted / total × 100, one decimal.
	require.InDelta(t, 33.3, analytics.AcceptanceRate, 0.001)
}

func TestAnalyticsCountsLazyExpiry(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.service.Create(context.Background(), CreateInvitationInput{
		WorkspaceID:   f.workspace.ID,
		InvitedBy:     f.owner.ID,
		Email:         "a@acme.test",
		ExpiresInDays: 1,
	})
	require.NoError(t, err)

	f.advance(48 * time.Hour)

	analytics, err := f.service.Analytics(context.Background(), f.workspace.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, analytics.Expired)
	require.Zero(t, analytics.Pending)

	// The stored row is still pending; expiry was applied at read time.
	var stored models.WorkspaceInvitation
	require.NoError(t, f.db.First(&stored, "workspace_id = ?", f.workspace.ID).Error)
	require.Equal(t, models.InvitationStatusPending, stored.Status)
}

func TestAnalyticsCachingAndInvalidation(t *testing.T) {
	f := newInvitationFixture(t)
	store := cache.NewDatabaseStore(f.db)
	WithInvitationCache(store)(f.service)

	f.invite(t, "a@acme.test")

	first, err := f.service.Analytics(context.Background(), f.workspace.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Total)

	_, ok, err := store.Get(context.Background(), cache.WorkspaceAnalyticsKey(f.workspace.ID))
	require.NoError(t, err)
	require.True(t, ok)

	// A lifecycle change drops the cached result so the next read is fresh.
	f.invite(t, "b@acme.test")
	_, ok, err = store.Get(context.Background(), cache.WorkspaceAnalyticsKey(f.workspace.ID))
	require.NoError(t, err)
	require.False(t, ok)

	second, err := f.service.Analytics(context.Background(), f.workspace.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, second.Total)
}

func TestAnalyticsHistograms(t *testing.T) {
	f := newInvitationFixture(t)

	for _, in := range []CreateInvitationInput{
		{Email: "a@acme.test", Role: models.RoleAdmin, Department: "Engineering"},
		{Email: "b@acme.test", Department: "Engineering"},
		{Email: "c@acme.test", Department: "Sales"},
	} {
		in.WorkspaceID = f.workspace.ID
		in.InvitedBy = f.owner.ID
		_, err := f.service.Create(context.Background(), in)
		require.NoError(t, err)
	}

	analytics, err := f.service.Analytics(context.Background(), f.workspace.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, analytics.ByRole[models.RoleAdmin])
	require.EqualValues(t, 2, analytics.ByRole[models.RoleMember])
	require.EqualValues(t, 2, analytics.ByDepartment["Engineering"])
	require.EqualValues(t, 1, analytics.ByDepartment["Sales"])
}
