package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/internal/database/testutil"
	"github.com/camdenwatts/teamspace/internal/models"
	"github.com/camdenwatts/teamspace/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	owner := &models.User{Email: "owner@acme.test", Name: "Owner", Password: "x", IsActive: true}
	require.NoError(t, db.Create(owner).Error)
	workspace := &models.Workspace{Name: "Acme", Slug: "acme", OwnerID: owner.ID}
	require.NoError(t, db.Create(workspace).Error)

	overdue := &models.WorkspaceInvitation{
		WorkspaceID: workspace.ID,
		InvitedBy:   owner.ID,
		Email:       "late@acme.test",
		TokenHash:   "hash-late",
		Role:        models.RoleMember,
		Status:      models.InvitationStatusPending,
		ExpiresAt:   now.Add(-time.Hour),
	}
	current := &models.WorkspaceInvitation{
		WorkspaceID: workspace.ID,
		InvitedBy:   owner.ID,
		Email:       "fresh@acme.test",
		TokenHash:   "hash-fresh",
		Role:        models.RoleMember,
		Status:      models.InvitationStatusPending,
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, db.Create(overdue).Error)
	require.NoError(t, db.Create(current).Error)

	stuck := &models.InvitationBatch{
		WorkspaceID: workspace.ID,
		CreatedBy:   owner.ID,
		Name:        "stuck",
		Status:      models.BatchStatusProcessing,
	}
	stuck.CreatedAt = now.Add(-3 * time.Hour)
	require.NoError(t, db.Create(stuck).Error)

	store := cache.NewDatabaseStore(db)
	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "stale-key",
		Value:     []byte("v"),
		ExpiresAt: now.Add(-time.Minute),
	}).Error)

	invitations, err := services.NewInvitationService(db, nil, nil,
		services.WithInvitationClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	cleaner := NewCleaner(invitations,
		WithNow(func() time.Time { return now }),
		WithCacheStore(store),
	)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var stored models.WorkspaceInvitation
	require.NoError(t, db.First(&stored, "id = ?", overdue.ID).Error)
	require.Equal(t, models.InvitationStatusExpired, stored.Status)

	var storedCurrent models.WorkspaceInvitation
	require.NoError(t, db.First(&storedCurrent, "id = ?", current.ID).Error)
	require.Equal(t, models.InvitationStatusPending, storedCurrent.Status)

	var batch models.InvitationBatch
	require.NoError(t, db.First(&batch, "id = ?", stuck.ID).Error)
	require.Equal(t, models.BatchStatusFailed, batch.Status)

	var cacheRows int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&cacheRows).Error)
	require.Zero(t, cacheRows)
}

func TestCleanerStartStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())

	invitations, err := services.NewInvitationService(db, nil, nil)
	require.NoError(t, err)

	cleaner := NewCleaner(invitations, WithSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}
