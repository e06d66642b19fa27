package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/models"
)

func openMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := Open(Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := openMigratedDB(t)

	for _, model := range []interface{}{
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.WorkspaceInvitation{},
		&models.InvitationBatch{},
		&models.TeamRole{},
		&models.AuditLog{},
		&models.CacheEntry{},
	} {
		require.True(t, db.Migrator().HasTable(model))
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openMigratedDB(t)
	require.NoError(t, Migrate(db))
}

func TestUniquePendingIndexRejectsDuplicates(t *testing.T) {
	db := openMigratedDB(t)
	require.True(t, SupportsPartialIndexes(db))

	user := models.User{Email: "owner@example.com", Name: "Owner", Password: "hash"}
	require.NoError(t, db.Create(&user).Error)
	ws := models.Workspace{Name: "Acme", Slug: "acme", OwnerID: user.ID}
	require.NoError(t, db.Create(&ws).Error)

	first := models.WorkspaceInvitation{
		WorkspaceID: ws.ID,
		InvitedBy:   user.ID,
		Email:       "new@example.com",
		TokenHash:   "hash-1",
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&first).Error)

	dup := models.WorkspaceInvitation{
		WorkspaceID: ws.ID,
		InvitedBy:   user.ID,
		Email:       "new@example.com",
		TokenHash:   "hash-2",
		Status:      models.InvitationStatusPending,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.Error(t, db.Create(&dup).Error)

	// A non-pending row for the same email must not collide.
	declined := models.WorkspaceInvitation{
		WorkspaceID: ws.ID,
		InvitedBy:   user.ID,
		Email:       "new@example.com",
		TokenHash:   "hash-3",
		Status:      models.InvitationStatusDeclined,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&declined).Error)
}

func TestStatsViewAggregatesByWorkspace(t *testing.T) {
	db := openMigratedDB(t)

	user := models.User{Email: "owner2@example.com", Name: "Owner", Password: "hash"}
	require.NoError(t, db.Create(&user).Error)
	ws := models.Workspace{Name: "Globex", Slug: "globex", OwnerID: user.ID}
	require.NoError(t, db.Create(&ws).Error)

	for i, status := range []string{
		models.InvitationStatusPending,
		models.InvitationStatusAccepted,
		models.InvitationStatusAccepted,
	} {
		inv := models.WorkspaceInvitation{
			WorkspaceID: ws.ID,
			InvitedBy:   user.ID,
			Email:       string(rune('a'+i)) + "@example.com",
			TokenHash:   string(rune('a' + i)),
			Status:      status,
			ExpiresAt:   time.Now().Add(time.Hour),
		}
		require.NoError(t, db.Create(&inv).Error)
	}

	var row struct {
		TotalInvitations int
		PendingCount     int
		AcceptedCount    int
	}
	require.NoError(t, db.Raw(
		"SELECT total_invitations, pending_count, accepted_count FROM workspace_invitation_stats WHERE workspace_id = ?",
		ws.ID,
	).Scan(&row).Error)

	require.Equal(t, 3, row.TotalInvitations)
	require.Equal(t, 1, row.PendingCount)
	require.Equal(t, 2, row.AcceptedCount)
}
