package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/models"
)

// uniquePendingIndex prevents two pending invitations for the same
// (workspace, email) pair. The insert hitting this index is the race-free
// enforcement point; application code only maps the violation to a conflict.
const uniquePendingIndex = "idx_invitations_unique_pending"

// invitationStatsView is a read-only reporting projection over invitations.
const invitationStatsView = "workspace_invitation_stats"

// AutoMigrate creates or updates all application tables.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.TeamRole{},
		&models.WorkspaceMember{},
		&models.InvitationBatch{},
		&models.WorkspaceInvitation{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// Migrate runs table migrations followed by index and view creation.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := ensureInvitationIndexes(db); err != nil {
		return fmt.Errorf("invitation indexes: %w", err)
	}
	if err := ensureStatsView(db); err != nil {
		return fmt.Errorf("stats view: %w", err)
	}
	return nil
}

// SupportsPartialIndexes reports whether the connected dialect can enforce the
// pending-invitation uniqueness constraint in the database.
func SupportsPartialIndexes(db *gorm.DB) bool {
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return true
	default:
		return false
	}
}

func ensureInvitationIndexes(db *gorm.DB) error {
	if !SupportsPartialIndexes(db) {
		// MySQL cannot express partial unique indexes; the invitation service
		// falls back to a pre-insert existence check there.
		return nil
	}

	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON workspace_invitations (workspace_id, email) WHERE status = 'pending'",
		uniquePendingIndex,
	)
	return db.Exec(stmt).Error
}

func ensureStatsView(db *gorm.DB) error {
	query := `SELECT workspace_id,
		COUNT(*) AS total_invitations,
		SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) AS pending_count,
		SUM(CASE WHEN status = 'accepted' THEN 1 ELSE 0 END) AS accepted_count,
		SUM(CASE WHEN status = 'declined' THEN 1 ELSE 0 END) AS declined_count,
		SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END) AS cancelled_count,
		SUM(CASE WHEN status = 'expired' THEN 1 ELSE 0 END) AS expired_count
	FROM workspace_invitations GROUP BY workspace_id`

	var stmt string
	switch db.Dialector.Name() {
	case "sqlite":
		stmt = fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS %s", invitationStatsView, query)
	default:
		stmt = fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", invitationStatsView, query)
	}
	return db.Exec(stmt).Error
}
