package cache

import "time"

// Business cache TTLs. The cache is never authoritative, so these only bound
// staleness of derived data.
const (
	AnalyticsTTL     = 30 * time.Minute
	WorkspaceTTL     = time.Hour
	MemberListTTL    = 2 * time.Hour
	defaultKeyPrefix = "teamspace:"
)

// WorkspaceAnalyticsKey names the cached invitation analytics for a workspace.
func WorkspaceAnalyticsKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":invitation_analytics"
}

// WorkspaceKey names the cached workspace record.
func WorkspaceKey(workspaceID string) string {
	return "workspace:" + workspaceID
}

// WorkspaceMembersKey names the cached member listing for a workspace.
func WorkspaceMembersKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":members"
}
