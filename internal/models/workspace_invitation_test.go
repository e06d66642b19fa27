package models

import (
	"testing"
	"time"
)

func TestEffectiveStatusPendingBeforeExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	inv := WorkspaceInvitation{
		Status:    InvitationStatusPending,
		ExpiresAt: now.Add(24 * time.Hour),
	}

	if got := inv.EffectiveStatus(now); got != InvitationStatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
	if !inv.IsActionable(now) {
		t.Fatal("expected invitation to be actionable")
	}
}

func TestEffectiveStatusPendingAfterExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	inv := WorkspaceInvitation{
		Status:    InvitationStatusPending,
		ExpiresAt: now.Add(-time.Minute),
	}

	if got := inv.EffectiveStatus(now); got != InvitationStatusExpired {
		t.Fatalf("expected expired, got %s", got)
	}
	if inv.IsActionable(now) {
		t.Fatal("expected invitation not to be actionable")
	}

	// Reads are side-effect free: the stored status is untouched.
	if inv.Status != InvitationStatusPending {
		t.Fatalf("stored status mutated to %s", inv.Status)
	}
}

func TestEffectiveStatusTerminalStatesIgnoreExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, status := range []string{
		InvitationStatusAccepted,
		InvitationStatusDeclined,
		InvitationStatusCancelled,
		InvitationStatusExpired,
	} {
		inv := WorkspaceInvitation{Status: status, ExpiresAt: now.Add(-time.Hour)}
		if got := inv.EffectiveStatus(now); got != status {
			t.Fatalf("expected %s, got %s", status, got)
		}
	}
}

func TestWorkspaceMemberCanManage(t *testing.T) {
	cases := []struct {
		role   string
		status string
		want   bool
	}{
		{RoleOwner, MemberStatusActive, true},
		{RoleAdmin, MemberStatusActive, true},
		{RoleMember, MemberStatusActive, false},
		{RoleAdmin, MemberStatusInactive, false},
		{RoleOwner, MemberStatusPending, false},
	}

	for _, tc := range cases {
		m := WorkspaceMember{Role: tc.role, Status: tc.status}
		if got := m.CanManage(); got != tc.want {
			t.Fatalf("role=%s status=%s: expected %v got %v", tc.role, tc.status, tc.want, got)
		}
	}
}
