package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/internal/models"
	"github.com/camdenwatts/teamspace/pkg/metrics"
)

// InvitationAnalytics summarises the invitation funnel of one workspace.
// Counts use the effective status: a pending invitation past its expiry is
// reported as expired even before the maintenance job persists the
// transition.
type InvitationAnalytics struct {
	Total          int64            `json:"total"`
	Pending        int64            `json:"pending"`
	Accepted       int64            `json:"accepted"`
	Declined       int64            `json:"declined"`
	Cancelled      int64            `json:"cancelled"`
	Expired        int64            `json:"expired"`
	AcceptanceRate float64          `json:"acceptance_rate"`
	ByRole         map[string]int64 `json:"by_role"`
	ByDepartment   map[string]int64 `json:"by_department"`
}

// Analytics computes the invitation funnel for a workspace. Results are
// cached under an advisory TTL; cache failures fall through to the database.
func (s *InvitationService) Analytics(ctx context.Context, workspaceID string) (*InvitationAnalytics, error) {
	ctx = ensureContext(ctx)

	key := cache.WorkspaceAnalyticsKey(workspaceID)
	if s.cache != nil {
		if payload, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var cached InvitationAnalytics
			if err := json.Unmarshal(payload, &cached); err == nil {
				metrics.CacheRequests.WithLabelValues("hit").Inc()
				return &cached, nil
			}
		} else if err != nil {
			s.log.Debug("analytics cache read failed", zap.Error(err))
		}
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	}

	analytics, err := s.computeAnalytics(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(analytics); err == nil {
			if err := s.cache.Set(ctx, key, payload, cache.AnalyticsTTL); err != nil {
				s.log.Debug("analytics cache write failed", zap.Error(err))
			}
		}
	}

	return analytics, nil
}

func (s *InvitationService) computeAnalytics(ctx context.Context, workspaceID string) (*InvitationAnalytics, error) {
	now := s.now()

	var counts struct {
		Total     int64
		Pending   int64
		Accepted  int64
		Declined  int64
		Cancelled int64
		Expired   int64
	}

	// Lazy expiry applied in the query: pending rows past expiry count as
	// expired without touching the stored status.
	err := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Select(`
			COUNT(*) AS total,
			SUM(CASE WHEN status = 'pending' AND expires_at >= ? THEN 1 ELSE 0 END) AS pending,
			SUM(CASE WHEN status = 'accepted' THEN 1 ELSE 0 END) AS accepted,
			SUM(CASE WHEN status = 'declined' THEN 1 ELSE 0 END) AS declined,
			SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END) AS cancelled,
			SUM(CASE WHEN status = 'expired' OR (status = 'pending' AND expires_at < ?) THEN 1 ELSE 0 END) AS expired`,
			now, now).
		Where("workspace_id = ?", workspaceID).
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: analytics counts: %w", err)
	}

	byRole, err := s.countGrouped(ctx, workspaceID, "role")
	if err != nil {
		return nil, err
	}
	byDepartment, err := s.countGrouped(ctx, workspaceID, "department")
	if err != nil {
		return nil, err
	}

	analytics := &InvitationAnalytics{
		Total:        counts.Total,
		Pending:      counts.Pending,
		Accepted:     counts.Accepted,
		Declined:     counts.Declined,
		Cancelled:    counts.Cancelled,
		Expired:      counts.Expired,
		ByRole:       byRole,
		ByDepartment: byDepartment,
	}

	// Acceptance rate rounded to one decimal; zero for an empty workspace.
	if counts.Total > 0 {
		rate := float64(counts.Accepted) / float64(counts.Total) * 100
		analytics.AcceptanceRate = math.Round(rate*10) / 10
	}

	return analytics, nil
}

func (s *InvitationService) countGrouped(ctx context.Context, workspaceID, column string) (map[string]int64, error) {
	var rows []struct {
		Key   string
		Count int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.WorkspaceInvitation{}).
		Select(column+" AS key, COUNT(*) AS count").
		Where("workspace_id = ? AND "+column+" <> ''", workspaceID).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("invitation service: analytics by %s: %w", column, err)
	}

	grouped := make(map[string]int64, len(rows))
	for _, row := range rows {
		grouped[row.Key] = row.Count
	}
	return grouped, nil
}
