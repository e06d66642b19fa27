package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/internal/services"
	"github.com/camdenwatts/teamspace/pkg/logger"
)

const (
	defaultSchedule      = "@every 1h"
	defaultBatchStaleAge = time.Hour
)

// Cleaner runs the background maintenance jobs: persisting the expired status
// for overdue pending invitations, failing import batches that never
// finalised, and purging expired database cache entries.
//
// Reads apply expiry lazily as a pure function; this job is the only writer
// of the expired status.
type Cleaner struct {
	invitations *services.InvitationService
	cacheStore  *cache.DatabaseStore
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger

	schedule      string
	batchStaleAge time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the maintenance sweep.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithBatchStaleAge adjusts how long a processing batch may run before it is
// considered abandoned.
func WithBatchStaleAge(age time.Duration) Option {
	return func(cleaner *Cleaner) {
		if age > 0 {
			cleaner.batchStaleAge = age
		}
	}
}

// WithCacheStore attaches a database cache store whose expired rows are purged.
func WithCacheStore(store *cache.DatabaseStore) Option {
	return func(cleaner *Cleaner) {
		cleaner.cacheStore = store
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(invitations *services.InvitationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invitations:   invitations,
		now:           time.Now,
		schedule:      defaultSchedule,
		batchStaleAge: defaultBatchStaleAge,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the maintenance sweep with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.invitations == nil && c.cacheStore == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	now := c.now()
	var errs error

	if c.invitations != nil {
		expired, err := c.invitations.ExpireOverdue(ctx, now)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if expired > 0 {
			c.log.Info("expired overdue invitations", zap.Int64("count", expired))
		}

		stale, err := c.invitations.MarkStaleBatches(ctx, now.Add(-c.batchStaleAge))
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if stale > 0 {
			c.log.Warn("failed stale import batches", zap.Int64("count", stale))
		}
	}

	if c.cacheStore != nil {
		purged, err := c.cacheStore.PurgeExpired(ctx, now)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if purged > 0 {
			c.log.Debug("purged expired cache entries", zap.Int64("count", purged))
		}
	}

	return errs
}
