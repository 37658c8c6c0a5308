package feeds

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	appLog "propsync/internal/log"
)

// Syncer is the part of Manager the scheduler drives.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// Scheduler runs SyncAll on a standard five-field cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	spec    string
	timeout time.Duration
}

// NewScheduler validates spec (e.g. "*/15 * * * *") and builds a stopped
// scheduler evaluated in loc.
func NewScheduler(spec string, syncer Syncer, loc *time.Location) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, errors.Wrapf(err, "invalid sync schedule %q", spec)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		syncer:  syncer,
		spec:    spec,
		timeout: 2 * time.Minute,
	}, nil
}

// Start registers the sync job and starts the cron loop. It returns once the
// loop is running; the loop stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return errors.Wrap(err, "register sync job")
	}
	s.cron.Start()
	appLog.Info("feed sync scheduled", "cron", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce performs one bounded SyncAll and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.syncer.SyncAll(ctx); err != nil {
		appLog.Error("scheduled feed sync finished with errors", err, "elapsed", time.Since(start).String())
		return
	}
	appLog.Debug("scheduled feed sync finished", "elapsed", time.Since(start).String())
}

// Stop halts the cron loop and waits for a running sync to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
