package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"amv-gen/internal/logging"
)

type Service struct {
	janitor *Janitor
	log     *logging.Logger
	cron    *cron.Cron
	ctx     context.Context
}

// NewService schedules janitor sweeps. schedule uses the six-field cron
// syntax with seconds first.
func NewService(j *Janitor, schedule string, log *logging.Logger) (*Service, error) {
	if log == nil {
		log = logging.Discard()
	}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Service{janitor: j, log: log, cron: c, ctx: context.Background()}

	if _, err := c.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Service) sweep() {
	if _, err := s.janitor.Sweep(s.ctx, time.Now()); err != nil {
		s.log.Error(fmt.Errorf("janitor: sweep: %w", err))
	}
}

// Run sweeps once immediately, then on schedule until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.ctx = ctx
	s.sweep()
	s.cron.Start()

	<-ctx.Done()

	ctxStop := s.cron.Stop()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("cron stop timeout")
	}
}
