package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a single job on a cron schedule. The expression is
// validated up front; a failing run is logged and the schedule keeps
// going.
type Scheduler struct {
	cron *cron.Cron
}

// New prepares a scheduler that invokes job on the given standard
// five-field cron expression.
func New(spec string, job func() error) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := job(); err != nil {
			slog.Error("Scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start begins the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
