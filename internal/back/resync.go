package back

import (
	"context"
	"fmt"
	"log/slog"

	robfigcron "github.com/robfig/cron/v3"
)

// specParser accepts standard five-field expressions and descriptors such as
// "@every 30s" or "@hourly".
var specParser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor,
)

// Resync republishes the snapshot on a cron schedule so a front that missed
// every publish still converges without a new submission.
type Resync struct {
	spec      string
	schedule  robfigcron.Schedule
	publisher *Publisher
}

// NewResync parses spec. An empty spec yields a disabled Resync whose Start
// just waits for ctx.
func NewResync(spec string, p *Publisher) (*Resync, error) {
	r := &Resync{spec: spec, publisher: p}
	if spec == "" {
		return r, nil
	}
	sched, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("resync: invalid schedule %q: %w", spec, err)
	}
	r.schedule = sched
	return r, nil
}

// Enabled reports whether a schedule is configured.
func (r *Resync) Enabled() bool { return r.schedule != nil }

// Start runs the schedule until ctx is cancelled.
func (r *Resync) Start(ctx context.Context) error {
	if !r.Enabled() {
		slog.Debug("resync: disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	c := robfigcron.New()
	c.Schedule(r.schedule, robfigcron.FuncJob(func() { r.tick(ctx) }))
	c.Start()
	slog.Info("resync: started", "schedule", r.spec)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("resync: stopped")
	return ctx.Err()
}

func (r *Resync) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.publisher.Publish(ctx); err != nil {
		slog.Error("resync: publish failed", "err", err)
	}
}
