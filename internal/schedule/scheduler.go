package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs jobs on five-field cron specs. A tick that fires while
// the previous run of the same job is still going is skipped.
type CronScheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	runner := &guardedRun{job: job, spec: spec, ctx: c.context}
	id, err := c.cron.AddFunc(spec, func() { runner.run() })
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", name, spec, err)
	}
	c.entries[name] = id
	logutil.GetLogger(c.ctx).Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Next reports when the named job fires next. Zero before Start.
func (c *CronScheduler) Next(name string) time.Time {
	c.mu.Lock()
	id, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return c.cron.Entry(id).Next
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	c.cron.Start()
}

// Stop waits for running jobs to return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

type guardedRun struct {
	job     Job
	spec    string
	ctx     func() context.Context
	running atomic.Bool
}

// run reports whether the job actually ran.
func (g *guardedRun) run() bool {
	ctx := g.ctx()
	logger := logutil.GetLogger(ctx).With(zap.String("job", g.job.Name()), zap.String("spec", g.spec))
	if !g.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return false
	}
	defer g.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	if err := g.job.Run(ctx); err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return true
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
	return true
}
