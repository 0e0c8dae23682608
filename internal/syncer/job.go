package syncer

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job reconciles a fixed path list on every scheduler tick.
type Job struct {
	engine *Engine
	paths  []string
}

func NewJob(engine *Engine, paths []string) *Job {
	return &Job{engine: engine, paths: paths}
}

func (j *Job) Name() string {
	return "document_sync"
}

func (j *Job) Run(ctx context.Context) error {
	if j.engine == nil || len(j.paths) == 0 {
		return nil
	}
	results, err := j.engine.ReconcileAll(ctx, j.paths)
	counts := make(map[Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	logutil.GetLogger(ctx).Info("sync round done",
		zap.Int("paths", len(j.paths)),
		zap.Int("created", counts[OutcomeCreated]),
		zap.Int("applied", counts[OutcomeRemoteApplied]),
		zap.Int("kept", counts[OutcomeLocalKept]),
		zap.Int("unchanged", counts[OutcomeUnchanged]),
		zap.Int("conflicts", counts[OutcomeConflict]),
	)
	return err
}
