package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

// StageRecord is the summary row the harness emits to the record sink after
// each accepted result.
type StageRecord struct {
	RunID            string
	StageNumber      int
	Stage            string
	Vis              string
	Status           Status
	QAScore          float64
	Err              string
	StartedUnixNanos int64
	EndedUnixNanos   int64
}

// RecordSink receives stage records. The sqlite ledger implements it; tests
// use an in-memory collector.
type RecordSink interface {
	RecordStage(rec StageRecord) error
}

// Executor runs a recipe against a Context: resolve stage, fan out over
// datasets where the stage asks for it, fold results back in serially.
type Executor struct {
	Engine   engine.Engine
	Registry *Registry
	Clock    timeutil.Clock

	// Workers bounds the per-dataset fan-out of single-vis stages.
	// Values below 1 mean serial execution.
	Workers int

	// ContinueOnError keeps the run going after a failed stage. The
	// default is to halt: later stages usually consume the failed stage's
	// Context mutations.
	ContinueOnError bool

	// Sink, when set, receives a record per accepted result.
	Sink RecordSink
}

// Execute runs the recipe to completion. Each accepted Result (and its
// Context mutations) is a precondition for the next stage, so steps run
// strictly in order; only the per-dataset replication inside one step is
// concurrent.
func (e *Executor) Execute(ctx context.Context, pc *Context, rec *Recipe) error {
	if err := rec.Validate(e.Registry); err != nil {
		return err
	}
	clock := e.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	opsf("run %s: executing recipe %q (%d steps)", pc.RunID, rec.Name, len(rec.Stages))

	for i, call := range rec.Stages {
		stage, err := e.Registry.Lookup(call.Stage)
		if err != nil {
			return err
		}

		env := &Env{Engine: e.Engine, Context: pc, Clock: clock, Params: call.Params}

		diagf("run %s step %d/%d: %s", pc.RunID, i+1, len(rec.Stages), call.Stage)
		results, err := e.runStage(ctx, stage, env, pc)
		if err != nil {
			return fmt.Errorf("stage %s: %w", call.Stage, err)
		}

		failed := false
		for _, res := range results {
			if err := pc.AcceptResult(res); err != nil {
				return err
			}
			if err := e.record(pc, res); err != nil {
				opsf("run %s: record sink error for stage %s: %v", pc.RunID, res.Stage, err)
			}
			if res.Failed() {
				failed = true
				opsf("run %s stage %s failed on %v: %s", pc.RunID, res.Stage, res.Vis, res.Err)
			}
		}

		if call.Checkpoint {
			if _, err := pc.Save(); err != nil {
				return err
			}
		}

		if failed && !e.ContinueOnError {
			return fmt.Errorf("stage %s failed, halting run %s", call.Stage, pc.RunID)
		}
	}
	return nil
}

// runStage executes one recipe step, replicating single-vis stages over
// every dataset in the run. Results come back in dataset order regardless of
// completion order, so acceptance stays deterministic.
func (e *Executor) runStage(ctx context.Context, stage Stage, env *Env, pc *Context) ([]*Result, error) {
	if !stage.PerMS() || len(pc.Run.MeasurementSets) == 0 {
		res, err := e.invoke(ctx, stage, env, nil)
		if err != nil {
			return nil, err
		}
		return []*Result{res}, nil
	}

	sets := pc.Run.MeasurementSets
	results := make([]*Result, len(sets))

	g, gctx := errgroup.WithContext(ctx)
	if e.Workers > 1 {
		g.SetLimit(e.Workers)
	} else {
		g.SetLimit(1)
	}

	for i, ms := range sets {
		g.Go(func() error {
			res, err := e.invoke(gctx, stage, env, ms)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// invoke runs a single stage invocation. A stage error becomes a failure
// Result rather than aborting the whole step, so sibling datasets finish
// and the failure is recorded like any other outcome.
func (e *Executor) invoke(ctx context.Context, stage Stage, env *Env, ms *domain.MeasurementSet) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clock := env.Clock
	started := clock.Now().UnixNano()

	if ms != nil {
		tracef("invoking %s on %s", stage.Name(), ms.Name)
	} else {
		tracef("invoking %s on full run", stage.Name())
	}

	res, err := stage.Run(ctx, env, ms)
	if err != nil {
		res = &Result{
			Stage:  stage.Name(),
			Status: StatusFailure,
			Err:    err.Error(),
		}
		if ms != nil {
			res.Vis = []string{ms.Name}
		}
	}
	if res.StartedUnixNanos == 0 {
		res.StartedUnixNanos = started
	}
	if res.EndedUnixNanos == 0 {
		res.EndedUnixNanos = clock.Now().UnixNano()
	}
	if res.Status == "" {
		res.Status = StatusSuccess
	}
	return res, nil
}

func (e *Executor) record(pc *Context, res *Result) error {
	if e.Sink == nil {
		return nil
	}
	vis := ""
	if len(res.Vis) == 1 {
		vis = res.Vis[0]
	} else if len(res.Vis) > 1 {
		vis = fmt.Sprintf("%d datasets", len(res.Vis))
	}
	return e.Sink.RecordStage(StageRecord{
		RunID:            pc.RunID,
		StageNumber:      pc.StageCounter,
		Stage:            res.Stage,
		Vis:              vis,
		Status:           res.Status,
		QAScore:          res.MinQAScore(),
		Err:              res.Err,
		StartedUnixNanos: res.StartedUnixNanos,
		EndedUnixNanos:   res.EndedUnixNanos,
	})
}
