// Package reconcile runs one incremental pass over the master list: it picks
// the records that still need checking, checks them concurrently and merges
// the fresh results with the carried-forward ones in master order.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rcsync/internal/domain"
	"rcsync/internal/extract"
)

const (
	DefaultWorkers = 10
	MaxWorkers     = 64
)

type Fetcher interface {
	Fetch(ctx context.Context, recordID string) ([]byte, error)
}

// Progress is emitted once per completed record, from a single goroutine.
type Progress struct {
	N              int
	Total          int
	Classification domain.Classification
	Err            error
}

type ProgressFunc func(Progress)

type Config struct {
	Policy     Policy
	Period     domain.ReportingPeriod
	Workers    int
	Fetcher    Fetcher
	Extractor  extract.Extractor
	OnProgress ProgressFunc
	Now        func() time.Time
}

type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("reconcile: fetcher is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("reconcile: extractor is required")
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers < 1 || cfg.Workers > MaxWorkers {
		return nil, fmt.Errorf("reconcile: workers must be between 1 and %d, got %d", MaxWorkers, cfg.Workers)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}, nil
}

// Plan is the split of the master list for one run.
type Plan struct {
	Work    []domain.Record
	Carried map[string]domain.Classification
}

// Plan carries a record forward iff it has a prior classification whose
// status the policy treats as resolved. Records without an id are ignored
// and repeated ids are planned once.
func (e *Engine) Plan(records []domain.Record, prior domain.ResultSet) Plan {
	priorByID := prior.Index()
	plan := Plan{Carried: make(map[string]domain.Classification)}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if c, ok := priorByID[r.ID]; ok && e.cfg.Policy.IsResolved(c.Status) {
			plan.Carried[r.ID] = c
			continue
		}
		plan.Work = append(plan.Work, r)
	}
	return plan
}

type Outcome struct {
	Results  domain.ResultSet
	Checked  int
	Carried  int
	Failed   int
	Fresh    []domain.Classification
	Counts   map[domain.Status]int
	Policy   Policy
	Period   domain.ReportingPeriod
	Started  time.Time
	Finished time.Time
}

type checkResult struct {
	classification domain.Classification
	err            error
}

// Run checks the working set and returns the merged result set. A cancelled
// context aborts the run with no results, so callers never persist a
// partially checked snapshot.
func (e *Engine) Run(ctx context.Context, records []domain.Record, prior domain.ResultSet) (Outcome, error) {
	out := Outcome{Policy: e.cfg.Policy, Period: e.cfg.Period, Started: e.cfg.Now()}
	plan := e.Plan(records, prior)

	fresh, failed := e.check(ctx, plan.Work)
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	out.Results = Merge(records, fresh, plan.Carried)
	out.Checked = len(plan.Work)
	out.Carried = len(plan.Carried)
	out.Failed = failed
	out.Counts = out.Results.CountByStatus()
	for _, r := range plan.Work {
		out.Fresh = append(out.Fresh, fresh[r.ID])
	}
	out.Finished = e.cfg.Now()
	return out, nil
}

// check fans the working set out to a bounded pool and fans the results in
// through one collector goroutine, which owns the progress count and map.
func (e *Engine) check(ctx context.Context, work []domain.Record) (map[string]domain.Classification, int) {
	fresh := make(map[string]domain.Classification, len(work))
	if len(work) == 0 {
		return fresh, 0
	}

	results := make(chan checkResult, e.cfg.Workers)
	done := make(chan int)
	go func() {
		n, failed := 0, 0
		for res := range results {
			n++
			if res.err != nil {
				failed++
			}
			fresh[res.classification.ID] = res.classification
			if e.cfg.OnProgress != nil {
				e.cfg.OnProgress(Progress{N: n, Total: len(work), Classification: res.classification, Err: res.err})
			}
		}
		done <- failed
	}()

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for _, r := range work {
		r := r
		g.Go(func() error {
			results <- e.checkOne(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	return fresh, <-done
}

func (e *Engine) checkOne(ctx context.Context, r domain.Record) checkResult {
	body, err := e.cfg.Fetcher.Fetch(ctx, r.ID)
	if err != nil {
		return checkResult{classification: domain.NewClassification(r, domain.StatusUnknown, ""), err: err}
	}
	res := e.cfg.Extractor.Extract(body, e.cfg.Period)
	return checkResult{classification: domain.NewClassification(r, res.Status, res.Quantity)}
}

// Merge rebuilds the result set in master order from fresh and carried
// classifications. Each non-empty id appears once, at its first position.
func Merge(records []domain.Record, fresh, carried map[string]domain.Classification) domain.ResultSet {
	out := make(domain.ResultSet, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		if c, ok := fresh[r.ID]; ok {
			out = append(out, c)
			seen[r.ID] = true
			continue
		}
		if c, ok := carried[r.ID]; ok {
			out = append(out, c)
			seen[r.ID] = true
		}
	}
	return out
}
