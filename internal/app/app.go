// Package app wires configuration into a runnable reconciliation service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rcsync/internal/config"
	"rcsync/internal/domain"
	"rcsync/internal/extract"
	"rcsync/internal/fetch"
	"rcsync/internal/history"
	"rcsync/internal/httpx"
	"rcsync/internal/logger"
	"rcsync/internal/metrics"
	"rcsync/internal/notify"
	"rcsync/internal/reconcile"
	"rcsync/internal/scheduler"
	"rcsync/internal/source"
	"rcsync/internal/store"
)

type App struct {
	cfg       config.Config
	log       logger.Logger
	source    source.Source
	store     store.Store
	fetcher   *fetch.Fetcher
	extractor extract.Extractor
	policy    reconcile.Policy
	history   *history.DB
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{cfg: cfg, log: log, metrics: metrics.New(), notifier: notify.Nop{}, now: time.Now}

	policy, err := cfg.ResolvedPolicy()
	if err != nil {
		return nil, err
	}
	a.policy = policy

	a.extractor, err = extract.New(cfg.ExtractStrategy, cfg.ExtractOptions())
	if err != nil {
		return nil, err
	}

	client := httpx.NewExternalHTTPClient(httpx.ClientConfig{
		Timeout:         httpx.TimeoutFromSeconds(cfg.FetchTimeoutSeconds, fetch.DefaultTimeout),
		UserAgent:       cfg.UserAgent,
		MaxConnsPerHost: cfg.Workers,
	})
	a.fetcher, err = fetch.New(client, cfg.StatusURLTemplate,
		fetch.WithTimeout(httpx.TimeoutFromSeconds(cfg.FetchTimeoutSeconds, fetch.DefaultTimeout)),
		fetch.WithObserver(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	a.store, err = store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}

	sourceClient := httpx.NewExternalHTTPClient(httpx.ClientConfig{
		Timeout:   httpx.TimeoutFromSeconds(cfg.SourceTimeoutSeconds, source.DefaultTimeout),
		UserAgent: cfg.UserAgent,
	})
	a.source, err = source.New(cfg.SourceConfig(), sourceClient, a.store)
	if err != nil {
		return nil, err
	}

	if cfg.HistoryEnabled() {
		a.history, err = history.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening history %s: %w", cfg.DBPath, err)
		}
	}

	if sn := notify.NewSlack(cfg.SlackBotToken, cfg.ReportChannelID); sn != nil {
		a.notifier = sn
	}

	log.Info("Config loaded",
		logger.String("source", a.source.Describe()),
		logger.String("store", a.store.Describe()),
		logger.String("policy", policy.String()),
		logger.String("strategy", cfg.ExtractStrategy),
		logger.Int("workers", cfg.Workers),
		logger.String("timezone", cfg.Location.String()),
		logger.Bool("history", a.history != nil),
		logger.Bool("slack", cfg.SlackConfigured()),
	)
	return a, nil
}

func (a *App) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}

func (a *App) History() *history.DB      { return a.history }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// RunOnce performs one reconciliation run. It fails only when the master
// list cannot be obtained, the run is cancelled, or the snapshot cannot be
// saved. History, metrics and Slack problems are logged.
func (a *App) RunOnce(ctx context.Context) (reconcile.Outcome, error) {
	records, err := a.source.Fetch(ctx)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	a.log.Info("Master list loaded", logger.Int("records", len(records)), logger.String("source", a.source.Describe()))

	prior := a.loadPrior(ctx)

	period := a.cfg.Period(a.now())
	engine, err := reconcile.New(reconcile.Config{
		Policy:     a.policy,
		Period:     period,
		Workers:    a.cfg.Workers,
		Fetcher:    a.fetcher,
		Extractor:  a.extractor,
		OnProgress: a.logProgress,
		Now:        a.now,
	})
	if err != nil {
		return reconcile.Outcome{}, err
	}

	plan := engine.Plan(records, prior)
	a.log.Info("Run planned",
		logger.String("period", period.String()),
		logger.String("policy", a.policy.String()),
		logger.Int("to_check", len(plan.Work)),
		logger.Int("carried", len(plan.Carried)),
	)

	out, err := engine.Run(ctx, records, prior)
	if err != nil {
		return reconcile.Outcome{}, fmt.Errorf("run aborted: %w", err)
	}

	if err := a.store.Save(ctx, out.Results); err != nil {
		return out, err
	}
	a.log.Info("Snapshot saved", logger.String("store", a.store.Describe()), logger.Int("records", len(out.Results)))

	a.recordHistory(ctx, out)
	a.metrics.ObserveRun(out.Fresh, out.Carried, out.Finished)

	summary := reconcile.FormatSummary(out)
	a.log.Info(summary,
		logger.Int("checked", out.Checked),
		logger.Int("carried", out.Carried),
		logger.Int("failed", out.Failed),
		logger.Duration("took", out.Finished.Sub(out.Started)),
	)
	if err := a.notifier.Notify(ctx, summary); err != nil {
		a.log.Warn("Slack summary not posted", logger.Error(err))
	}
	return out, nil
}

func (a *App) loadPrior(ctx context.Context) domain.ResultSet {
	prior, err := a.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.log.Info("No previous snapshot, checking every record", logger.String("store", a.store.Describe()))
		return nil
	case err != nil:
		a.log.Warn("Previous snapshot unreadable, treating as empty", logger.String("store", a.store.Describe()), logger.Error(err))
		return nil
	}
	a.log.Info("Previous snapshot loaded", logger.Int("records", len(prior)))
	return prior
}

func (a *App) logProgress(p reconcile.Progress) {
	fields := []logger.Field{
		logger.String("card_no", p.Classification.ID),
		logger.String("status", string(p.Classification.Status)),
	}
	if p.Err != nil {
		a.log.Warn(reconcile.FormatProgress(p), append(fields, logger.Error(p.Err))...)
		return
	}
	a.log.Info(reconcile.FormatProgress(p), fields...)
}

func (a *App) recordHistory(ctx context.Context, out reconcile.Outcome) {
	if a.history == nil {
		return
	}
	run := history.Run{
		ID:         history.NewRunID(),
		StartedAt:  out.Started,
		FinishedAt: out.Finished,
		Policy:     out.Policy.Name,
		Period:     out.Period.String(),
		Total:      len(out.Results),
		Checked:    out.Checked,
		Carried:    out.Carried,
		Failed:     out.Failed,
		Done:       out.Counts[domain.StatusDone],
		NotDone:    out.Counts[domain.StatusNotDone],
		Unknown:    out.Counts[domain.StatusUnknown],
	}
	if err := a.history.RecordRun(ctx, run, out.Fresh); err != nil {
		a.log.Warn("Run history not recorded", logger.Error(err))
		return
	}
	a.log.Debug("Run history recorded", logger.String("run_id", run.ID))
}

// Schedule repeats RunOnce on run_schedule until ctx is done, serving
// /metrics on metrics_addr when set.
func (a *App) Schedule(ctx context.Context) error {
	if a.cfg.RunSchedule == "" {
		return errors.New("run_schedule is not set")
	}
	sched, err := scheduler.New(a.cfg.RunSchedule, a.cfg.Location, a.log)
	if err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		srv := a.metricsServer()
		go func() {
			a.log.Info("Serving metrics", logger.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Metrics server stopped", logger.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = sched.Run(ctx, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
