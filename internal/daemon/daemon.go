// Package daemon wires the full service together: source monitors feeding
// the event bus, the dispatcher draining it, the SLA tracker on its
// evaluation cadence, the snapshot writer, and the webhook HTTP server.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/RevCBH/vigil/internal/bizhours"
	"github.com/RevCBH/vigil/internal/config"
	"github.com/RevCBH/vigil/internal/dispatch"
	"github.com/RevCBH/vigil/internal/escalate"
	"github.com/RevCBH/vigil/internal/event"
	"github.com/RevCBH/vigil/internal/responder"
	"github.com/RevCBH/vigil/internal/sla"
	"github.com/RevCBH/vigil/internal/snapshot"
	"github.com/RevCBH/vigil/internal/source"
	"github.com/RevCBH/vigil/internal/store"
)

// Daemon is the long-running service coordinator.
type Daemon struct {
	cfg      *config.Config
	log      *zap.Logger
	cal      bizhours.Calendar
	store    *store.Store
	bus      *event.Bus
	monitors map[event.Source]*source.Monitor
	disp     *dispatch.Dispatcher
	tracker  *sla.Tracker
	snaps    *snapshot.Writer
	registry *prometheus.Registry
	pidFile  *PIDFile
	server   *http.Server

	evalInterval   time.Duration
	dedupRetention time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// The dispatcher outlives the producer context: it exits by draining
	// the closed bus, so it gets its own lifetime.
	dispCancel context.CancelFunc
	dispWg     sync.WaitGroup
}

// Opts configures a Daemon. Only Config is required; everything else has a
// config-driven default.
type Opts struct {
	Config *config.Config

	// Adapters overrides the bridge adapters built from config endpoints.
	Adapters map[event.Source]source.Adapter

	// Responder overrides the reasoning engine built from config.
	Responder responder.Responder

	// PIDPath overrides the PID file location (default: DBPath + ".pid").
	PIDPath string

	Logger *zap.Logger
}

// New builds a daemon from validated config. Nothing starts running until
// Start is called.
func New(opts Opts) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cal, err := cfg.Calendar.Build()
	if err != nil {
		return nil, fmt.Errorf("building calendar: %w", err)
	}
	thresholds, err := cfg.SLA.Build()
	if err != nil {
		return nil, fmt.Errorf("building thresholds: %w", err)
	}
	evalInterval, err := cfg.SLA.IntervalDuration()
	if err != nil {
		return nil, fmt.Errorf("parsing evaluation interval: %w", err)
	}

	adapters := opts.Adapters
	if adapters == nil {
		adapters = adaptersFromConfig(cfg)
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no sources configured: every source needs an endpoint or an injected adapter")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	d := &Daemon{
		cfg:            cfg,
		log:            log,
		cal:            cal,
		store:          st,
		bus:            event.NewBus(256),
		monitors:       make(map[event.Source]*source.Monitor),
		registry:       prometheus.NewRegistry(),
		evalInterval:   evalInterval,
		dedupRetention: time.Duration(cfg.DedupRetentionDays) * 24 * time.Hour,
	}

	for src, adapter := range adapters {
		srcCfg := sourceConfigFor(cfg, src)
		interval, err := srcCfg.IntervalDuration()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("source %s: %w", src, err)
		}
		d.monitors[src] = source.NewMonitor(source.MonitorOpts{
			Source:   src,
			Adapter:  adapter,
			Store:    st,
			Bus:      d.bus,
			Log:      log,
			Interval: interval,
			Mention:  cfg.BotHandle,
		})
	}

	resp := opts.Responder
	if resp == nil {
		timeout, err := cfg.Responder.TimeoutDuration()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("parsing responder timeout: %w", err)
		}
		resp = responder.NewCLIResponderWithBinary(cfg.Responder.Command, timeout)
	}

	d.disp, err = dispatch.New(dispatch.Opts{
		Bus:       d.bus,
		Responder: resp,
		Adapters:  adapters,
		DryRun:    cfg.DryRun,
		Metrics:   dispatch.NewMetrics(d.registry),
		Logger:    log,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building dispatcher: %w", err)
	}

	// Escalation posts land on tickets or pull requests, so the tracker
	// only runs when a poster for at least one kind exists.
	posters := make(map[source.WorkItemKind]source.Adapter)
	if a, ok := adapters[event.SourceTracker]; ok {
		posters[source.KindTicket] = a
	}
	if a, ok := adapters[event.SourceCodeReview]; ok {
		posters[source.KindPullRequest] = a
	}
	if len(posters) > 0 {
		notifier, err := escalate.FromConfig(escalate.Config{
			Backends:     cfg.Escalation.Backends,
			SlackWebhook: cfg.Escalation.SlackWebhook,
			WebhookURL:   cfg.Escalation.WebhookURL,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("building notifier: %w", err)
		}
		exec, err := escalate.NewExecutor(escalate.ExecutorOpts{
			Posters:           posters,
			Notifier:          notifier,
			Roster:            cfg.Roster,
			EscalationContact: cfg.Escalation.EscalationContact,
			LeadershipContact: cfg.Escalation.LeadershipContact,
			DryRun:            cfg.DryRun,
			Logger:            log,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		d.tracker, err = sla.NewTracker(sla.TrackerOpts{
			Store:      st,
			Calendar:   cal,
			Thresholds: thresholds,
			Executor:   exec,
			Adapters:   trackableAdapters(adapters),
			Logger:     log,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		d.snaps = snapshot.NewWriter(st, log)
	} else {
		log.Warn("SLA tracking disabled: no tracker or codereview source configured")
	}

	pidPath := opts.PIDPath
	if pidPath == "" {
		pidPath = cfg.DBPath + ".pid"
	}
	d.pidFile = NewPIDFile(pidPath)

	d.server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: d.router(),
	}
	return d, nil
}

// adaptersFromConfig builds bridge adapters for every enabled source with
// an endpoint.
func adaptersFromConfig(cfg *config.Config) map[event.Source]source.Adapter {
	adapters := make(map[event.Source]source.Adapter)
	for src, sc := range map[event.Source]config.SourceConfig{
		event.SourceTracker:    cfg.Sources.Tracker,
		event.SourceChat:       cfg.Sources.Chat,
		event.SourceCodeReview: cfg.Sources.CodeReview,
	} {
		if sc.Enabled && sc.Endpoint != "" {
			adapters[src] = source.NewRESTAdapter(src, sc.Endpoint, sc.Token)
		}
	}
	return adapters
}

func sourceConfigFor(cfg *config.Config, src event.Source) config.SourceConfig {
	switch src {
	case event.SourceTracker:
		return cfg.Sources.Tracker
	case event.SourceCodeReview:
		return cfg.Sources.CodeReview
	default:
		return cfg.Sources.Chat
	}
}

// trackableAdapters narrows to the sources that expose live work-item
// state; chat has nothing to evaluate SLAs against.
func trackableAdapters(adapters map[event.Source]source.Adapter) map[event.Source]source.Adapter {
	out := make(map[event.Source]source.Adapter)
	for src, a := range adapters {
		if src == event.SourceTracker || src == event.SourceCodeReview {
			out[src] = a
		}
	}
	return out
}

// PollOnce runs one poll cycle on every monitor and dispatches whatever the
// cycle produced. Used by the one-shot CLI path; the daemon loop never
// calls it.
func (d *Daemon) PollOnce(ctx context.Context) (int, error) {
	var total int
	var firstErr error
	for src, m := range d.monitors {
		n, err := m.PollOnce(ctx)
		total += n
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("polling %s: %w", src, err)
		}
	}

	var batch []event.Event
	for {
		select {
		case e := <-d.bus.Events():
			batch = append(batch, e)
			continue
		default:
		}
		break
	}
	d.disp.DispatchBatch(ctx, batch)
	return total, firstErr
}

// EvaluateOnce runs one SLA evaluation pass followed by the daily snapshot
// attempt. Used by the one-shot CLI path.
func (d *Daemon) EvaluateOnce(ctx context.Context) (sla.Summary, error) {
	if d.tracker == nil {
		return sla.Summary{}, fmt.Errorf("SLA tracking disabled: no tracker or codereview source configured")
	}
	sum, err := d.tracker.EvaluatePass(ctx)
	if err != nil {
		return sum, err
	}
	if _, err := d.snaps.WriteDaily(); err != nil {
		return sum, fmt.Errorf("writing snapshot: %w", err)
	}
	return sum, nil
}

// Store exposes the state store for read-only CLI commands.
func (d *Daemon) Store() *store.Store {
	return d.store
}

// Close releases resources without a full Start/Stop cycle. For one-shot
// commands that never acquired the PID file or started the server.
func (d *Daemon) Close() error {
	d.bus.Close()
	return d.store.Close()
}

// Start launches all tasks. Non-blocking; call Stop to shut down.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.pidFile.Acquire(); err != nil {
		return fmt.Errorf("acquiring PID file: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for src, m := range d.monitors {
		d.wg.Add(1)
		go func(src event.Source, m *source.Monitor) {
			defer d.wg.Done()
			d.log.Info("monitor started", zap.String("source", string(src)))
			m.Run(runCtx)
		}(src, m)
	}

	dispCtx, dispCancel := context.WithCancel(context.WithoutCancel(ctx))
	d.dispCancel = dispCancel
	d.dispWg.Add(1)
	go func() {
		defer d.dispWg.Done()
		if err := d.disp.Run(dispCtx); err != nil && dispCtx.Err() == nil {
			d.log.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	if d.tracker != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.slaLoop(runCtx)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.heartbeatLoop(runCtx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.compactionLoop(runCtx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.log.Info("webhook server listening", zap.String("addr", d.server.Addr))
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.Error("webhook server stopped", zap.Error(err))
		}
	}()

	d.log.Info("daemon started",
		zap.Int("monitors", len(d.monitors)),
		zap.Bool("sla_tracking", d.tracker != nil),
		zap.Bool("dry_run", d.cfg.DryRun))
	return nil
}

// slaLoop runs one evaluation pass immediately, then on the configured
// cadence. Each pass is followed by the daily snapshot attempt.
func (d *Daemon) slaLoop(ctx context.Context) {
	d.runEvaluation(ctx)
	ticker := time.NewTicker(d.evalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runEvaluation(ctx)
		}
	}
}

func (d *Daemon) runEvaluation(ctx context.Context) {
	sum, err := d.tracker.EvaluatePass(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.log.Error("SLA evaluation pass failed", zap.Error(err))
		}
		return
	}
	d.log.Info("SLA evaluation pass complete",
		zap.Int("evaluated", sum.Evaluated),
		zap.Int("created", sum.Created),
		zap.Int("escalated", sum.Escalated),
		zap.Int("resolved", sum.Resolved))

	if _, err := d.snaps.WriteDaily(); err != nil {
		d.log.Warn("daily snapshot failed", zap.Error(err))
	}
}

// heartbeatLoop logs an hourly liveness line, but only during business
// hours so overnight logs stay quiet.
func (d *Daemon) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !d.cal.Contains(now) {
				continue
			}
			open, err := d.store.OpenViolations()
			if err != nil {
				d.log.Warn("heartbeat status query failed", zap.Error(err))
				continue
			}
			d.log.Info("heartbeat", zap.Int("open_violations", len(open)))
		}
	}
}

// compactionLoop sweeps expired dedup marks once a day.
func (d *Daemon) compactionLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := d.store.CompactDedup(now.Add(-d.dedupRetention))
			if err != nil {
				d.log.Warn("dedup compaction failed", zap.Error(err))
				continue
			}
			d.log.Info("dedup marks compacted", zap.Int64("removed", n))
		}
	}
}

// Stop shuts everything down in dependency order: stop the producers
// first, then close the bus and wait for the dispatcher to drain it.
// Every event on the bus has its dedup key marked already, so nothing may
// be released until each has been attempted.
func (d *Daemon) Stop() {
	d.log.Info("shutting down")
	if d.cancel != nil {
		d.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.log.Warn("webhook server shutdown", zap.Error(err))
	}

	d.wg.Wait()
	d.bus.Close()
	d.dispWg.Wait()
	if d.dispCancel != nil {
		d.dispCancel()
	}
	if err := d.store.Close(); err != nil {
		d.log.Warn("closing store", zap.Error(err))
	}
	if err := d.pidFile.Release(); err != nil {
		d.log.Warn("releasing PID file", zap.Error(err))
	}
	d.log.Info("shutdown complete")
}
