package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	meetingworkflow "agora/contexts/assembly-governance/meeting-workflow"
	workflowmemory "agora/contexts/assembly-governance/meeting-workflow/adapters/memory"
	workflowpostgres "agora/contexts/assembly-governance/meeting-workflow/adapters/postgres"
	workflowerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	workflowports "agora/contexts/assembly-governance/meeting-workflow/ports"
	motionvoting "agora/contexts/assembly-governance/motion-voting"
	votingmemory "agora/contexts/assembly-governance/motion-voting/adapters/memory"
	votingpostgres "agora/contexts/assembly-governance/motion-voting/adapters/postgres"
	votingcommands "agora/contexts/assembly-governance/motion-voting/application/commands"
	votingqueries "agora/contexts/assembly-governance/motion-voting/application/queries"
	votingworkers "agora/contexts/assembly-governance/motion-voting/application/workers"
	votingerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	votingports "agora/contexts/assembly-governance/motion-voting/ports"
	"agora/internal/platform/config"
	"agora/internal/platform/db"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/messaging"
	"agora/internal/shared/audit"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	auditRelay   votingworkers.AuditRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	bus := messaging.NewBus(logger)

	var (
		recorder      audit.Recorder
		pg            *db.Postgres
		voting        motionvoting.Module
		workflow      meetingworkflow.Module
		meetings      workflowports.MeetingRepository
		resetter      workflowports.DemoResetter
		workflowClock workflowports.Clock
		workflowIDGen workflowports.IDGenerator
	)

	if cfg.DemoMode {
		recorder = audit.Recorder{Journal: audit.NewMemoryJournal()}
		votingStore := votingmemory.NewStore(nil)
		workflowStore := workflowmemory.NewStore(nil)
		voting = motionvoting.NewModule(motionvoting.Dependencies{
			Motions:          votingStore,
			Ballots:          votingStore,
			Attendance:       votingStore,
			Proxies:          votingStore,
			Tokens:           votingStore,
			Casts:            votingStore,
			Closes:           votingStore,
			Meetings:         meetingReader{meetings: workflowStore},
			Policies:         votingStore,
			ManualTallies:    votingStore,
			Results:          votingStore,
			Idempotency:      votingStore,
			Audit:            recorder,
			Broadcast:        messaging.VotingBroadcaster{Bus: bus},
			Clock:            votingStore,
			IDGen:            votingStore,
			IdempotencyTTL:   cfg.IdempotencyTTL,
			MinOpenDuration:  cfg.MinOpenDuration,
			MinParticipation: cfg.MinParticipation,
			TokenTTL:         cfg.TokenTTL,
			QuorumThreshold:  cfg.QuorumThreshold,
			Logger:           logger,
		})
		voting.Store = votingStore
		meetings = workflowStore
		resetter = votingStore
		workflowClock = workflowStore
		workflowIDGen = workflowStore
	} else {
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		recorder = audit.Recorder{Journal: audit.NewPostgresJournal(pg.DB)}
		workflowRepo := workflowpostgres.NewRepository(pg.DB, cfg.TenantID, logger)
		votingRepo := votingpostgres.NewRepository(pg.DB, cfg.TenantID, logger)

		voting = motionvoting.NewModule(motionvoting.Dependencies{
			Motions:          votingRepo,
			Ballots:          votingRepo,
			Attendance:       votingRepo,
			Proxies:          votingRepo,
			Tokens:           votingRepo,
			Casts:            votingRepo,
			Closes:           votingRepo,
			Meetings:         meetingReader{meetings: workflowRepo},
			Policies:         votingRepo,
			ManualTallies:    votingRepo,
			Results:          votingRepo,
			Idempotency:      votingRepo,
			Audit:            recorder,
			Broadcast:        messaging.VotingBroadcaster{Bus: bus},
			Clock:            votingpostgres.SystemClock{},
			IDGen:            votingpostgres.UUIDGenerator{},
			IdempotencyTTL:   cfg.IdempotencyTTL,
			MinOpenDuration:  cfg.MinOpenDuration,
			MinParticipation: cfg.MinParticipation,
			TokenTTL:         cfg.TokenTTL,
			QuorumThreshold:  cfg.QuorumThreshold,
			Logger:           logger,
		})
		meetings = workflowRepo
		resetter = votingRepo
		workflowClock = workflowpostgres.SystemClock{}
		workflowIDGen = workflowpostgres.UUIDGenerator{}
	}

	workflow = meetingworkflow.NewModule(meetingworkflow.Dependencies{
		Meetings:      meetings,
		Motions:       motionStatusReader{motions: voting.Reports.Motions},
		Eligibility:   eligibilityReader{reports: voting.Reports},
		Consolidation: consolidator{consolidation: voting.Consolidation},
		Resetter:      resetter,
		Audit:         recorder,
		Broadcast:     messaging.WorkflowBroadcaster{Bus: bus},
		Clock:         workflowClock,
		IDGen:         workflowIDGen,
		Logger:        logger,
	})

	server := httpserver.New(voting, workflow, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	bus := messaging.NewBus(logger)

	// In demo mode the API holds the journal in its own process, so a demo
	// worker has nothing to drain; the postgres journal is the shared one.
	var pg *db.Postgres
	var journal audit.Journal = audit.NewMemoryJournal()
	if !cfg.DemoMode {
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		journal = audit.NewPostgresJournal(pg.DB)
	}

	return &WorkerApp{
		postgres: pg,
		auditRelay: votingworkers.AuditRelay{
			Journal:   journal,
			Sink:      bus,
			BatchSize: cfg.RelayBatchSize,
			Logger:    logger,
		},
		pollInterval: cfg.RelayInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.auditRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// meetingReader projects the workflow's meeting aggregate into the read-only
// view the voting service consumes.
type meetingReader struct {
	meetings workflowports.MeetingRepository
}

func (m meetingReader) GetMeeting(ctx context.Context, meetingID string) (votingports.MeetingProjection, error) {
	meeting, err := m.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		if errors.Is(err, workflowerrors.ErrMeetingNotFound) {
			return votingports.MeetingProjection{}, votingerrors.ErrMeetingNotFound
		}
		return votingports.MeetingProjection{}, err
	}
	return votingports.MeetingProjection{
		MeetingID:      meeting.MeetingID,
		Status:         string(meeting.Status),
		PresidentName:  meeting.PresidentName,
		VotePolicyID:   meeting.VotePolicyID,
		QuorumPolicyID: meeting.QuorumPolicyID,
		ValidatedAt:    meeting.ValidatedAt,
	}, nil
}

type motionStatusReader struct {
	motions votingports.MotionRepository
}

func (m motionStatusReader) OpenMotionCount(ctx context.Context, meetingID string) (int, error) {
	_, found, err := m.motions.GetOpenMotion(ctx, meetingID)
	if err != nil {
		return 0, err
	}
	if found {
		return 1, nil
	}
	return 0, nil
}

type eligibilityReader struct {
	reports votingqueries.ReportingUseCase
}

func (e eligibilityReader) QuorumStatus(ctx context.Context, meetingID string) (bool, bool, error) {
	report, err := e.reports.Eligibility(ctx, meetingID)
	if err != nil {
		return false, false, err
	}
	return report.QuorumOk, report.Fallback, nil
}

type consolidator struct {
	consolidation votingcommands.ConsolidationUseCase
}

func (c consolidator) Consolidate(ctx context.Context, meetingID string) (int, error) {
	report, err := c.consolidation.Run(ctx, meetingID)
	if err != nil {
		return 0, err
	}
	return report.Consolidated, nil
}

func (c consolidator) Readiness(ctx context.Context, meetingID string) (bool, []string, error) {
	report, err := c.consolidation.ReadyCheck(ctx, meetingID)
	if err != nil {
		return false, nil, err
	}
	return report.Ready, report.Issues, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
