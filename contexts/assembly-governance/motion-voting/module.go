package motionvoting

import (
	"log/slog"
	"time"

	httpadapter "agora/contexts/assembly-governance/motion-voting/adapters/http"
	"agora/contexts/assembly-governance/motion-voting/adapters/memory"
	"agora/contexts/assembly-governance/motion-voting/application/commands"
	"agora/contexts/assembly-governance/motion-voting/application/queries"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	"agora/contexts/assembly-governance/motion-voting/domain/services"
	"agora/contexts/assembly-governance/motion-voting/ports"
)

type Module struct {
	Handler       httpadapter.Handler
	Consolidation commands.ConsolidationUseCase
	Reports       queries.ReportingUseCase
	Store         *memory.Store
}

type Dependencies struct {
	Motions       ports.MotionRepository
	Ballots       ports.BallotRepository
	Attendance    ports.AttendanceRepository
	Proxies       ports.ProxyRepository
	Tokens        ports.VoteTokenStore
	Casts         ports.CastCommitter
	Closes        ports.CloseCommitter
	Meetings      ports.MeetingReader
	Policies      ports.PolicyProvider
	ManualTallies ports.ManualTallyStore
	Results       ports.OfficialResultStore
	Idempotency   ports.IdempotencyStore
	Audit         ports.AuditLog
	Broadcast     ports.Broadcaster
	Notify        ports.Notifier
	Clock         ports.Clock
	IDGen         ports.IDGenerator

	IdempotencyTTL   time.Duration
	MinOpenDuration  time.Duration
	MinParticipation float64
	TokenTTL         time.Duration
	QuorumThreshold  float64

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	quorumThreshold := deps.QuorumThreshold
	if quorumThreshold <= 0 {
		quorumThreshold = services.DefaultQuorumThreshold
	}

	motionUseCase := commands.MotionUseCase{
		Motions:          deps.Motions,
		Ballots:          deps.Ballots,
		Attendance:       deps.Attendance,
		Proxies:          deps.Proxies,
		Tokens:           deps.Tokens,
		Closes:           deps.Closes,
		Meetings:         deps.Meetings,
		Policies:         deps.Policies,
		ManualTallies:    deps.ManualTallies,
		Audit:            deps.Audit,
		Broadcast:        deps.Broadcast,
		Notify:           deps.Notify,
		Clock:            deps.Clock,
		IDGen:            deps.IDGen,
		MinOpenDuration:  deps.MinOpenDuration,
		MinParticipation: deps.MinParticipation,
		TokenTTL:         deps.TokenTTL,
		QuorumThreshold:  quorumThreshold,
		Logger:           deps.Logger,
	}
	ballotUseCase := commands.BallotUseCase{
		Motions:        deps.Motions,
		Ballots:        deps.Ballots,
		Attendance:     deps.Attendance,
		Proxies:        deps.Proxies,
		Tokens:         deps.Tokens,
		Casts:          deps.Casts,
		Meetings:       deps.Meetings,
		Idempotency:    deps.Idempotency,
		Audit:          deps.Audit,
		Broadcast:      deps.Broadcast,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	attendanceUseCase := commands.AttendanceUseCase{
		Attendance: deps.Attendance,
		Meetings:   deps.Meetings,
		Audit:      deps.Audit,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	proxyUseCase := commands.ProxyUseCase{
		Proxies:  deps.Proxies,
		Meetings: deps.Meetings,
		Audit:    deps.Audit,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	consolidationUseCase := commands.ConsolidationUseCase{
		Motions:         deps.Motions,
		Ballots:         deps.Ballots,
		Attendance:      deps.Attendance,
		ManualTallies:   deps.ManualTallies,
		Results:         deps.Results,
		Meetings:        deps.Meetings,
		Policies:        deps.Policies,
		Audit:           deps.Audit,
		Clock:           deps.Clock,
		QuorumThreshold: quorumThreshold,
		Logger:          deps.Logger,
	}
	reportingUseCase := queries.ReportingUseCase{
		Motions:         deps.Motions,
		Ballots:         deps.Ballots,
		Attendance:      deps.Attendance,
		Proxies:         deps.Proxies,
		Tokens:          deps.Tokens,
		Meetings:        deps.Meetings,
		Policies:        deps.Policies,
		ManualTallies:   deps.ManualTallies,
		Results:         deps.Results,
		Clock:           deps.Clock,
		QuorumThreshold: quorumThreshold,
		Logger:          deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Motions:       motionUseCase,
			Ballots:       ballotUseCase,
			Attendance:    attendanceUseCase,
			Proxies:       proxyUseCase,
			Consolidation: consolidationUseCase,
			Reports:       reportingUseCase,
			Logger:        deps.Logger,
		},
		Consolidation: consolidationUseCase,
		Reports:       reportingUseCase,
	}
}

func NewInMemoryModule(seed []entities.Motion, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Motions:        store,
		Ballots:        store,
		Attendance:     store,
		Proxies:        store,
		Tokens:         store,
		Casts:          store,
		Closes:         store,
		Meetings:       store,
		Policies:       store,
		ManualTallies:  store,
		Results:        store,
		Idempotency:    store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
