package meetingworkflow

import (
	"log/slog"

	httpadapter "agora/contexts/assembly-governance/meeting-workflow/adapters/http"
	"agora/contexts/assembly-governance/meeting-workflow/adapters/memory"
	"agora/contexts/assembly-governance/meeting-workflow/application/commands"
	"agora/contexts/assembly-governance/meeting-workflow/application/queries"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	"agora/contexts/assembly-governance/meeting-workflow/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Workflow commands.WorkflowUseCase
	Store    *memory.Store
}

type Dependencies struct {
	Meetings      ports.MeetingRepository
	Motions       ports.MotionStatusReader
	Eligibility   ports.EligibilityReader
	Consolidation ports.Consolidator
	Resetter      ports.DemoResetter
	Audit         ports.AuditLog
	Broadcast     ports.Broadcaster
	Clock         ports.Clock
	IDGen         ports.IDGenerator

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	workflowUseCase := commands.WorkflowUseCase{
		Meetings:      deps.Meetings,
		Motions:       deps.Motions,
		Eligibility:   deps.Eligibility,
		Consolidation: deps.Consolidation,
		Resetter:      deps.Resetter,
		Audit:         deps.Audit,
		Broadcast:     deps.Broadcast,
		Clock:         deps.Clock,
		IDGen:         deps.IDGen,
		Logger:        deps.Logger,
	}
	queryUseCase := queries.WorkflowQueryUseCase{
		Meetings:      deps.Meetings,
		Workflow:      workflowUseCase,
		Consolidation: deps.Consolidation,
		Logger:        deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Workflow: workflowUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		Workflow: workflowUseCase,
	}
}

// NewInMemoryModule wires the workflow over the in-memory store. The voting
// side ports stay nil unless the caller provides them, which keeps demo
// transitions unguarded by cross-service checks.
func NewInMemoryModule(seed []entities.Meeting, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Meetings: store,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,
	})
	module.Store = store
	return module
}
