package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	meetingworkflow "agora/contexts/assembly-governance/meeting-workflow"
	workflowerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	workflowhttp "agora/contexts/assembly-governance/meeting-workflow/transport/http"
	motionvoting "agora/contexts/assembly-governance/motion-voting"
	votingerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	votinghttp "agora/contexts/assembly-governance/motion-voting/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "agora/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	voting   motionvoting.Module
	workflow meetingworkflow.Module
}

func New(
	voting motionvoting.Module,
	workflow meetingworkflow.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		voting:   voting,
		workflow: workflow,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/voting/v1/motions", s.handleCreateMotion)
	s.mux.HandleFunc("POST /api/voting/v1/motions/{motion_id}/open", s.handleOpenMotion)
	s.mux.HandleFunc("POST /api/voting/v1/motions/{motion_id}/close", s.handleCloseMotion)
	s.mux.HandleFunc("POST /api/voting/v1/motions/{motion_id}/ballots", s.handleCastBallot)
	s.mux.HandleFunc("PUT /api/voting/v1/motions/{motion_id}/manual-tally", s.handleSetManualTally)
	s.mux.HandleFunc("GET /api/voting/v1/motions/{motion_id}/tally", s.handleTally)
	s.mux.HandleFunc("GET /api/voting/v1/meetings/{meeting_id}/motions", s.handleListMotions)
	s.mux.HandleFunc("POST /api/voting/v1/meetings/{meeting_id}/attendance", s.handleRecordAttendance)
	s.mux.HandleFunc("PUT /api/voting/v1/meetings/{meeting_id}/proxies", s.handleUpsertProxy)
	s.mux.HandleFunc("DELETE /api/voting/v1/meetings/{meeting_id}/proxies/{giver_id}", s.handleRevokeProxy)
	s.mux.HandleFunc("GET /api/voting/v1/meetings/{meeting_id}/eligibility", s.handleEligibility)
	s.mux.HandleFunc("GET /api/voting/v1/meetings/{meeting_id}/proxy-coverage", s.handleProxyCoverage)
	s.mux.HandleFunc("GET /api/voting/v1/meetings/{meeting_id}/anomalies", s.handleAnomalies)
	s.mux.HandleFunc("GET /api/voting/v1/meetings/{meeting_id}/next-motion", s.handleNextMotion)
	s.mux.HandleFunc("POST /api/voting/v1/meetings/{meeting_id}/consolidate", s.handleVotingConsolidate)
	s.mux.HandleFunc("GET /api/voting/v1/meetings/{meeting_id}/readiness", s.handleVotingReadiness)
	s.mux.HandleFunc("GET /api/voting/v1/policies", s.handleListPolicies)

	s.mux.HandleFunc("POST /api/workflow/v1/meetings", s.handleCreateMeeting)
	s.mux.HandleFunc("GET /api/workflow/v1/meetings", s.handleListMeetings)
	s.mux.HandleFunc("GET /api/workflow/v1/meetings/{meeting_id}", s.handleGetMeeting)
	s.mux.HandleFunc("PATCH /api/workflow/v1/meetings/{meeting_id}", s.handleUpdateMeeting)
	s.mux.HandleFunc("POST /api/workflow/v1/meetings/{meeting_id}/transition", s.handleTransition)
	s.mux.HandleFunc("GET /api/workflow/v1/meetings/{meeting_id}/transition-preview", s.handlePreviewTransition)
	s.mux.HandleFunc("POST /api/workflow/v1/meetings/{meeting_id}/launch", s.handleLaunch)
	s.mux.HandleFunc("GET /api/workflow/v1/meetings/{meeting_id}/launch-preview", s.handlePreviewLaunch)
	s.mux.HandleFunc("POST /api/workflow/v1/meetings/{meeting_id}/consolidate", s.handleWorkflowConsolidate)
	s.mux.HandleFunc("GET /api/workflow/v1/meetings/{meeting_id}/readiness", s.handleWorkflowReadiness)
	s.mux.HandleFunc("POST /api/workflow/v1/meetings/{meeting_id}/reset-demo", s.handleResetDemo)
}

func (s *Server) handleCreateMotion(w http.ResponseWriter, r *http.Request) {
	var req votinghttp.CreateMotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.voting.Handler.CreateMotionHandler(r.Context(), req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListMotions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ListMotionsHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenMotion(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.OpenMotionHandler(r.Context(), r.PathValue("motion_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseMotion(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.CloseMotionHandler(r.Context(), r.PathValue("motion_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	var req votinghttp.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.voting.Handler.CastBallotHandler(
		r.Context(),
		r.PathValue("motion_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetManualTally(w http.ResponseWriter, r *http.Request) {
	operatorID := r.Header.Get("X-Operator-Id")
	if operatorID == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_operator", "X-Operator-Id header is required")
		return
	}
	var req votinghttp.ManualTallyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.voting.Handler.SetManualTallyHandler(r.Context(), r.PathValue("motion_id"), operatorID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req votinghttp.RecordAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.voting.Handler.RecordAttendanceHandler(r.Context(), r.PathValue("meeting_id"), req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsertProxy(w http.ResponseWriter, r *http.Request) {
	var req votinghttp.UpsertProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.voting.Handler.UpsertProxyHandler(r.Context(), r.PathValue("meeting_id"), req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevokeProxy(w http.ResponseWriter, r *http.Request) {
	err := s.voting.Handler.RevokeProxyHandler(
		r.Context(),
		r.PathValue("meeting_id"),
		r.PathValue("giver_id"),
		r.URL.Query().Get("scope"),
	)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.TallyHandler(r.Context(), r.PathValue("motion_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.EligibilityHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProxyCoverage(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ProxyCoverageHandler(
		r.Context(),
		r.PathValue("meeting_id"),
		r.URL.Query().Get("scope"),
	)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.AnomaliesHandler(
		r.Context(),
		r.PathValue("meeting_id"),
		r.URL.Query().Get("motion_id"),
	)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNextMotion(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.NextMotionHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVotingConsolidate(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ConsolidateHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVotingReadiness(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ReadyCheckHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ListPoliciesHandler(r.Context())
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req workflowhttp.CreateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.workflow.Handler.CreateMeetingHandler(r.Context(), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.ListMeetingsHandler(r.Context())
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.GetMeetingHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var req workflowhttp.UpdateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.workflow.Handler.UpdateMeetingHandler(r.Context(), r.PathValue("meeting_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req workflowhttp.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.workflow.Handler.TransitionHandler(r.Context(), r.PathValue("meeting_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreviewTransition(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.PreviewTransitionHandler(
		r.Context(),
		r.PathValue("meeting_id"),
		r.URL.Query().Get("target"),
	)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req workflowhttp.LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.workflow.Handler.LaunchHandler(r.Context(), r.PathValue("meeting_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreviewLaunch(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.PreviewLaunchHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkflowConsolidate(w http.ResponseWriter, r *http.Request) {
	var actor workflowhttp.ActorPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&actor); err != nil {
			writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}
	resp, err := s.workflow.Handler.ConsolidateHandler(r.Context(), r.PathValue("meeting_id"), actor)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkflowReadiness(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.ReadinessHandler(r.Context(), r.PathValue("meeting_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResetDemo(w http.ResponseWriter, r *http.Request) {
	var req workflowhttp.ResetDemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.workflow.Handler.ResetDemoHandler(r.Context(), r.PathValue("meeting_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeVotingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, votingerrors.ErrMotionNotFound),
		errors.Is(err, votingerrors.ErrMeetingNotFound),
		errors.Is(err, votingerrors.ErrBallotNotFound),
		errors.Is(err, votingerrors.ErrProxyGrantNotFound),
		errors.Is(err, votingerrors.ErrTokenNotFound):
		writeVotingError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, votingerrors.ErrInvalidMotionInput),
		errors.Is(err, votingerrors.ErrInvalidProxyInput),
		errors.Is(err, votingerrors.ErrInvalidAttendanceInput),
		errors.Is(err, votingerrors.ErrInvalidBallotSource),
		errors.Is(err, votingerrors.ErrJustificationRequired),
		errors.Is(err, votingerrors.ErrSelfProxyForbidden):
		writeVotingError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, votingerrors.ErrInvalidVote):
		writeVotingError(w, http.StatusUnprocessableEntity, "invalid_vote", err.Error())
	case errors.Is(err, votingerrors.ErrManualTallyInconsistent):
		writeVotingError(w, http.StatusUnprocessableEntity, "manual_tally_inconsistent", err.Error())
	case errors.Is(err, votingerrors.ErrMotionNotOpen),
		errors.Is(err, votingerrors.ErrMotionAlreadyOpened),
		errors.Is(err, votingerrors.ErrMotionAlreadyClosed),
		errors.Is(err, votingerrors.ErrAnotherMotionOpen),
		errors.Is(err, votingerrors.ErrElectronicBallotsPresent):
		writeVotingError(w, http.StatusConflict, "state_conflict", err.Error())
	case errors.Is(err, votingerrors.ErrDuplicateBallot),
		errors.Is(err, votingerrors.ErrIdempotencyConflict):
		writeVotingError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, votingerrors.ErrMeetingNotVotable),
		errors.Is(err, votingerrors.ErrCloseBlocked):
		writeVotingError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, votingerrors.ErrIneligibleVoter):
		writeVotingError(w, http.StatusForbidden, "ineligible_voter", err.Error())
	case errors.Is(err, votingerrors.ErrTokenMismatch),
		errors.Is(err, votingerrors.ErrTokenConsumed),
		errors.Is(err, votingerrors.ErrTokenRevoked):
		writeVotingError(w, http.StatusForbidden, "token_rejected", err.Error())
	default:
		writeVotingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeWorkflowDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflowerrors.ErrMeetingNotFound):
		writeWorkflowError(w, http.StatusNotFound, "meeting_not_found", err.Error())
	case errors.Is(err, workflowerrors.ErrInvalidMeetingInput),
		errors.Is(err, workflowerrors.ErrInvalidStatus):
		writeWorkflowError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, workflowerrors.ErrResetConfirmationMismatch):
		writeWorkflowError(w, http.StatusBadRequest, "confirmation_mismatch", err.Error())
	case errors.Is(err, workflowerrors.ErrAlreadyInStatus):
		writeWorkflowError(w, http.StatusConflict, "already_in_status", err.Error())
	case errors.Is(err, workflowerrors.ErrMeetingArchived),
		errors.Is(err, workflowerrors.ErrMeetingValidated):
		writeWorkflowError(w, http.StatusConflict, "immutable_state", err.Error())
	case errors.Is(err, workflowerrors.ErrTransitionNotAllowed),
		errors.Is(err, workflowerrors.ErrNoLaunchPath),
		errors.Is(err, workflowerrors.ErrConsolidationForbidden):
		writeWorkflowError(w, http.StatusConflict, "transition_not_allowed", err.Error())
	case errors.Is(err, workflowerrors.ErrTransitionBlocked):
		writeWorkflowError(w, http.StatusUnprocessableEntity, "transition_blocked", err.Error())
	case errors.Is(err, workflowerrors.ErrForceRequiresElevatedRole):
		writeWorkflowError(w, http.StatusForbidden, "force_forbidden", err.Error())
	default:
		writeWorkflowError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVotingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeWorkflowError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, workflowhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
