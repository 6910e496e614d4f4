package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agora/contexts/assembly-governance/motion-voting/application/commands"
	"agora/contexts/assembly-governance/motion-voting/application/queries"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	httptransport "agora/contexts/assembly-governance/motion-voting/transport/http"
)

// Handler adapts the service's use cases to the transport DTOs. It carries no
// HTTP plumbing itself; the platform server owns routing, decoding, and error
// mapping.
type Handler struct {
	Motions       commands.MotionUseCase
	Ballots       commands.BallotUseCase
	Attendance    commands.AttendanceUseCase
	Proxies       commands.ProxyUseCase
	Consolidation commands.ConsolidationUseCase
	Reports       queries.ReportingUseCase
	Logger        *slog.Logger
}

func (h Handler) CreateMotionHandler(
	ctx context.Context,
	req httptransport.CreateMotionRequest,
) (httptransport.MotionResponse, error) {
	motion, err := h.Motions.Create(ctx, commands.CreateMotionCommand{
		MeetingID:      req.MeetingID,
		Title:          req.Title,
		Description:    req.Description,
		Position:       req.Position,
		VotePolicyID:   req.VotePolicyID,
		QuorumPolicyID: req.QuorumPolicyID,
	})
	if err != nil {
		return httptransport.MotionResponse{}, err
	}
	return mapMotion(motion), nil
}

func (h Handler) ListMotionsHandler(ctx context.Context, meetingID string) (httptransport.MotionListResponse, error) {
	motions, err := h.Reports.MotionsByMeeting(ctx, meetingID)
	if err != nil {
		return httptransport.MotionListResponse{}, err
	}
	items := make([]httptransport.MotionResponse, 0, len(motions))
	for _, motion := range motions {
		items = append(items, mapMotion(motion))
	}
	return httptransport.MotionListResponse{Items: items}, nil
}

func (h Handler) OpenMotionHandler(ctx context.Context, motionID string) (httptransport.OpenMotionResponse, error) {
	result, err := h.Motions.Open(ctx, motionID)
	if err != nil {
		return httptransport.OpenMotionResponse{}, err
	}
	tokens := make([]httptransport.IssuedTokenItem, 0, len(result.Tokens))
	for _, token := range result.Tokens {
		tokens = append(tokens, httptransport.IssuedTokenItem{
			MemberID: token.MemberID,
			Token:    token.Token,
		})
	}
	return httptransport.OpenMotionResponse{
		Motion: mapMotion(result.Motion),
		Tokens: tokens,
	}, nil
}

func (h Handler) CloseMotionHandler(ctx context.Context, motionID string) (httptransport.CloseMotionResponse, error) {
	result, err := h.Motions.Close(ctx, motionID)
	if err != nil {
		return httptransport.CloseMotionResponse{}, err
	}
	return httptransport.CloseMotionResponse{
		Motion:        mapMotion(result.Motion),
		Tally:         mapTally(result.Tally),
		Decision:      string(result.Decision),
		TallySource:   string(result.Result.Source),
		TokensRevoked: result.Revoked,
	}, nil
}

func (h Handler) CastBallotHandler(
	ctx context.Context,
	motionID string,
	idempotencyKey string,
	req httptransport.CastBallotRequest,
) (httptransport.BallotResponse, error) {
	result, err := h.Ballots.Cast(ctx, commands.CastBallotCommand{
		MotionID:            motionID,
		MemberID:            req.MemberID,
		Value:               req.Value,
		Source:              req.Source,
		Token:               req.Token,
		ProxySourceMemberID: req.ProxySourceMemberID,
		IdempotencyKey:      idempotencyKey,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{
		BallotID:    result.Ballot.BallotID,
		MotionID:    result.Ballot.MotionID,
		MemberID:    result.Ballot.MemberID,
		Value:       string(result.Ballot.Value),
		Weight:      result.Ballot.Weight,
		Source:      string(result.Ballot.Source),
		IsProxyVote: result.Ballot.IsProxyVote,
		Replayed:    result.Replayed,
	}, nil
}

func (h Handler) SetManualTallyHandler(
	ctx context.Context,
	motionID string,
	operatorID string,
	req httptransport.ManualTallyRequest,
) (httptransport.ManualTallyResponse, error) {
	tally, err := h.Motions.SetManualTally(ctx, commands.SetManualTallyCommand{
		MotionID:      motionID,
		Total:         req.Total,
		For:           req.For,
		Against:       req.Against,
		Abstain:       req.Abstain,
		Justification: req.Justification,
		RecordedBy:    operatorID,
	})
	if err != nil {
		return httptransport.ManualTallyResponse{}, err
	}
	return httptransport.ManualTallyResponse{
		MotionID:      tally.MotionID,
		Total:         tally.Total,
		For:           tally.For,
		Against:       tally.Against,
		Abstain:       tally.Abstain,
		Justification: tally.Justification,
		RecordedBy:    tally.RecordedBy,
	}, nil
}

func (h Handler) RecordAttendanceHandler(
	ctx context.Context,
	meetingID string,
	req httptransport.RecordAttendanceRequest,
) (httptransport.AttendanceResponse, error) {
	record, err := h.Attendance.Record(ctx, commands.RecordAttendanceCommand{
		MeetingID:   meetingID,
		MemberID:    req.MemberID,
		Mode:        req.Mode,
		VotingPower: req.VotingPower,
	})
	if err != nil {
		return httptransport.AttendanceResponse{}, err
	}
	return httptransport.AttendanceResponse{
		MeetingID:   record.MeetingID,
		MemberID:    record.MemberID,
		Mode:        string(record.Mode),
		VotingPower: record.VotingPower,
	}, nil
}

func (h Handler) UpsertProxyHandler(
	ctx context.Context,
	meetingID string,
	req httptransport.UpsertProxyRequest,
) (httptransport.ProxyGrantResponse, error) {
	grant, err := h.Proxies.Upsert(ctx, commands.UpsertProxyCommand{
		MeetingID:        meetingID,
		GiverMemberID:    req.GiverMemberID,
		ReceiverMemberID: req.ReceiverMemberID,
		Scope:            req.Scope,
	})
	if err != nil {
		return httptransport.ProxyGrantResponse{}, err
	}
	return mapGrant(grant), nil
}

func (h Handler) RevokeProxyHandler(ctx context.Context, meetingID, giverMemberID, scope string) error {
	return h.Proxies.Revoke(ctx, commands.RevokeProxyCommand{
		MeetingID:     meetingID,
		GiverMemberID: giverMemberID,
		Scope:         scope,
	})
}

func (h Handler) TallyHandler(ctx context.Context, motionID string) (httptransport.TallyReportResponse, error) {
	report, err := h.Reports.Tally(ctx, motionID)
	if err != nil {
		return httptransport.TallyReportResponse{}, err
	}
	return httptransport.TallyReportResponse{
		MotionID: report.MotionID,
		Open:     report.Open,
		Tally:    mapTally(report.Tally),
		Decision: string(report.Decision),
		Source:   string(report.Source),
	}, nil
}

func (h Handler) EligibilityHandler(ctx context.Context, meetingID string) (httptransport.EligibilityResponse, error) {
	eligibility, err := h.Reports.Eligibility(ctx, meetingID)
	if err != nil {
		return httptransport.EligibilityResponse{}, err
	}
	return httptransport.EligibilityResponse{
		MeetingID:     meetingID,
		PresentCount:  eligibility.PresentCount,
		PresentWeight: eligibility.PresentWeight,
		TotalCount:    eligibility.TotalCount,
		TotalWeight:   eligibility.TotalWeight,
		AbsentMembers: eligibility.AbsentMemberIDs,
		QuorumRatio:   eligibility.QuorumRatio,
		QuorumOk:      eligibility.QuorumOk,
		Fallback:      eligibility.Fallback,
	}, nil
}

func (h Handler) ProxyCoverageHandler(
	ctx context.Context,
	meetingID string,
	scope string,
) (httptransport.ProxyCoverageResponse, error) {
	report, err := h.Reports.ProxyCoverage(ctx, meetingID, scope)
	if err != nil {
		return httptransport.ProxyCoverageResponse{}, err
	}
	return httptransport.ProxyCoverageResponse{
		MeetingID: report.MeetingID,
		Scope:     report.Scope,
		Covered:   report.Covered,
		Missing:   report.Missing,
	}, nil
}

func (h Handler) AnomaliesHandler(
	ctx context.Context,
	meetingID string,
	motionID string,
) (httptransport.AnomalyReportResponse, error) {
	report, err := h.Reports.DetectAnomalies(ctx, meetingID, motionID)
	if err != nil {
		return httptransport.AnomalyReportResponse{}, err
	}
	anomalies := make([]httptransport.AnomalyItem, 0, len(report.Anomalies))
	for _, anomaly := range report.Anomalies {
		anomalies = append(anomalies, httptransport.AnomalyItem{
			Kind:     anomaly.Kind,
			MotionID: anomaly.MotionID,
			MemberID: anomaly.MemberID,
			Detail:   anomaly.Detail,
		})
	}
	return httptransport.AnomalyReportResponse{
		MeetingID:     report.MeetingID,
		MotionID:      report.MotionID,
		Anomalies:     anomalies,
		MissingSample: report.MissingSample,
		MissingTotal:  report.MissingTotal,
		Stats:         report.Stats,
	}, nil
}

func (h Handler) NextMotionHandler(ctx context.Context, meetingID string) (httptransport.NextMotionResponse, error) {
	report, err := h.Reports.CanOpenNext(ctx, meetingID)
	if err != nil {
		return httptransport.NextMotionResponse{}, err
	}
	return httptransport.NextMotionResponse{
		MeetingID:    report.MeetingID,
		CanOpen:      report.CanOpen,
		NextMotionID: report.NextMotionID,
		Blockers:     report.Blockers,
	}, nil
}

func (h Handler) ConsolidateHandler(ctx context.Context, meetingID string) (httptransport.ConsolidationResponse, error) {
	report, err := h.Consolidation.Run(ctx, meetingID)
	if err != nil {
		return httptransport.ConsolidationResponse{}, err
	}
	sources := make(map[string]string, len(report.SourceByMotion))
	for motionID, source := range report.SourceByMotion {
		sources[motionID] = string(source)
	}
	return httptransport.ConsolidationResponse{
		MeetingID:      report.MeetingID,
		Consolidated:   report.Consolidated,
		Skipped:        report.Skipped,
		NoResult:       report.NoResult,
		SourceByMotion: sources,
	}, nil
}

func (h Handler) ReadyCheckHandler(ctx context.Context, meetingID string) (httptransport.ReadinessResponse, error) {
	report, err := h.Consolidation.ReadyCheck(ctx, meetingID)
	if err != nil {
		return httptransport.ReadinessResponse{}, err
	}
	return httptransport.ReadinessResponse{
		MeetingID: report.MeetingID,
		Ready:     report.Ready,
		Issues:    report.Issues,
	}, nil
}

func (h Handler) ListPoliciesHandler(ctx context.Context) (httptransport.PolicyListResponse, error) {
	votePolicies, quorumPolicies, err := h.Reports.ListPolicies(ctx)
	if err != nil {
		return httptransport.PolicyListResponse{}, err
	}
	resp := httptransport.PolicyListResponse{
		VotePolicies:   make([]httptransport.VotePolicyItem, 0, len(votePolicies)),
		QuorumPolicies: make([]httptransport.QuorumPolicyItem, 0, len(quorumPolicies)),
	}
	for _, policy := range votePolicies {
		resp.VotePolicies = append(resp.VotePolicies, httptransport.VotePolicyItem{
			PolicyID:          policy.PolicyID,
			Name:              policy.Name,
			MajorityThreshold: policy.MajorityThreshold,
			MajorityBasis:     string(policy.MajorityBasis),
		})
	}
	for _, policy := range quorumPolicies {
		resp.QuorumPolicies = append(resp.QuorumPolicies, httptransport.QuorumPolicyItem{
			PolicyID:  policy.PolicyID,
			Name:      policy.Name,
			Threshold: policy.Threshold,
		})
	}
	return resp, nil
}

func mapMotion(motion entities.Motion) httptransport.MotionResponse {
	status := "not_opened"
	switch {
	case motion.IsOpen():
		status = "open"
	case motion.IsClosed():
		status = "closed"
	}
	resp := httptransport.MotionResponse{
		MotionID:       motion.MotionID,
		MeetingID:      motion.MeetingID,
		Title:          motion.Title,
		Description:    motion.Description,
		Position:       motion.Position,
		VotePolicyID:   motion.VotePolicyID,
		QuorumPolicyID: motion.QuorumPolicyID,
		Status:         status,
		Decision:       string(motion.Decision),
	}
	if motion.OpenedAt != nil {
		resp.OpenedAt = motion.OpenedAt.UTC().Format(time.RFC3339)
	}
	if motion.ClosedAt != nil {
		resp.ClosedAt = motion.ClosedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func mapTally(tally entities.Tally) httptransport.TallyPayload {
	return httptransport.TallyPayload{
		For:       httptransport.TallyBucketItem{Count: tally.For.Count, Weight: tally.For.Weight},
		Against:   httptransport.TallyBucketItem{Count: tally.Against.Count, Weight: tally.Against.Weight},
		Abstain:   httptransport.TallyBucketItem{Count: tally.Abstain.Count, Weight: tally.Abstain.Weight},
		NoOpinion: httptransport.TallyBucketItem{Count: tally.NoOpinion.Count, Weight: tally.NoOpinion.Weight},
	}
}

func mapGrant(grant entities.ProxyGrant) httptransport.ProxyGrantResponse {
	return httptransport.ProxyGrantResponse{
		GrantID:          grant.GrantID,
		MeetingID:        grant.MeetingID,
		GiverMemberID:    grant.GiverMemberID,
		ReceiverMemberID: grant.ReceiverMemberID,
		Scope:            grant.Scope,
		Active:           grant.Active(),
	}
}
