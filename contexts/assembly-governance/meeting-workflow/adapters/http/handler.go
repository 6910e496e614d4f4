// Package httpadapter bridges workflow use cases to transport DTOs.
package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agora/contexts/assembly-governance/meeting-workflow/application/commands"
	"agora/contexts/assembly-governance/meeting-workflow/application/queries"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	httptransport "agora/contexts/assembly-governance/meeting-workflow/transport/http"
)

// Handler adapts the workflow use cases to the transport DTOs. It carries no
// HTTP plumbing itself; the platform server owns routing, decoding, and error
// mapping.
type Handler struct {
	Workflow commands.WorkflowUseCase
	Queries  queries.WorkflowQueryUseCase
	Logger   *slog.Logger
}

func (h Handler) CreateMeetingHandler(
	ctx context.Context,
	req httptransport.CreateMeetingRequest,
) (httptransport.MeetingResponse, error) {
	scheduledAt, err := parseOptionalTime(req.ScheduledAt)
	if err != nil {
		return httptransport.MeetingResponse{}, err
	}
	meeting, err := h.Workflow.Create(ctx, commands.CreateMeetingCommand{
		Title:          req.Title,
		MeetingType:    req.MeetingType,
		PresidentName:  req.PresidentName,
		ScheduledAt:    scheduledAt,
		VotePolicyID:   req.VotePolicyID,
		QuorumPolicyID: req.QuorumPolicyID,
	})
	if err != nil {
		return httptransport.MeetingResponse{}, err
	}
	return mapMeeting(meeting), nil
}

func (h Handler) UpdateMeetingHandler(
	ctx context.Context,
	meetingID string,
	req httptransport.UpdateMeetingRequest,
) (httptransport.MeetingResponse, error) {
	scheduledAt, err := parseOptionalTime(req.ScheduledAt)
	if err != nil {
		return httptransport.MeetingResponse{}, err
	}
	meeting, err := h.Workflow.UpdateMetadata(ctx, commands.UpdateMeetingCommand{
		MeetingID:      meetingID,
		Title:          req.Title,
		PresidentName:  req.PresidentName,
		ScheduledAt:    scheduledAt,
		VotePolicyID:   req.VotePolicyID,
		QuorumPolicyID: req.QuorumPolicyID,
	})
	if err != nil {
		return httptransport.MeetingResponse{}, err
	}
	return mapMeeting(meeting), nil
}

func (h Handler) GetMeetingHandler(ctx context.Context, meetingID string) (httptransport.MeetingResponse, error) {
	meeting, err := h.Queries.GetMeeting(ctx, meetingID)
	if err != nil {
		return httptransport.MeetingResponse{}, err
	}
	return mapMeeting(meeting), nil
}

func (h Handler) ListMeetingsHandler(ctx context.Context) (httptransport.MeetingListResponse, error) {
	meetings, err := h.Queries.ListMeetings(ctx)
	if err != nil {
		return httptransport.MeetingListResponse{}, err
	}
	items := make([]httptransport.MeetingResponse, 0, len(meetings))
	for _, meeting := range meetings {
		items = append(items, mapMeeting(meeting))
	}
	return httptransport.MeetingListResponse{Items: items}, nil
}

func (h Handler) TransitionHandler(
	ctx context.Context,
	meetingID string,
	req httptransport.TransitionRequest,
) (httptransport.TransitionResponse, error) {
	result, err := h.Workflow.Transition(ctx, commands.TransitionCommand{
		MeetingID: meetingID,
		Target:    req.Target,
		Actor:     mapActor(req.Actor),
		Force:     req.Force,
	})
	if err != nil {
		return httptransport.TransitionResponse{}, err
	}
	return httptransport.TransitionResponse{
		Meeting:  mapMeeting(result.Meeting),
		Warnings: emptyIfNil(result.Warnings),
		Forced:   result.Forced,
	}, nil
}

func (h Handler) LaunchHandler(
	ctx context.Context,
	meetingID string,
	req httptransport.LaunchRequest,
) (httptransport.LaunchResponse, error) {
	result, err := h.Workflow.Launch(ctx, commands.LaunchCommand{
		MeetingID: meetingID,
		Actor:     mapActor(req.Actor),
		Force:     req.Force,
	})
	if err != nil {
		return httptransport.LaunchResponse{}, err
	}
	visited := make([]string, 0, len(result.Visited))
	for _, status := range result.Visited {
		visited = append(visited, string(status))
	}
	return httptransport.LaunchResponse{
		Meeting:  mapMeeting(result.Meeting),
		Visited:  visited,
		Warnings: emptyIfNil(result.Warnings),
		Forced:   result.Forced,
	}, nil
}

func (h Handler) PreviewTransitionHandler(
	ctx context.Context,
	meetingID string,
	target string,
) (httptransport.TransitionPreviewResponse, error) {
	preview, err := h.Queries.PreviewTransition(ctx, meetingID, target)
	if err != nil {
		return httptransport.TransitionPreviewResponse{}, err
	}
	return httptransport.TransitionPreviewResponse{
		Allowed:  preview.Allowed,
		Issues:   emptyIfNil(preview.Issues),
		Warnings: emptyIfNil(preview.Warnings),
	}, nil
}

func (h Handler) PreviewLaunchHandler(
	ctx context.Context,
	meetingID string,
) (httptransport.LaunchPreviewResponse, error) {
	preview, err := h.Queries.PreviewLaunch(ctx, meetingID)
	if err != nil {
		return httptransport.LaunchPreviewResponse{}, err
	}
	path := make([]string, 0, len(preview.Path))
	for _, status := range preview.Path {
		path = append(path, string(status))
	}
	return httptransport.LaunchPreviewResponse{
		Path:     path,
		Issues:   emptyIfNil(preview.Issues),
		Warnings: emptyIfNil(preview.Warnings),
	}, nil
}

func (h Handler) ConsolidateHandler(
	ctx context.Context,
	meetingID string,
	actor httptransport.ActorPayload,
) (httptransport.WorkflowConsolidationResponse, error) {
	result, err := h.Workflow.Consolidate(ctx, commands.ConsolidateCommand{
		MeetingID: meetingID,
		Actor:     mapActor(actor),
	})
	if err != nil {
		return httptransport.WorkflowConsolidationResponse{}, err
	}
	return httptransport.WorkflowConsolidationResponse{
		MeetingID:    meetingID,
		Consolidated: result.Consolidated,
	}, nil
}

func (h Handler) ReadinessHandler(
	ctx context.Context,
	meetingID string,
) (httptransport.WorkflowReadinessResponse, error) {
	report, err := h.Queries.Readiness(ctx, meetingID)
	if err != nil {
		return httptransport.WorkflowReadinessResponse{}, err
	}
	return httptransport.WorkflowReadinessResponse{
		MeetingID: meetingID,
		Ready:     report.Ready,
		Issues:    emptyIfNil(report.Issues),
	}, nil
}

func (h Handler) ResetDemoHandler(
	ctx context.Context,
	meetingID string,
	req httptransport.ResetDemoRequest,
) (httptransport.MeetingResponse, error) {
	meeting, err := h.Workflow.ResetDemo(ctx, commands.ResetDemoCommand{
		MeetingID:    meetingID,
		Confirmation: req.Confirmation,
		Actor:        mapActor(req.Actor),
	})
	if err != nil {
		return httptransport.MeetingResponse{}, err
	}
	return mapMeeting(meeting), nil
}

func mapActor(payload httptransport.ActorPayload) entities.Actor {
	return entities.Actor{
		UserID: payload.UserID,
		Name:   payload.Name,
		Role:   payload.Role,
	}
}

func mapMeeting(meeting entities.Meeting) httptransport.MeetingResponse {
	return httptransport.MeetingResponse{
		MeetingID:         meeting.MeetingID,
		Title:             meeting.Title,
		MeetingType:       string(meeting.MeetingType),
		Status:            string(meeting.Status),
		PresidentName:     meeting.PresidentName,
		VotePolicyID:      meeting.VotePolicyID,
		QuorumPolicyID:    meeting.QuorumPolicyID,
		ScheduledAt:       formatOptionalTime(meeting.ScheduledAt),
		StartedAt:         formatOptionalTime(meeting.StartedAt),
		FrozenAt:          formatOptionalTime(meeting.FrozenAt),
		PausedAt:          formatOptionalTime(meeting.PausedAt),
		EndedAt:           formatOptionalTime(meeting.EndedAt),
		ValidatedAt:       formatOptionalTime(meeting.ValidatedAt),
		ArchivedAt:        formatOptionalTime(meeting.ArchivedAt),
		FrozenBy:          meeting.FrozenBy,
		PausedBy:          meeting.PausedBy,
		ClosedBy:          meeting.ClosedBy,
		ValidatedBy:       meeting.ValidatedBy,
		ValidatedByUserID: meeting.ValidatedByUserID,
		CreatedAt:         meeting.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         meeting.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, domainerrors.ErrInvalidMeetingInput
	}
	timestamp := parsed.UTC()
	return &timestamp, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
