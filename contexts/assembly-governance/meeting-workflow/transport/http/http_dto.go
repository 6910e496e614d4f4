package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateMeetingRequest struct {
	Title          string `json:"title"`
	MeetingType    string `json:"meeting_type,omitempty"`
	PresidentName  string `json:"president_name,omitempty"`
	ScheduledAt    string `json:"scheduled_at,omitempty"`
	VotePolicyID   string `json:"vote_policy_id,omitempty"`
	QuorumPolicyID string `json:"quorum_policy_id,omitempty"`
}

type UpdateMeetingRequest struct {
	Title          string `json:"title,omitempty"`
	PresidentName  string `json:"president_name,omitempty"`
	ScheduledAt    string `json:"scheduled_at,omitempty"`
	VotePolicyID   string `json:"vote_policy_id,omitempty"`
	QuorumPolicyID string `json:"quorum_policy_id,omitempty"`
}

type ActorPayload struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

type TransitionRequest struct {
	Target string       `json:"target"`
	Force  bool         `json:"force,omitempty"`
	Actor  ActorPayload `json:"actor"`
}

type LaunchRequest struct {
	Force bool         `json:"force,omitempty"`
	Actor ActorPayload `json:"actor"`
}

type ResetDemoRequest struct {
	Confirmation string       `json:"confirmation"`
	Actor        ActorPayload `json:"actor"`
}

type MeetingResponse struct {
	MeetingID         string `json:"meeting_id"`
	Title             string `json:"title"`
	MeetingType       string `json:"meeting_type"`
	Status            string `json:"status"`
	PresidentName     string `json:"president_name,omitempty"`
	VotePolicyID      string `json:"vote_policy_id,omitempty"`
	QuorumPolicyID    string `json:"quorum_policy_id,omitempty"`
	ScheduledAt       string `json:"scheduled_at,omitempty"`
	StartedAt         string `json:"started_at,omitempty"`
	FrozenAt          string `json:"frozen_at,omitempty"`
	PausedAt          string `json:"paused_at,omitempty"`
	EndedAt           string `json:"ended_at,omitempty"`
	ValidatedAt       string `json:"validated_at,omitempty"`
	ArchivedAt        string `json:"archived_at,omitempty"`
	FrozenBy          string `json:"frozen_by,omitempty"`
	PausedBy          string `json:"paused_by,omitempty"`
	ClosedBy          string `json:"closed_by,omitempty"`
	ValidatedBy       string `json:"validated_by,omitempty"`
	ValidatedByUserID string `json:"validated_by_user_id,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type MeetingListResponse struct {
	Items []MeetingResponse `json:"items"`
}

type TransitionResponse struct {
	Meeting  MeetingResponse `json:"meeting"`
	Warnings []string        `json:"warnings"`
	Forced   bool            `json:"forced"`
}

type LaunchResponse struct {
	Meeting  MeetingResponse `json:"meeting"`
	Visited  []string        `json:"visited"`
	Warnings []string        `json:"warnings"`
	Forced   bool            `json:"forced"`
}

type TransitionPreviewResponse struct {
	Allowed  bool     `json:"allowed"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

type LaunchPreviewResponse struct {
	Path     []string `json:"path"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

type WorkflowConsolidationResponse struct {
	MeetingID    string `json:"meeting_id"`
	Consolidated int    `json:"consolidated"`
}

type WorkflowReadinessResponse struct {
	MeetingID string   `json:"meeting_id"`
	Ready     bool     `json:"ready"`
	Issues    []string `json:"issues"`
}
