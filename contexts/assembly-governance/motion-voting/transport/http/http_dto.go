package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateMotionRequest struct {
	MeetingID      string `json:"meeting_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Position       int    `json:"position"`
	VotePolicyID   string `json:"vote_policy_id,omitempty"`
	QuorumPolicyID string `json:"quorum_policy_id,omitempty"`
}

type MotionResponse struct {
	MotionID       string `json:"motion_id"`
	MeetingID      string `json:"meeting_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Position       int    `json:"position"`
	VotePolicyID   string `json:"vote_policy_id,omitempty"`
	QuorumPolicyID string `json:"quorum_policy_id,omitempty"`
	Status         string `json:"status"`
	Decision       string `json:"decision,omitempty"`
	OpenedAt       string `json:"opened_at,omitempty"`
	ClosedAt       string `json:"closed_at,omitempty"`
}

type IssuedTokenItem struct {
	MemberID string `json:"member_id"`
	Token    string `json:"token"`
}

type OpenMotionResponse struct {
	Motion MotionResponse    `json:"motion"`
	Tokens []IssuedTokenItem `json:"tokens"`
}

type TallyBucketItem struct {
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

type TallyPayload struct {
	For       TallyBucketItem `json:"for"`
	Against   TallyBucketItem `json:"against"`
	Abstain   TallyBucketItem `json:"abstain"`
	NoOpinion TallyBucketItem `json:"no_opinion"`
}

type CloseMotionResponse struct {
	Motion        MotionResponse `json:"motion"`
	Tally         TallyPayload   `json:"tally"`
	Decision      string         `json:"decision"`
	TallySource   string         `json:"tally_source"`
	TokensRevoked int            `json:"tokens_revoked"`
}

type CastBallotRequest struct {
	MemberID            string `json:"member_id,omitempty"`
	Value               string `json:"value"`
	Source              string `json:"source,omitempty"`
	Token               string `json:"token,omitempty"`
	ProxySourceMemberID string `json:"proxy_source_member_id,omitempty"`
}

type BallotResponse struct {
	BallotID    string  `json:"ballot_id"`
	MotionID    string  `json:"motion_id"`
	MemberID    string  `json:"member_id"`
	Value       string  `json:"value"`
	Weight      float64 `json:"weight"`
	Source      string  `json:"source"`
	IsProxyVote bool    `json:"is_proxy_vote"`
	Replayed    bool    `json:"replayed"`
}

type ManualTallyRequest struct {
	Total         int    `json:"total"`
	For           int    `json:"for"`
	Against       int    `json:"against"`
	Abstain       int    `json:"abstain"`
	Justification string `json:"justification"`
}

type ManualTallyResponse struct {
	MotionID      string `json:"motion_id"`
	Total         int    `json:"total"`
	For           int    `json:"for"`
	Against       int    `json:"against"`
	Abstain       int    `json:"abstain"`
	Justification string `json:"justification"`
	RecordedBy    string `json:"recorded_by,omitempty"`
}

// VotingPower is a pointer so an explicit 0 (present without voting weight)
// is distinguishable from an absent field, which defaults to 1.
type RecordAttendanceRequest struct {
	MemberID    string   `json:"member_id"`
	Mode        string   `json:"mode"`
	VotingPower *float64 `json:"voting_power,omitempty"`
}

type AttendanceResponse struct {
	MeetingID   string  `json:"meeting_id"`
	MemberID    string  `json:"member_id"`
	Mode        string  `json:"mode"`
	VotingPower float64 `json:"voting_power"`
}

type UpsertProxyRequest struct {
	GiverMemberID    string `json:"giver_member_id"`
	ReceiverMemberID string `json:"receiver_member_id"`
	Scope            string `json:"scope"`
}

type ProxyGrantResponse struct {
	GrantID          string `json:"grant_id"`
	MeetingID        string `json:"meeting_id"`
	GiverMemberID    string `json:"giver_member_id"`
	ReceiverMemberID string `json:"receiver_member_id,omitempty"`
	Scope            string `json:"scope"`
	Active           bool   `json:"active"`
}

type TallyReportResponse struct {
	MotionID string       `json:"motion_id"`
	Open     bool         `json:"open"`
	Tally    TallyPayload `json:"tally"`
	Decision string       `json:"decision,omitempty"`
	Source   string       `json:"source"`
}

type EligibilityResponse struct {
	MeetingID     string   `json:"meeting_id"`
	PresentCount  int      `json:"present_count"`
	PresentWeight float64  `json:"present_weight"`
	TotalCount    int      `json:"total_count"`
	TotalWeight   float64  `json:"total_weight"`
	AbsentMembers []string `json:"absent_members"`
	QuorumRatio   float64  `json:"quorum_ratio"`
	QuorumOk      bool     `json:"quorum_ok"`
	Fallback      bool     `json:"fallback"`
}

type ProxyCoverageResponse struct {
	MeetingID string            `json:"meeting_id"`
	Scope     string            `json:"scope"`
	Covered   map[string]string `json:"covered"`
	Missing   []string          `json:"missing"`
}

type AnomalyItem struct {
	Kind     string `json:"kind"`
	MotionID string `json:"motion_id,omitempty"`
	MemberID string `json:"member_id"`
	Detail   string `json:"detail,omitempty"`
}

type AnomalyReportResponse struct {
	MeetingID     string         `json:"meeting_id"`
	MotionID      string         `json:"motion_id,omitempty"`
	Anomalies     []AnomalyItem  `json:"anomalies"`
	MissingSample []string       `json:"missing_sample"`
	MissingTotal  int            `json:"missing_total"`
	Stats         map[string]int `json:"stats"`
}

type NextMotionResponse struct {
	MeetingID    string   `json:"meeting_id"`
	CanOpen      bool     `json:"can_open"`
	NextMotionID string   `json:"next_motion_id,omitempty"`
	Blockers     []string `json:"blockers"`
}

type ConsolidationResponse struct {
	MeetingID      string            `json:"meeting_id"`
	Consolidated   int               `json:"consolidated"`
	Skipped        int               `json:"skipped"`
	NoResult       []string          `json:"no_result"`
	SourceByMotion map[string]string `json:"source_by_motion"`
}

type ReadinessResponse struct {
	MeetingID string   `json:"meeting_id"`
	Ready     bool     `json:"ready"`
	Issues    []string `json:"issues"`
}

type VotePolicyItem struct {
	PolicyID          string  `json:"policy_id"`
	Name              string  `json:"name"`
	MajorityThreshold float64 `json:"majority_threshold"`
	MajorityBasis     string  `json:"majority_basis"`
}

type QuorumPolicyItem struct {
	PolicyID  string  `json:"policy_id"`
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
}

type PolicyListResponse struct {
	VotePolicies   []VotePolicyItem   `json:"vote_policies"`
	QuorumPolicies []QuorumPolicyItem `json:"quorum_policies"`
}

type MotionListResponse struct {
	Items []MotionResponse `json:"items"`
}
