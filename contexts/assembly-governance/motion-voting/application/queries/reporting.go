package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/domain/services"
	"agora/contexts/assembly-governance/motion-voting/ports"
)

// AnomalySampleCap bounds the member-id samples embedded in an anomaly
// report so a large assembly cannot blow up the payload.
const AnomalySampleCap = 30

// TallyReport is the live (or final) count for one motion.
type TallyReport struct {
	MotionID string
	Open     bool
	Tally    entities.Tally
	Decision entities.MotionDecision
	Source   entities.TallySource
}

// ProxyCoverageReport maps covered givers to their receivers and lists the
// absent members no grant covers for the scope.
type ProxyCoverageReport struct {
	MeetingID string
	Scope     string
	Covered   map[string]string
	Missing   []string
}

// Anomaly flags one suspicious ballot or member in an anomaly report.
type Anomaly struct {
	Kind     string `json:"kind"`
	MotionID string `json:"motion_id,omitempty"`
	MemberID string `json:"member_id"`
	Detail   string `json:"detail,omitempty"`
}

// AnomalyReport is a diagnostic snapshot; it reports violations already in
// storage and never mutates anything.
type AnomalyReport struct {
	MeetingID     string
	MotionID      string
	Anomalies     []Anomaly
	MissingSample []string
	MissingTotal  int
	Stats         map[string]int
}

// NextMotionReport says whether the meeting can open its next motion and,
// when it cannot, why.
type NextMotionReport struct {
	MeetingID    string
	CanOpen      bool
	NextMotionID string
	Blockers     []string
}

// ReportingUseCase serves the read side: tallies, eligibility, proxy
// coverage, anomaly detection, and next-motion readiness.
type ReportingUseCase struct {
	Motions         ports.MotionRepository
	Ballots         ports.BallotRepository
	Attendance      ports.AttendanceRepository
	Proxies         ports.ProxyRepository
	Tokens          ports.VoteTokenStore
	Meetings        ports.MeetingReader
	Policies        ports.PolicyProvider
	ManualTallies   ports.ManualTallyStore
	Results         ports.OfficialResultStore
	Clock           ports.Clock
	QuorumThreshold float64
	Logger          *slog.Logger
}

// MotionsByMeeting lists a meeting's agenda in position order.
func (uc ReportingUseCase) MotionsByMeeting(ctx context.Context, meetingID string) ([]entities.Motion, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return nil, domainerrors.ErrMeetingNotFound
	}
	if _, err := uc.Meetings.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return uc.Motions.ListMotionsByMeeting(ctx, meetingID)
}

// ListPolicies returns the tenant's configured vote and quorum policies.
func (uc ReportingUseCase) ListPolicies(ctx context.Context) ([]entities.VotePolicy, []entities.QuorumPolicy, error) {
	votePolicies, err := uc.Policies.ListVotePolicies(ctx)
	if err != nil {
		return nil, nil, err
	}
	quorumPolicies, err := uc.Policies.ListQuorumPolicies(ctx)
	if err != nil {
		return nil, nil, err
	}
	return votePolicies, quorumPolicies, nil
}

// Tally returns the current count for a motion. A frozen official result is
// authoritative; otherwise ballots are re-aggregated on the fly, decoding
// each row defensively so one corrupt ballot cannot sink the whole report.
func (uc ReportingUseCase) Tally(ctx context.Context, motionID string) (TallyReport, error) {
	logger := application.ResolveLogger(uc.Logger)
	motionID = strings.TrimSpace(motionID)
	if motionID == "" {
		return TallyReport{}, domainerrors.ErrMotionNotFound
	}

	motion, err := uc.Motions.GetMotion(ctx, motionID)
	if err != nil {
		return TallyReport{}, err
	}
	report := TallyReport{
		MotionID: motionID,
		Open:     motion.IsOpen(),
		Decision: motion.Decision,
		Source:   entities.TallySourceNone,
	}

	if result, found, err := uc.Results.GetOfficialResult(ctx, motionID); err != nil {
		return TallyReport{}, err
	} else if found {
		report.Tally = result.Tally
		report.Decision = result.Decision
		report.Source = result.Source
		return report, nil
	}

	ballots, err := uc.Ballots.ListBallotsByMotion(ctx, motionID)
	if err != nil {
		return TallyReport{}, err
	}
	skipped := 0
	for _, ballot := range ballots {
		if !report.Tally.Add(ballot.Value, ballot.Weight) {
			skipped++
		}
	}
	if skipped > 0 {
		logger.Warn("undecodable ballots skipped in tally",
			"event", "voting_tally_skipped_ballots",
			"module", "assembly-governance/motion-voting",
			"layer", "application",
			"motion_id", motionID,
			"skipped", skipped,
		)
	}
	if len(ballots) > 0 {
		report.Source = entities.TallySourceElectronic
	}
	return report, nil
}

// Eligibility recomputes the eligible voter set and quorum status for a
// meeting from its attendance sheet.
func (uc ReportingUseCase) Eligibility(ctx context.Context, meetingID string) (entities.Eligibility, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return entities.Eligibility{}, domainerrors.ErrMeetingNotFound
	}
	if _, err := uc.Meetings.GetMeeting(ctx, meetingID); err != nil {
		return entities.Eligibility{}, err
	}
	records, err := uc.Attendance.ListAttendanceByMeeting(ctx, meetingID)
	if err != nil {
		return entities.Eligibility{}, err
	}
	roster, err := uc.Attendance.ListActiveMemberIDs(ctx)
	if err != nil {
		return entities.Eligibility{}, err
	}
	return services.ComputeEligibility(records, roster, uc.QuorumThreshold), nil
}

// ProxyCoverage reports which absent members are represented for a scope
// ("full" or a motion id) and which remain uncovered.
func (uc ReportingUseCase) ProxyCoverage(ctx context.Context, meetingID, scope string) (ProxyCoverageReport, error) {
	meetingID = strings.TrimSpace(meetingID)
	scope = strings.TrimSpace(scope)
	if meetingID == "" {
		return ProxyCoverageReport{}, domainerrors.ErrMeetingNotFound
	}
	if scope == "" {
		scope = entities.ProxyScopeFull
	}

	eligibility, err := uc.Eligibility(ctx, meetingID)
	if err != nil {
		return ProxyCoverageReport{}, err
	}
	grants, err := uc.Proxies.ListGrantsByMeeting(ctx, meetingID)
	if err != nil {
		return ProxyCoverageReport{}, err
	}
	coverage := services.Coverage(grants, scope)

	report := ProxyCoverageReport{
		MeetingID: meetingID,
		Scope:     scope,
		Covered:   make(map[string]string, len(coverage)),
		Missing:   services.MissingCoverage(eligibility.AbsentMemberIDs, coverage),
	}
	for giver, grant := range coverage {
		report.Covered[giver] = grant.ReceiverMemberID
	}
	return report, nil
}

// DetectAnomalies scans a meeting (or a single motion of it) for ballots
// that violate integrity rules: duplicate casts per member, ballots from
// members outside the eligible set, and undecodable values. It also counts
// the eligible members who never voted and summarizes token consumption.
func (uc ReportingUseCase) DetectAnomalies(ctx context.Context, meetingID, motionID string) (AnomalyReport, error) {
	meetingID = strings.TrimSpace(meetingID)
	motionID = strings.TrimSpace(motionID)
	if meetingID == "" {
		return AnomalyReport{}, domainerrors.ErrMeetingNotFound
	}
	if _, err := uc.Meetings.GetMeeting(ctx, meetingID); err != nil {
		return AnomalyReport{}, err
	}

	eligibility, err := uc.Eligibility(ctx, meetingID)
	if err != nil {
		return AnomalyReport{}, err
	}
	eligible := make(map[string]bool, len(eligibility.PresentMemberIDs))
	for _, memberID := range eligibility.PresentMemberIDs {
		eligible[memberID] = true
	}

	motions, err := uc.Motions.ListMotionsByMeeting(ctx, meetingID)
	if err != nil {
		return AnomalyReport{}, err
	}
	if motionID != "" {
		filtered := motions[:0]
		for _, motion := range motions {
			if motion.MotionID == motionID {
				filtered = append(filtered, motion)
			}
		}
		motions = filtered
		if len(motions) == 0 {
			return AnomalyReport{}, domainerrors.ErrMotionNotFound
		}
	}

	report := AnomalyReport{
		MeetingID: meetingID,
		MotionID:  motionID,
		Stats: map[string]int{
			"ballots_total":                 0,
			"tokens_used":                   0,
			"tokens_active_unused":          0,
			"tokens_expired_unused":         0,
			"missing_ballots_from_eligible": 0,
		},
	}
	now := uc.now()
	missing := make(map[string]bool)

	for _, motion := range motions {
		ballots, err := uc.Ballots.ListAllBallotsByMotion(ctx, motion.MotionID)
		if err != nil {
			return AnomalyReport{}, err
		}
		report.Stats["ballots_total"] += len(ballots)

		voted := make(map[string]int, len(ballots))
		for _, ballot := range ballots {
			voted[ballot.MemberID]++
		}
		for memberID, count := range voted {
			if count > 1 {
				report.Anomalies = append(report.Anomalies, Anomaly{
					Kind:     "duplicate_ballot",
					MotionID: motion.MotionID,
					MemberID: memberID,
				})
			}
		}
		for _, ballot := range ballots {
			if !ballot.Value.Valid() {
				report.Anomalies = append(report.Anomalies, Anomaly{
					Kind:     "invalid_value",
					MotionID: motion.MotionID,
					MemberID: ballot.MemberID,
					Detail:   string(ballot.Value),
				})
			}
			if !eligible[ballot.MemberID] {
				report.Anomalies = append(report.Anomalies, Anomaly{
					Kind:     "ineligible_voter",
					MotionID: motion.MotionID,
					MemberID: ballot.MemberID,
					Detail:   string(ballot.Source),
				})
			}
		}

		// Only motions that actually opened can have expected voters.
		if motion.WasOpened() {
			for memberID := range eligible {
				if voted[memberID] == 0 {
					missing[memberID] = true
				}
			}
		}

		tokens, err := uc.Tokens.ListTokensByMotion(ctx, motion.MotionID)
		if err != nil {
			return AnomalyReport{}, err
		}
		for _, token := range tokens {
			switch {
			case token.Status == entities.TokenStatusUsed:
				report.Stats["tokens_used"]++
			case token.Status == entities.TokenStatusActive && !token.Expired(now):
				report.Stats["tokens_active_unused"]++
			case token.Status == entities.TokenStatusActive:
				report.Stats["tokens_expired_unused"]++
			}
		}
	}

	report.MissingTotal = len(missing)
	report.Stats["missing_ballots_from_eligible"] = len(missing)
	names := make([]string, 0, len(missing))
	for memberID := range missing {
		names = append(names, memberID)
	}
	sort.Strings(names)
	if len(names) > AnomalySampleCap {
		names = names[:AnomalySampleCap]
	}
	report.MissingSample = names

	sort.Slice(report.Anomalies, func(i, j int) bool {
		a, b := report.Anomalies[i], report.Anomalies[j]
		if a.MotionID != b.MotionID {
			return a.MotionID < b.MotionID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.MemberID < b.MemberID
	})
	return report, nil
}

// CanOpenNext checks the preconditions for opening the next motion: quorum
// reached, no absent member left uncovered by a proxy, no motion currently
// open, and an unopened motion left on the agenda.
func (uc ReportingUseCase) CanOpenNext(ctx context.Context, meetingID string) (NextMotionReport, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return NextMotionReport{}, domainerrors.ErrMeetingNotFound
	}
	report := NextMotionReport{MeetingID: meetingID}

	eligibility, err := uc.Eligibility(ctx, meetingID)
	if err != nil {
		return NextMotionReport{}, err
	}
	if !eligibility.QuorumOk {
		report.Blockers = append(report.Blockers, "quorum not reached")
	}

	grants, err := uc.Proxies.ListGrantsByMeeting(ctx, meetingID)
	if err != nil {
		return NextMotionReport{}, err
	}
	coverage := services.Coverage(grants, entities.ProxyScopeFull)
	if missing := services.MissingCoverage(eligibility.AbsentMemberIDs, coverage); len(missing) > 0 {
		report.Blockers = append(report.Blockers, "absent members without proxy coverage")
	}

	if _, open, err := uc.Motions.GetOpenMotion(ctx, meetingID); err != nil {
		return NextMotionReport{}, err
	} else if open {
		report.Blockers = append(report.Blockers, "another motion is open")
	}

	motions, err := uc.Motions.ListMotionsByMeeting(ctx, meetingID)
	if err != nil {
		return NextMotionReport{}, err
	}
	for _, motion := range motions {
		if !motion.WasOpened() {
			report.NextMotionID = motion.MotionID
			break
		}
	}
	if report.NextMotionID == "" {
		report.Blockers = append(report.Blockers, "no unopened motion on the agenda")
	}

	report.CanOpen = len(report.Blockers) == 0
	return report, nil
}

func (uc ReportingUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
