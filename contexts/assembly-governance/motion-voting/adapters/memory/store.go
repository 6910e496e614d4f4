package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/ports"

	"github.com/google/uuid"
)

type ballotKey struct {
	motionID string
	memberID string
}

type grantKey struct {
	meetingID string
	giverID   string
	scope     string
}

// Store is the in-memory adapter backing tests and local runs. It implements
// every repository port of the service plus projection setters for the data
// other services own.
type Store struct {
	mu sync.RWMutex

	motions       map[string]entities.Motion
	ballots       map[string]entities.Ballot
	ballotIndex   map[ballotKey]string
	extraBallots  []entities.Ballot
	attendance    map[string]map[string]entities.AttendanceRecord
	grants        map[grantKey]entities.ProxyGrant
	tokens        map[string]entities.VoteToken
	manualTallies map[string]entities.ManualTally
	results       map[string]entities.OfficialResult
	idempotency   map[string]ports.IdempotencyRecord

	meetings       map[string]ports.MeetingProjection
	votePolicies   map[string]entities.VotePolicy
	quorumPolicies map[string]entities.QuorumPolicy
	defaultVote    string
	defaultQuorum  string
	roster         []string
}

func NewStore(seed []entities.Motion) *Store {
	motions := make(map[string]entities.Motion, len(seed))
	for _, motion := range seed {
		motions[motion.MotionID] = motion
	}
	return &Store{
		motions:        motions,
		ballots:        make(map[string]entities.Ballot),
		ballotIndex:    make(map[ballotKey]string),
		attendance:     make(map[string]map[string]entities.AttendanceRecord),
		grants:         make(map[grantKey]entities.ProxyGrant),
		tokens:         make(map[string]entities.VoteToken),
		manualTallies:  make(map[string]entities.ManualTally),
		results:        make(map[string]entities.OfficialResult),
		idempotency:    make(map[string]ports.IdempotencyRecord),
		meetings:       make(map[string]ports.MeetingProjection),
		votePolicies:   make(map[string]entities.VotePolicy),
		quorumPolicies: make(map[string]entities.QuorumPolicy),
	}
}

func (s *Store) SetMeeting(meeting ports.MeetingProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[strings.TrimSpace(meeting.MeetingID)] = ports.MeetingProjection{
		MeetingID:      strings.TrimSpace(meeting.MeetingID),
		Status:         strings.TrimSpace(meeting.Status),
		PresidentName:  strings.TrimSpace(meeting.PresidentName),
		VotePolicyID:   strings.TrimSpace(meeting.VotePolicyID),
		QuorumPolicyID: strings.TrimSpace(meeting.QuorumPolicyID),
		ValidatedAt:    meeting.ValidatedAt,
	}
}

func (s *Store) SetVotePolicy(policy entities.VotePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votePolicies[strings.TrimSpace(policy.PolicyID)] = policy
}

func (s *Store) SetQuorumPolicy(policy entities.QuorumPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quorumPolicies[strings.TrimSpace(policy.PolicyID)] = policy
}

func (s *Store) SetTenantDefaults(votePolicyID, quorumPolicyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultVote = strings.TrimSpace(votePolicyID)
	s.defaultQuorum = strings.TrimSpace(quorumPolicyID)
}

func (s *Store) SetRoster(memberIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = append([]string(nil), memberIDs...)
}

// SetBallot bypasses the uniqueness constraint, mirroring data that reached
// storage through out-of-band paths. Anomaly detection is expected to report
// such rows.
func (s *Store) SetBallot(ballot entities.Ballot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ballotKey{motionID: ballot.MotionID, memberID: ballot.MemberID}
	if _, taken := s.ballotIndex[key]; taken {
		s.extraBallots = append(s.extraBallots, ballot)
		return
	}
	s.ballots[ballot.BallotID] = ballot
	s.ballotIndex[key] = ballot.BallotID
}

func (s *Store) SaveMotion(_ context.Context, motion entities.Motion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motions[strings.TrimSpace(motion.MotionID)] = motion
	return nil
}

func (s *Store) GetMotion(_ context.Context, motionID string) (entities.Motion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	motion, ok := s.motions[strings.TrimSpace(motionID)]
	if !ok {
		return entities.Motion{}, domainerrors.ErrMotionNotFound
	}
	return motion, nil
}

func (s *Store) ListMotionsByMeeting(_ context.Context, meetingID string) ([]entities.Motion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Motion, 0)
	for _, motion := range s.motions {
		if motion.MeetingID == strings.TrimSpace(meetingID) {
			items = append(items, motion)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].MotionID < items[j].MotionID
	})
	return items, nil
}

func (s *Store) GetOpenMotion(_ context.Context, meetingID string) (entities.Motion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	motion, ok := s.openMotionLocked(strings.TrimSpace(meetingID))
	return motion, ok, nil
}

func (s *Store) MarkOpened(_ context.Context, motion entities.Motion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.openMotionLocked(motion.MeetingID); ok && existing.MotionID != motion.MotionID {
		return domainerrors.ErrAnotherMotionOpen
	}
	s.motions[strings.TrimSpace(motion.MotionID)] = motion
	return nil
}

func (s *Store) MarkClosed(_ context.Context, motion entities.Motion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motions[strings.TrimSpace(motion.MotionID)] = motion
	return nil
}

func (s *Store) openMotionLocked(meetingID string) (entities.Motion, bool) {
	for _, motion := range s.motions {
		if motion.MeetingID == meetingID && motion.IsOpen() {
			return motion, true
		}
	}
	return entities.Motion{}, false
}

func (s *Store) InsertBallot(_ context.Context, ballot entities.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBallotLocked(ballot)
}

func (s *Store) insertBallotLocked(ballot entities.Ballot) error {
	key := ballotKey{
		motionID: strings.TrimSpace(ballot.MotionID),
		memberID: strings.TrimSpace(ballot.MemberID),
	}
	if _, taken := s.ballotIndex[key]; taken {
		return domainerrors.ErrDuplicateBallot
	}
	s.ballots[strings.TrimSpace(ballot.BallotID)] = ballot
	s.ballotIndex[key] = strings.TrimSpace(ballot.BallotID)
	return nil
}

func (s *Store) GetBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	return ballot, nil
}

func (s *Store) GetBallotByCaster(
	_ context.Context,
	motionID string,
	memberID string,
) (entities.Ballot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := ballotKey{motionID: strings.TrimSpace(motionID), memberID: strings.TrimSpace(memberID)}
	ballotID, ok := s.ballotIndex[key]
	if !ok {
		return entities.Ballot{}, false, nil
	}
	return s.ballots[ballotID], true, nil
}

func (s *Store) ListBallotsByMotion(_ context.Context, motionID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if ballot.MotionID == strings.TrimSpace(motionID) {
			items = append(items, ballot)
		}
	}
	sortBallotsByCast(items)
	return items, nil
}

func (s *Store) ListAllBallotsByMotion(_ context.Context, motionID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	motionID = strings.TrimSpace(motionID)
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if ballot.MotionID == motionID {
			items = append(items, ballot)
		}
	}
	for _, ballot := range s.extraBallots {
		if ballot.MotionID == motionID {
			items = append(items, ballot)
		}
	}
	sortBallotsByCast(items)
	return items, nil
}

func (s *Store) SaveAttendance(_ context.Context, record entities.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meetingID := strings.TrimSpace(record.MeetingID)
	sheet, ok := s.attendance[meetingID]
	if !ok {
		sheet = make(map[string]entities.AttendanceRecord)
		s.attendance[meetingID] = sheet
	}
	sheet[strings.TrimSpace(record.MemberID)] = record
	return nil
}

func (s *Store) ListAttendanceByMeeting(_ context.Context, meetingID string) ([]entities.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sheet := s.attendance[strings.TrimSpace(meetingID)]
	items := make([]entities.AttendanceRecord, 0, len(sheet))
	for _, record := range sheet {
		items = append(items, record)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].MemberID < items[j].MemberID
	})
	return items, nil
}

func (s *Store) ListActiveMemberIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.roster...), nil
}

func (s *Store) SaveGrant(_ context.Context, grant entities.ProxyGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{
		meetingID: strings.TrimSpace(grant.MeetingID),
		giverID:   strings.TrimSpace(grant.GiverMemberID),
		scope:     strings.TrimSpace(grant.Scope),
	}
	s.grants[key] = grant
	return nil
}

func (s *Store) GetGrantByGiverScope(
	_ context.Context,
	meetingID, giverMemberID, scope string,
) (entities.ProxyGrant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := grantKey{
		meetingID: strings.TrimSpace(meetingID),
		giverID:   strings.TrimSpace(giverMemberID),
		scope:     strings.TrimSpace(scope),
	}
	grant, ok := s.grants[key]
	return grant, ok, nil
}

func (s *Store) ListGrantsByMeeting(_ context.Context, meetingID string) ([]entities.ProxyGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.ProxyGrant, 0)
	for key, grant := range s.grants {
		if key.meetingID == strings.TrimSpace(meetingID) {
			items = append(items, grant)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].GiverMemberID != items[j].GiverMemberID {
			return items[i].GiverMemberID < items[j].GiverMemberID
		}
		return items[i].Scope < items[j].Scope
	})
	return items, nil
}

func (s *Store) IssueToken(_ context.Context, token entities.VoteToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[strings.TrimSpace(token.TokenHash)] = token
	return nil
}

func (s *Store) GetToken(_ context.Context, tokenHash string) (entities.VoteToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[strings.TrimSpace(tokenHash)]
	if !ok {
		return entities.VoteToken{}, domainerrors.ErrTokenNotFound
	}
	return token, nil
}

func (s *Store) MarkTokenUsed(_ context.Context, tokenHash string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markTokenUsedLocked(tokenHash, usedAt)
}

func (s *Store) markTokenUsedLocked(tokenHash string, usedAt time.Time) error {
	key := strings.TrimSpace(tokenHash)
	token, ok := s.tokens[key]
	if !ok {
		return domainerrors.ErrTokenNotFound
	}
	if token.Status == entities.TokenStatusUsed {
		return domainerrors.ErrTokenConsumed
	}
	if token.Status == entities.TokenStatusRevoked {
		return domainerrors.ErrTokenRevoked
	}
	used := usedAt.UTC()
	token.Status = entities.TokenStatusUsed
	token.UsedAt = &used
	s.tokens[key] = token
	return nil
}

func (s *Store) RevokeTokensForMotion(_ context.Context, motionID string, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeTokensLocked(motionID), nil
}

func (s *Store) revokeTokensLocked(motionID string) int {
	revoked := 0
	for key, token := range s.tokens {
		if token.MotionID != strings.TrimSpace(motionID) {
			continue
		}
		if token.Status != entities.TokenStatusActive {
			continue
		}
		token.Status = entities.TokenStatusRevoked
		s.tokens[key] = token
		revoked++
	}
	return revoked
}

// CommitCast applies the cast write set under the store lock. The duplicate
// check runs before the token flips so a losing insert leaves the token
// active.
func (s *Store) CommitCast(_ context.Context, write ports.CastWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ballotKey{
		motionID: strings.TrimSpace(write.Ballot.MotionID),
		memberID: strings.TrimSpace(write.Ballot.MemberID),
	}
	if _, taken := s.ballotIndex[key]; taken {
		return domainerrors.ErrDuplicateBallot
	}
	if strings.TrimSpace(write.TokenHash) != "" {
		if err := s.markTokenUsedLocked(write.TokenHash, write.UsedAt); err != nil {
			return err
		}
	}
	return s.insertBallotLocked(write.Ballot)
}

// CommitClose applies the close write set under the store lock: revocation,
// result freeze, and the motion close mark land together.
func (s *Store) CommitClose(_ context.Context, write ports.CloseWrite) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := s.revokeTokensLocked(write.Motion.MotionID)
	s.results[strings.TrimSpace(write.Result.MotionID)] = write.Result
	s.motions[strings.TrimSpace(write.Motion.MotionID)] = write.Motion
	return revoked, nil
}

func (s *Store) ListTokensByMotion(_ context.Context, motionID string) ([]entities.VoteToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.VoteToken, 0)
	for _, token := range s.tokens {
		if token.MotionID == strings.TrimSpace(motionID) {
			items = append(items, token)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].TokenHash < items[j].TokenHash
	})
	return items, nil
}

func (s *Store) SaveManualTally(_ context.Context, tally entities.ManualTally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualTallies[strings.TrimSpace(tally.MotionID)] = tally
	return nil
}

func (s *Store) GetManualTally(_ context.Context, motionID string) (entities.ManualTally, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tally, ok := s.manualTallies[strings.TrimSpace(motionID)]
	return tally, ok, nil
}

func (s *Store) SaveOfficialResult(_ context.Context, result entities.OfficialResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(result.MotionID)] = result
	return nil
}

func (s *Store) GetOfficialResult(_ context.Context, motionID string) (entities.OfficialResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[strings.TrimSpace(motionID)]
	return result, ok, nil
}

func (s *Store) GetMeeting(_ context.Context, meetingID string) (ports.MeetingProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meeting, ok := s.meetings[strings.TrimSpace(meetingID)]
	if !ok {
		return ports.MeetingProjection{}, domainerrors.ErrMeetingNotFound
	}
	return meeting, nil
}

func (s *Store) ListVotePolicies(_ context.Context) ([]entities.VotePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.VotePolicy, 0, len(s.votePolicies))
	for _, policy := range s.votePolicies {
		items = append(items, policy)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PolicyID < items[j].PolicyID
	})
	return items, nil
}

func (s *Store) ListQuorumPolicies(_ context.Context) ([]entities.QuorumPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.QuorumPolicy, 0, len(s.quorumPolicies))
	for _, policy := range s.quorumPolicies {
		items = append(items, policy)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PolicyID < items[j].PolicyID
	})
	return items, nil
}

func (s *Store) GetVotePolicy(_ context.Context, policyID string) (entities.VotePolicy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.votePolicies[strings.TrimSpace(policyID)]
	return policy, ok, nil
}

func (s *Store) GetQuorumPolicy(_ context.Context, policyID string) (entities.QuorumPolicy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.quorumPolicies[strings.TrimSpace(policyID)]
	return policy, ok, nil
}

func (s *Store) TenantDefaults(_ context.Context) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultVote, s.defaultQuorum, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists {
		if existing.RequestHash != record.RequestHash || existing.BallotID != record.BallotID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		BallotID:    strings.TrimSpace(record.BallotID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

// ResetMeetingData wipes every row the service holds for a meeting: motions,
// their ballots, tokens, tallies and results, plus attendance and proxy
// grants. The meeting-workflow demo reset calls this through its resetter
// port.
func (s *Store) ResetMeetingData(_ context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meetingID = strings.TrimSpace(meetingID)
	motionIDs := make(map[string]bool)
	for id, motion := range s.motions {
		if motion.MeetingID == meetingID {
			motionIDs[id] = true
			delete(s.motions, id)
		}
	}
	for id, ballot := range s.ballots {
		if motionIDs[ballot.MotionID] {
			delete(s.ballots, id)
			delete(s.ballotIndex, ballotKey{motionID: ballot.MotionID, memberID: ballot.MemberID})
		}
	}
	kept := make([]entities.Ballot, 0, len(s.extraBallots))
	for _, ballot := range s.extraBallots {
		if !motionIDs[ballot.MotionID] {
			kept = append(kept, ballot)
		}
	}
	s.extraBallots = kept
	for hash, token := range s.tokens {
		if motionIDs[token.MotionID] {
			delete(s.tokens, hash)
		}
	}
	for id := range motionIDs {
		delete(s.manualTallies, id)
		delete(s.results, id)
	}
	delete(s.attendance, meetingID)
	for key := range s.grants {
		if key.meetingID == meetingID {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortBallotsByCast(items []entities.Ballot) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].CastAt.Before(items[j].CastAt)
		}
		return items[i].BallotID < items[j].BallotID
	})
}

var (
	_ ports.MotionRepository     = (*Store)(nil)
	_ ports.BallotRepository     = (*Store)(nil)
	_ ports.AttendanceRepository = (*Store)(nil)
	_ ports.ProxyRepository      = (*Store)(nil)
	_ ports.VoteTokenStore       = (*Store)(nil)
	_ ports.CastCommitter        = (*Store)(nil)
	_ ports.CloseCommitter       = (*Store)(nil)
	_ ports.ManualTallyStore     = (*Store)(nil)
	_ ports.OfficialResultStore  = (*Store)(nil)
	_ ports.MeetingReader        = (*Store)(nil)
	_ ports.PolicyProvider       = (*Store)(nil)
	_ ports.IdempotencyStore     = (*Store)(nil)
	_ ports.Clock                = (*Store)(nil)
	_ ports.IDGenerator          = (*Store)(nil)
)
