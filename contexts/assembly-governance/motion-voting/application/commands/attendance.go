package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/ports"
)

// RecordAttendanceCommand carries VotingPower as a pointer so an explicit
// zero (present but without voting weight) stays distinct from an omitted
// field, which defaults to 1.
type RecordAttendanceCommand struct {
	MeetingID   string
	MemberID    string
	Mode        string
	VotingPower *float64
}

// AttendanceUseCase maintains the meeting attendance sheet the eligibility
// computation reads from. Re-recording a member overwrites their row.
type AttendanceUseCase struct {
	Attendance ports.AttendanceRepository
	Meetings   ports.MeetingReader
	Audit      ports.AuditLog
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (uc AttendanceUseCase) Record(ctx context.Context, cmd RecordAttendanceCommand) (entities.AttendanceRecord, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	memberID := strings.TrimSpace(cmd.MemberID)
	mode := entities.AttendanceMode(strings.ToLower(strings.TrimSpace(cmd.Mode)))
	if meetingID == "" || memberID == "" || (cmd.VotingPower != nil && *cmd.VotingPower < 0) {
		return entities.AttendanceRecord{}, domainerrors.ErrInvalidAttendanceInput
	}
	switch mode {
	case entities.ModePresent, entities.ModeRemote, entities.ModeProxy, entities.ModeAbsent:
	default:
		return entities.AttendanceRecord{}, domainerrors.ErrInvalidAttendanceInput
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return entities.AttendanceRecord{}, err
	}
	if nonVotableMeetingStatuses[meeting.Status] {
		return entities.AttendanceRecord{}, domainerrors.ErrMeetingNotVotable
	}

	power := 1.0
	if cmd.VotingPower != nil {
		power = *cmd.VotingPower
	}
	record := entities.AttendanceRecord{
		MeetingID:   meetingID,
		MemberID:    memberID,
		Mode:        mode,
		VotingPower: power,
		UpdatedAt:   uc.now(),
	}
	if err := uc.Attendance.SaveAttendance(ctx, record); err != nil {
		return entities.AttendanceRecord{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "attendance.recorded", meetingID, map[string]any{
		"member_id":    memberID,
		"mode":         string(mode),
		"voting_power": power,
	})
	logger.Info("attendance recorded",
		"event", "voting_attendance_recorded",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"meeting_id", meetingID,
		"member_id", memberID,
		"mode", string(mode),
		"voting_power", power,
	)
	return record, nil
}

func (uc AttendanceUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
