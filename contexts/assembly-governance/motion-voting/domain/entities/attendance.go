package entities

import "time"

type AttendanceMode string

const (
	ModePresent AttendanceMode = "present"
	ModeRemote  AttendanceMode = "remote"
	ModeProxy   AttendanceMode = "proxy"
	ModeAbsent  AttendanceMode = "absent"
)

// CountsPresent reports whether the mode contributes to quorum.
func (m AttendanceMode) CountsPresent() bool {
	switch m {
	case ModePresent, ModeRemote, ModeProxy:
		return true
	default:
		return false
	}
}

type AttendanceRecord struct {
	MeetingID   string
	MemberID    string
	Mode        AttendanceMode
	VotingPower float64
	UpdatedAt   time.Time
}

// Eligibility is the attendance-derived voting picture for one meeting.
// Fallback marks that the eligible set could not be determined from
// attendance rows and the full active-member roster was used instead; a
// fallback eligibility is never treated as trustworthy by readiness checks.
type Eligibility struct {
	PresentCount     int
	PresentWeight    float64
	TotalCount       int
	TotalWeight      float64
	PresentMemberIDs []string
	AbsentMemberIDs  []string
	QuorumRatio      float64
	QuorumOk         bool
	Fallback         bool
}
