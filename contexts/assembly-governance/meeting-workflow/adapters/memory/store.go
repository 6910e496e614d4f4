// Package memory offers an in-memory meeting store for demos and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	"agora/contexts/assembly-governance/meeting-workflow/ports"
)

// Store keeps meetings in a map guarded by a read-write mutex. It doubles as
// the clock and id generator so a demo module needs nothing else.
type Store struct {
	mu       sync.RWMutex
	meetings map[string]entities.Meeting
}

func NewStore(seed []entities.Meeting) *Store {
	store := &Store{
		meetings: make(map[string]entities.Meeting, len(seed)),
	}
	for _, meeting := range seed {
		store.meetings[meeting.MeetingID] = meeting
	}
	return store
}

func (s *Store) SaveMeeting(_ context.Context, meeting entities.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.MeetingID] = meeting
	return nil
}

func (s *Store) GetMeeting(_ context.Context, meetingID string) (entities.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meeting, ok := s.meetings[meetingID]
	if !ok {
		return entities.Meeting{}, domainerrors.ErrMeetingNotFound
	}
	return meeting, nil
}

func (s *Store) ListMeetings(_ context.Context) ([]entities.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meetings := make([]entities.Meeting, 0, len(s.meetings))
	for _, meeting := range s.meetings {
		meetings = append(meetings, meeting)
	}
	return meetings, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var (
	_ ports.MeetingRepository = (*Store)(nil)
	_ ports.Clock             = (*Store)(nil)
	_ ports.IDGenerator       = (*Store)(nil)
)
