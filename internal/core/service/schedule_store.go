package service

import (
	"sync/atomic"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
)

// ScheduleSnapshot pairs a schedule with the request that produced it.
type ScheduleSnapshot struct {
	Schedule *domain.Schedule
	Request  *domain.OptimizeRequest
}

// ScheduleStore holds exactly one snapshot. Readers always observe a
// complete pair, either the old one or the new one.
type ScheduleStore struct {
	current atomic.Pointer[ScheduleSnapshot]
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{}
}

func (s *ScheduleStore) Replace(schedule *domain.Schedule, request domain.OptimizeRequest) {
	s.current.Store(&ScheduleSnapshot{
		Schedule: schedule,
		Request:  &request,
	})
}

func (s *ScheduleStore) Current() ScheduleSnapshot {
	snap := s.current.Load()
	if snap == nil {
		return ScheduleSnapshot{}
	}
	return *snap
}

func (s *ScheduleStore) CurrentSlot(now time.Time) (domain.ScheduleSlot, bool) {
	return s.Current().Schedule.SlotAt(now)
}
