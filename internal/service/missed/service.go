package missed

import (
	"context"
	"fmt"
	"time"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/repository"
)

// Service computes the live set of missed checkups. Detection is a pure
// read: it produces a report and never mutates the store.
type Service struct {
	appts repository.AppointmentRepository
	now   func() time.Time
}

func NewService(appts repository.AppointmentRepository) *Service {
	return &Service{
		appts: appts,
		now:   time.Now,
	}
}

// WithClock injects the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Detect reports every checkup-pending appointment dated strictly before
// today, bucketed by recency. An appointment dated today is never missed.
func (s *Service) Detect(ctx context.Context) (*model.MissedReport, error) {
	today := model.DateOf(s.now())

	missed, err := s.appts.ListMissed(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to detect missed appointments: %w", err)
	}

	report := &model.MissedReport{
		Appointments: missed,
		GeneratedAt:  s.now(),
	}

	for _, m := range missed {
		m.Bucket = model.BucketFor(m.AppointmentDate, today)
		report.Counts.Unrescheduled++
		if m.Bucket == model.BucketYesterday {
			report.Counts.YesterdayUnrescheduled++
		}
	}

	return report, nil
}
