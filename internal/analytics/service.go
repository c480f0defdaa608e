package analytics

import (
	"context"
	"fmt"
	"time"

	"taskstats/internal/schema"
)

// Source lists every stored task. storage.Repository satisfies it.
type Source interface {
	ListTasks(ctx context.Context) ([]schema.TaskRecord, error)
}

// Service loads the record set and runs a report over it.
type Service struct {
	src Source
	now func() time.Time
	loc *time.Location
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock used for "today".
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone in which "today" is computed. Default UTC.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService returns a Service reading from src.
func NewService(src Source, opts ...ServiceOption) *Service {
	s := &Service{src: src, now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Today returns the current calendar date in the configured zone.
func (s *Service) Today() schema.Date {
	return schema.NewDate(s.now().In(s.loc))
}

func (s *Service) load(ctx context.Context) ([]schema.TaskRecord, error) {
	tasks, err := s.src.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: load tasks: %w", err)
	}
	return tasks, nil
}

// DepartmentContribution runs DepartmentContribution over stored tasks.
func (s *Service) DepartmentContribution(ctx context.Context) ([]DepartmentHours, error) {
	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return DepartmentContribution(tasks), nil
}

// Workload runs Workload over stored tasks.
func (s *Service) Workload(ctx context.Context, limit int) ([]EmployeeWorkload, error) {
	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Workload(tasks, limit), nil
}

// Completion runs Completion over stored tasks.
func (s *Service) Completion(ctx context.Context) ([]DepartmentCompletion, error) {
	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Completion(tasks), nil
}

// Delayed returns overdue tasks as of Today.
func (s *Service) Delayed(ctx context.Context) ([]schema.TaskRecord, error) {
	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Delayed(tasks, s.Today()), nil
}

// DelayedHours sums overdue hours per employee as of Today.
func (s *Service) DelayedHours(ctx context.Context) ([]EmployeeHours, error) {
	delayed, err := s.Delayed(ctx)
	if err != nil {
		return nil, err
	}
	return HoursByEmployee(delayed), nil
}

// CompletedTaskHours runs CompletedTaskHours over stored tasks.
func (s *Service) CompletedTaskHours(ctx context.Context) ([]TaskHours, error) {
	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return CompletedTaskHours(tasks), nil
}
