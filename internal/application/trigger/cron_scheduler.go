package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronScheduler starts workflow executions on cron schedules.
type CronScheduler struct {
	cron    *cron.Cron
	starter Starter
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID // schedule ID -> cron entry
}

// NewCronScheduler creates a scheduler. Schedules use the standard 5-field
// cron syntax plus the @every descriptors.
func NewCronScheduler(starter Starter, logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{
		cron:    cron.New(),
		starter: starter,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing schedules.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("cron scheduler stop timed out")
	}
}

// AddSchedule registers a cron schedule that triggers workflowID with the
// given payload. scheduleID must be unique; re-adding replaces the entry.
func (s *CronScheduler) AddSchedule(scheduleID, workflowID, spec string, payload map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(old)
		delete(s.entries, scheduleID)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		data := map[string]interface{}{
			"trigger":     "schedule",
			"scheduleId":  scheduleID,
			"scheduledAt": time.Now().Format(time.RFC3339),
		}
		for k, v := range payload {
			data[k] = v
		}

		executionID, err := s.starter.StartWorkflow(context.Background(), workflowID, data)
		if err != nil {
			s.logger.Error("scheduled trigger failed",
				"schedule_id", scheduleID, "workflow_id", workflowID, "error", err)
			return
		}
		s.logger.Info("scheduled trigger fired",
			"schedule_id", scheduleID, "workflow_id", workflowID, "execution_id", executionID)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s.entries[scheduleID] = entryID
	return nil
}

// RemoveSchedule removes a schedule. Removing an unknown ID is a no-op.
func (s *CronScheduler) RemoveSchedule(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
}

// Count returns the number of registered schedules.
func (s *CronScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
