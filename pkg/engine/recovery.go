package engine

import (
	"context"
	"time"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// Recover reloads paused executions from the durable store after a process
// restart and re-arms their wake-up conditions: timer pauses get their
// deferred timer:expired re-scheduled from the persisted wake-up time
// (firing immediately when already overdue), and human-task pauses keep
// waiting on the approval events. Call once at engine boot.
func (e *Engine) Recover(ctx context.Context) error {
	records, err := e.executions.FindByStatus(ctx, models.ExecutionStatusPaused)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.WakeAt == nil {
			// Human-task pause: the approval subscription resumes it.
			e.logger.Info("recovered paused execution awaiting approval",
				"execution_id", record.ExecutionID)
			continue
		}

		wakeAt := *record.WakeAt
		if !wakeAt.After(time.Now()) {
			// The timer elapsed while the process was down.
			e.logger.Info("recovered overdue timer, resuming",
				"execution_id", record.ExecutionID)
			wakeAt = time.Now()
		} else {
			e.logger.Info("recovered paused execution, re-arming timer",
				"execution_id", record.ExecutionID, "wake_at", wakeAt)
		}
		e.armTimer(record.ExecutionID, wakeAt)
	}

	return nil
}
