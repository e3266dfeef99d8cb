package builtin

import (
	"context"
	"time"

	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// PauseReasonTimer is the pause reason recorded for long delays.
const PauseReasonTimer = "Waiting for timer"

// InlineSleepLimit is the threshold below which the handler sleeps inline
// instead of pausing the execution. Delays of exactly this length pause.
const InlineSleepLimit = 60 * time.Second

// TimerHandler delays the execution. Short delays sleep inline; long delays
// pause the execution with a durable wake-up time so they survive restarts.
type TimerHandler struct{}

// NewTimerHandler creates a timer handler.
func NewTimerHandler() *TimerHandler {
	return &TimerHandler{}
}

// Execute sleeps or pauses depending on the configured delay.
func (h *TimerHandler) Execute(ctx context.Context, node *models.Node, _ *models.ExecutionContext) (*handler.Result, error) {
	delay, ok := handler.ConfigFloat(node.Config, "delay")
	if !ok || delay <= 0 {
		return handler.Errorf("timer requires a positive delay"), nil
	}

	unit := handler.ConfigStringDefault(node.Config, "unit", "seconds")
	duration, err := timerDuration(delay, unit)
	if err != nil {
		return handler.Errorf("%v", err), nil
	}

	if duration < InlineSleepLimit {
		select {
		case <-time.After(duration):
		case <-ctx.Done():
			return handler.Errorf("timer interrupted: %v", ctx.Err()), nil
		}
		return handler.Success(map[string]interface{}{
			"waited":   duration.Milliseconds(),
			"unit":     unit,
			"deferred": false,
		}), nil
	}

	wakeAt := time.Now().Add(duration)
	return handler.Pause(PauseReasonTimer, map[string]interface{}{
		"wake_at":  wakeAt.Format(time.RFC3339Nano),
		"delay_ms": duration.Milliseconds(),
	}), nil
}

func timerDuration(delay float64, unit string) (time.Duration, error) {
	switch unit {
	case "milliseconds":
		return time.Duration(delay * float64(time.Millisecond)), nil
	case "seconds":
		return time.Duration(delay * float64(time.Second)), nil
	case "minutes":
		return time.Duration(delay * float64(time.Minute)), nil
	case "hours":
		return time.Duration(delay * float64(time.Hour)), nil
	default:
		return 0, &models.ValidationError{Field: "unit", Message: "must be one of milliseconds, seconds, minutes, hours"}
	}
}
