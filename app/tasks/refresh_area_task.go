package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flyerflutter/dealcomb/app/refresh"
)

type RefreshAreaTask struct {
	Task
	refresher Refresher
}

func NewRefreshAreaTask(areaKey string, refresher Refresher) *RefreshAreaTask {
	return &RefreshAreaTask{
		Task:      NewTask(TaskTypeRefreshArea, areaKey),
		refresher: refresher,
	}
}

func (t *RefreshAreaTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	status, err := t.refresher.EnsureFresh(ctx, t.AreaKey)
	if err != nil {
		// A cold area with a dead upstream has nothing to refresh;
		// retrying from the scheduler won't help until upstream
		// recovers, so the next interval handles it.
		if errors.Is(err, refresh.ErrNoDataAvailable) {
			slog.Warn("Task completed without data", "type", "RefreshArea", "area", t.AreaKey, "duration", t.GetDuration())
			return nil
		}
		return fmt.Errorf("failed to refresh area: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshArea",
		"area", t.AreaKey,
		"duration", t.GetDuration(),
		"status", string(status))

	return nil
}
