package tasks

import (
	"context"
	"time"

	"github.com/flyerflutter/dealcomb/app/database"
	"github.com/flyerflutter/dealcomb/app/refresh"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background task processing.
// Example usage:
//
//	scheduler := NewScheduler(areas, areaRepo, coordinator, dealRepo)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshAreaTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Refresher is the single entry point for populating an area's deals.
// Scheduled and on-demand refreshes both funnel through it.
type Refresher interface {
	EnsureFresh(ctx context.Context, areaKey string) (refresh.Status, error)
}

type Pruner interface {
	PruneExpired(now time.Time) (int64, error)
}

type AreaFreshnessReader interface {
	Get(areaKey string) (*database.AreaFreshness, error)
}
