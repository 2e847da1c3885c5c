package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type PruneDealsTask struct {
	Task
	pruner Pruner
}

func NewPruneDealsTask(pruner Pruner) *PruneDealsTask {
	return &PruneDealsTask{
		Task:   NewTask(TaskTypePruneDeals, ""),
		pruner: pruner,
	}
}

func (t *PruneDealsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	pruned, err := t.pruner.PruneExpired(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to prune expired deals: %w", err)
	}

	slog.Info("Task completed",
		"type", "PruneDeals",
		"duration", t.GetDuration(),
		"pruned", pruned)

	return nil
}
