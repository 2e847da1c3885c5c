package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flyerflutter/dealcomb/app/area"
	"github.com/flyerflutter/dealcomb/app/cfg"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const pruneInterval = 24 * time.Hour

type Scheduler struct {
	areas       *area.ConfigCache
	areaRepo    AreaFreshnessReader
	refresher   Refresher
	pruner      Pruner
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	lastPruneAt time.Time
}

func NewScheduler(areas *area.ConfigCache, areaRepo AreaFreshnessReader, refresher Refresher, pruner Pruner) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		areas:       areas,
		areaRepo:    areaRepo,
		refresher:   refresher,
		pruner:      pruner,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	areaConfigs := s.areas.GetEnabledConfigs()
	if len(areaConfigs) == 0 {
		slog.Debug("No enabled area configurations found")
	}

	for _, areaConfig := range areaConfigs {
		refreshTask := NewRefreshAreaTask(areaConfig.Key, s.refresher)
		if err := s.EnqueueTask(refreshTask); err != nil {
			slog.Warn("Failed to enqueue RefreshAreaTask", "area", areaConfig.Key, "error", err)
		}
	}

	s.lastPruneAt = time.Now().UTC()
	if err := s.EnqueueTask(NewPruneDealsTask(s.pruner)); err != nil {
		slog.Warn("Failed to enqueue PruneDealsTask", "error", err)
	}
}

func (s *Scheduler) enqueueTasks() {
	areaConfigs := s.areas.GetEnabledConfigs()

	for _, areaConfig := range areaConfigs {
		if !s.areaDue(areaConfig) {
			slog.Debug("Area not due for refresh yet", "area", areaConfig.Key)
			continue
		}

		refreshTask := NewRefreshAreaTask(areaConfig.Key, s.refresher)
		if err := s.EnqueueTask(refreshTask); err != nil {
			slog.Warn("Failed to enqueue RefreshAreaTask", "area", areaConfig.Key, "error", err)
		}
	}

	now := time.Now().UTC()
	if now.Sub(s.lastPruneAt) >= pruneInterval {
		s.lastPruneAt = now
		if err := s.EnqueueTask(NewPruneDealsTask(s.pruner)); err != nil {
			slog.Warn("Failed to enqueue PruneDealsTask", "error", err)
		}
	}
}

func (s *Scheduler) areaDue(areaConfig *area.Config) bool {
	rec, err := s.areaRepo.Get(areaConfig.Key)
	if err != nil {
		slog.Warn("Failed to get area freshness, skipping", "area", areaConfig.Key, "error", err)
		return false
	}
	if rec == nil || rec.LastRefreshedAt == nil {
		return true
	}

	interval := time.Duration(areaConfig.Settings.RefreshInterval) * time.Second
	return time.Now().UTC().Sub(*rec.LastRefreshedAt) >= interval
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "area", task.GetAreaKey(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
