package research

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 10
)

// Queue lists drafts waiting for research.
type Queue interface {
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Draft, error)
}

// Runner researches one draft.
type Runner interface {
	Run(ctx context.Context, id uuid.UUID) (*domain.Draft, error)
}

// WorkerConfig holds polling options.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Worker polls for drafts marked researching and runs them one at a time,
// oldest first. Drafts left researching by a crash are picked up again.
type Worker struct {
	queue  Queue
	runner Runner
	logger logger.Logger

	pollInterval time.Duration
	batchSize    int

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewWorker creates a research worker.
func NewWorker(queue Queue, runner Runner, cfg WorkerConfig, log logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Worker{
		queue:        queue,
		runner:       runner,
		logger:       log,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Go(func() { w.run(ctx) })

	w.logger.Info("Research worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize))
}

// Stop waits for the in-flight draft to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Research worker stopped")
}

// IsRunning reports whether the polling loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.processOnce(ctx, nil)

	for {
		select {
		case <-ticker.C:
			w.processOnce(ctx, nil)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepResult counts one sweep's outcomes.
type SweepResult struct {
	Succeeded int
	Failed    int
}

// ProcessAll drains the queue once, for one-shot CLI use. A draft seen
// twice (its failure could not be recorded) ends the sweep.
func (w *Worker) ProcessAll(ctx context.Context) (SweepResult, error) {
	var total SweepResult
	seen := make(map[uuid.UUID]struct{})

	for ctx.Err() == nil {
		res, fresh, err := w.processBatch(ctx, seen)
		total.Succeeded += res.Succeeded
		total.Failed += res.Failed
		if err != nil {
			return total, err
		}
		if fresh == 0 {
			break
		}
	}
	return total, ctx.Err()
}

func (w *Worker) processOnce(ctx context.Context, seen map[uuid.UUID]struct{}) {
	if _, _, err := w.processBatch(ctx, seen); err != nil {
		w.logger.Error("Failed to fetch queued drafts", logger.Error(err))
	}
}

// processBatch runs every queued draft not in seen and returns how many
// were new.
func (w *Worker) processBatch(ctx context.Context, seen map[uuid.UUID]struct{}) (SweepResult, int, error) {
	var res SweepResult

	queued, err := w.queue.ListByStatus(ctx, domain.StatusResearching, w.batchSize)
	if err != nil {
		return res, 0, err
	}
	if len(queued) > 0 {
		w.logger.Debug("Processing queued drafts", logger.Int("count", len(queued)))
	}

	fresh := 0
	for i := range queued {
		id := queued[i].ID
		if seen != nil {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		fresh++

		if ctx.Err() != nil {
			break
		}
		select {
		case <-w.stopChan:
			return res, fresh, nil
		default:
		}

		if _, runErr := w.runner.Run(ctx, id); runErr != nil {
			res.Failed++
			w.logger.Warn("Queued draft failed",
				logger.String("draft_id", id.String()),
				logger.Error(runErr))
			continue
		}
		res.Succeeded++
	}
	return res, fresh, nil
}
