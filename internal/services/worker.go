package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/repositories"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(manifestID uuid.UUID)
}

type worker struct {
	manifestRepo    repositories.ManifestRepository
	analyzer        AnalyzerService
	jobQueue        chan uuid.UUID
	concurrency     int
	sweepInterval   time.Duration
	analysisTimeout time.Duration
	wg              sync.WaitGroup
	stopOnce        sync.Once
	stopChan        chan struct{}
	log             *zap.Logger
}

func NewWorker(
	manifestRepo repositories.ManifestRepository,
	analyzer AnalyzerService,
	concurrency int,
	sweepInterval time.Duration,
	analysisTimeout time.Duration,
	log *zap.Logger,
) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Second
	}
	if analysisTimeout <= 0 {
		analysisTimeout = 10 * time.Minute
	}
	return &worker{
		manifestRepo:    manifestRepo,
		analyzer:        analyzer,
		jobQueue:        make(chan uuid.UUID, 100),
		concurrency:     concurrency,
		sweepInterval:   sweepInterval,
		analysisTimeout: analysisTimeout,
		stopChan:        make(chan struct{}),
		log:             log.Named("worker"),
	}
}

func (w *worker) Start(ctx context.Context) {
	w.log.Info("starting worker", zap.Int("concurrency", w.concurrency))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.sweepPendingJobs(ctx)
}

func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		w.log.Info("stopping worker")
		close(w.stopChan)
	})
	w.wg.Wait()
	w.log.Info("worker stopped")
}

// EnqueueJob never blocks. A job dropped on a full queue stays UPLOADED and
// is picked up by the sweeper.
func (w *worker) EnqueueJob(manifestID uuid.UUID) {
	select {
	case <-w.stopChan:
		w.log.Warn("worker stopped, cannot enqueue job", zap.Stringer("manifest_id", manifestID))
		return
	default:
	}

	select {
	case w.jobQueue <- manifestID:
		w.log.Debug("job enqueued", zap.Stringer("manifest_id", manifestID))
	default:
		w.log.Warn("job queue full, deferring to sweeper", zap.Stringer("manifest_id", manifestID))
	}
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()
	log := w.log.With(zap.Int("worker", workerID))

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case manifestID := <-w.jobQueue:
			w.runJob(ctx, log, manifestID)
		}
	}
}

func (w *worker) runJob(ctx context.Context, log *zap.Logger, manifestID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", zap.Stringer("manifest_id", manifestID), zap.Any("panic", r))
			if err := w.manifestRepo.MarkFailed(manifestID, fmt.Sprintf("analysis panicked: %v", r)); err != nil {
				log.Error("failed to record panicked analysis", zap.Stringer("manifest_id", manifestID), zap.Error(err))
			}
		}
	}()

	if err := w.analyzer.AnalyzeManifest(ctx, manifestID); err != nil {
		log.Error("analysis failed", zap.Stringer("manifest_id", manifestID), zap.Error(err))
	}
}

func (w *worker) sweepPendingJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.failStaleAnalyses()

			pending, err := w.manifestRepo.FindPending(time.Now().Add(-w.sweepInterval), 10)
			if err != nil {
				w.log.Warn("failed to fetch pending manifests", zap.Error(err))
				continue
			}
			if len(pending) > 0 {
				w.log.Info("re-enqueueing pending manifests", zap.Int("count", len(pending)))
			}
			for _, m := range pending {
				w.EnqueueJob(m.ID)
			}
		}
	}
}

// failStaleAnalyses fails manifests whose analysis outlived analysisTimeout,
// such as those left behind by a restart. Their pollers then see a terminal
// status instead of waiting forever.
func (w *worker) failStaleAnalyses() {
	msg := fmt.Sprintf("analysis did not finish within %s", w.analysisTimeout)
	failed, err := w.manifestRepo.FailStaleAnalyses(time.Now().Add(-w.analysisTimeout), msg)
	if err != nil {
		w.log.Warn("failed to expire stale analyses", zap.Error(err))
		return
	}
	if failed > 0 {
		w.log.Warn("expired stale analyses", zap.Int64("count", failed))
	}
}
