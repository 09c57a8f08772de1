package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const sweepBatch = 100

// Worker fires due visibility timers, from the task queue or a sweep.
type Worker struct {
	svc    *Service
	logger *zap.Logger
}

func NewWorker(svc *Service, logger *zap.Logger) *Worker {
	return &Worker{svc: svc, logger: logger}
}

func (w *Worker) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReviewVisibility, w.HandleVisibilityTask)
	return mux
}

func (w *Worker) HandleVisibilityTask(ctx context.Context, task *asynq.Task) error {
	var p VisibilityPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypeReviewVisibility, err, asynq.SkipRetry)
	}
	return w.fire(ctx, p.BookingID)
}

// Sweep runs every due job still pending and returns how many succeeded.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	jobs, err := w.svc.timer.Due(ctx, w.svc.now(), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("load due jobs: %w", err)
	}

	fired := 0
	for _, job := range jobs {
		if err := w.fire(ctx, job.BookingID); err != nil {
			continue
		}
		fired++
	}
	if len(jobs) > 0 {
		w.logger.Info("visibility sweep finished", zap.Int("due", len(jobs)), zap.Int("fired", fired))
	}
	return fired, nil
}

func (w *Worker) fire(ctx context.Context, bookingID uint) error {
	v, err := w.svc.Reevaluate(ctx, bookingID)
	if errors.Is(err, apperr.ErrNotFound) {
		w.logger.Warn("visibility timer for missing booking", zap.Uint("booking_id", bookingID))
		return w.svc.timer.Complete(ctx, bookingID, w.svc.now())
	}
	if err != nil {
		w.logger.Warn("visibility evaluation failed", zap.Uint("booking_id", bookingID), zap.Error(err))
		if failErr := w.svc.timer.Fail(ctx, bookingID, err); failErr != nil {
			w.logger.Error("record timer failure", zap.Uint("booking_id", bookingID), zap.Error(failErr))
		}
		return err
	}
	if err := w.svc.timer.Complete(ctx, bookingID, w.svc.now()); err != nil {
		return fmt.Errorf("complete visibility job: %w", err)
	}
	w.logger.Debug("visibility timer fired",
		zap.Uint("booking_id", bookingID),
		zap.Bool("visible", v.Visible),
		zap.Int("flipped", v.Flipped),
	)
	return nil
}
