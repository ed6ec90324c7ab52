package worker

import (
	"context"
	"errors"
	"time"

	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/sirupsen/logrus"
)

// Source is the queue a worker drains
type Source interface {
	Dequeue(ctx context.Context, queueName string) (string, error)
}

// DeliverFunc delivers one raw job. A returned error triggers a retry.
type DeliverFunc func(ctx context.Context, job string) error

// Worker drains one queue and delivers each job with retries
type Worker struct {
	Name       string
	Queue      Source
	QueueName  string
	Deliver    DeliverFunc
	MaxRetries int
	Backoff    func(attempt int) time.Duration
	Logger     *logrus.Logger
}

// New creates a worker with linear backoff (1s, 3s, 5s, ...)
func New(name string, q Source, queueName string, deliver DeliverFunc, maxRetries int, logger *logrus.Logger) *Worker {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Worker{
		Name:       name,
		Queue:      q,
		QueueName:  queueName,
		Deliver:    deliver,
		MaxRetries: maxRetries,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(2*attempt+1) * time.Second
		},
		Logger: logger,
	}
}

// Start runs the dequeue loop until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	w.Logger.WithField("worker", w.Name).Info("Starting background worker")
	for {
		select {
		case <-ctx.Done():
			w.Logger.WithField("worker", w.Name).Info("Worker stopped")
			return
		default:
		}

		job, err := w.Queue.Dequeue(ctx, w.QueueName)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			w.Logger.WithError(err).WithField("worker", w.Name).Warn("Worker dequeue error")
			sleep(ctx, time.Second)
			continue
		}

		go w.Process(ctx, job)
	}
}

// Process delivers one job, retrying up to MaxRetries times. It reports
// whether delivery eventually succeeded.
func (w *Worker) Process(ctx context.Context, job string) bool {
	log := w.Logger.WithField("worker", w.Name)
	for attempt := 0; attempt < w.MaxRetries; attempt++ {
		err := w.Deliver(ctx, job)
		if err == nil {
			log.Debug("Job delivered")
			return true
		}
		log.WithError(err).Warnf("Delivery failed (attempt %d/%d)", attempt+1, w.MaxRetries)
		if attempt+1 < w.MaxRetries && !sleep(ctx, w.Backoff(attempt)) {
			break
		}
	}
	log.WithField("job", job).Error("Giving up on job")
	return false
}

// sleep waits for d or until ctx ends, reporting whether the full wait elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
