package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/shieldforce/guard-dispatch/pkg/push"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// sliceSource hands out jobs in order, then reports ErrEmpty
type sliceSource struct {
	mu   sync.Mutex
	jobs []string
}

func (s *sliceSource) Dequeue(ctx context.Context, queueName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		time.Sleep(time.Millisecond)
		return "", queue.ErrEmpty
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func noBackoff(w *Worker) *Worker {
	w.Backoff = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_ProcessRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	w := noBackoff(New("test", &sliceSource{}, "q", func(ctx context.Context, job string) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("gateway down")
		}
		return nil
	}, 5, quietLogger()))

	assert.True(t, w.Process(context.Background(), "{}"))
	assert.Equal(t, int32(3), attempts)
}

func TestWorker_ProcessGivesUp(t *testing.T) {
	var attempts int32
	w := noBackoff(New("test", &sliceSource{}, "q", func(ctx context.Context, job string) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("gateway down")
	}, 3, quietLogger()))

	assert.False(t, w.Process(context.Background(), "{}"))
	assert.Equal(t, int32(3), attempts)
}

func TestWorker_MinimumOneAttempt(t *testing.T) {
	w := New("test", &sliceSource{}, "q", func(context.Context, string) error { return nil }, 0, quietLogger())
	assert.Equal(t, 1, w.MaxRetries)
}

func TestWorker_StartDrainsQueue(t *testing.T) {
	src := &sliceSource{jobs: []string{"a", "b", "c"}}
	var mu sync.Mutex
	var delivered []string

	w := New("test", src, "q", func(ctx context.Context, job string) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, job)
		return nil
	}, 1, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, delivered)
}

type recordingSender struct {
	msgs []push.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg push.Message) error {
	s.msgs = append(s.msgs, msg)
	return s.err
}

func TestPushDelivery(t *testing.T) {
	sender := &recordingSender{}
	deliver := PushDelivery(sender)
	userID := uuid.New()

	job := `{"notification_id":"` + uuid.NewString() + `","user_id":"` + userID.String() +
		`","title":"Shift offered","body":"New shift","data":{"kind":"shift_offered"}}`
	require.NoError(t, deliver(context.Background(), job))
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, userID.String(), sender.msgs[0].UserID)
	assert.Equal(t, "shift_offered", sender.msgs[0].Data["kind"])

	t.Run("Malformed job is dropped", func(t *testing.T) {
		require.NoError(t, deliver(context.Background(), "not json"))
		assert.Len(t, sender.msgs, 1)
	})

	t.Run("Send errors are retried", func(t *testing.T) {
		sender.err = errors.New("503")
		assert.Error(t, deliver(context.Background(), job))
	})
}

type recordingPoster struct {
	bodies []string
	err    error
}

func (p *recordingPoster) Post(ctx context.Context, body string) error {
	p.bodies = append(p.bodies, body)
	return p.err
}

func TestWebhookDelivery(t *testing.T) {
	poster := &recordingPoster{}
	deliver := WebhookDelivery(poster)

	event := `{"shift_id":"` + uuid.NewString() + `","total_pay":148}`
	require.NoError(t, deliver(context.Background(), event))
	assert.Equal(t, []string{event}, poster.bodies)

	require.NoError(t, deliver(context.Background(), "{broken"))
	assert.Len(t, poster.bodies, 1)

	poster.err = errors.New("timeout")
	assert.Error(t, deliver(context.Background(), event))
}
