package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Tap hands reports to the reporter off the response path. Failures are
// logged and dropped.
type Tap struct {
	reporter Reporter
	logger   *zap.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewTap(reporter Reporter, logger *zap.Logger, timeout time.Duration) *Tap {
	if reporter == nil {
		reporter = NoopReporter{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Tap{reporter: reporter, logger: logger, timeout: timeout}
}

// Dispatch returns immediately. The report runs detached from any request
// context so a finished response does not cancel it.
func (t *Tap) Dispatch(r Report) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := t.reporter.Report(ctx, r); err != nil {
			t.logger.Warn("Failed to report usage",
				zap.String("model", r.Model),
				zap.String("provider", r.Provider),
				zap.Int("input_tokens", r.InputTokens),
				zap.Int("output_tokens", r.OutputTokens),
				zap.Error(err),
			)
		}
	}()
}

// Drain waits for in-flight dispatches or until ctx is done.
func (t *Tap) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
