package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/anthropic-gateway/internal/store"
	"github.com/nulzo/anthropic-gateway/internal/store/model"
	"github.com/nulzo/anthropic-gateway/internal/usage"
	"go.uber.org/zap"
)

// ErrStopped is returned by Report once the ingestor has been stopped.
var ErrStopped = errors.New("usage ingestor stopped")

// Ingestor batches usage reports into the store. It satisfies usage.Reporter.
type Ingestor interface {
	usage.Reporter
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	records   chan *model.UsageRecord
	batchSize int
	flushTime time.Duration

	// mu guards closed and the close of records against concurrent sends
	mu     sync.RWMutex
	closed bool

	done chan struct{}
	now  func() time.Time
}

func NewIngestor(logger *zap.Logger, repo store.Repository) Ingestor {
	return newIngestor(logger, repo, 10000, 50, 5*time.Second)
}

func newIngestor(logger *zap.Logger, repo store.Repository, buffer, batchSize int, flushTime time.Duration) *ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		records:   make(chan *model.UsageRecord, buffer),
		batchSize: batchSize,
		flushTime: flushTime,
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Report queues the record. A full buffer is reported as an error so the tap
// logs the drop.
func (i *ingestor) Report(_ context.Context, r usage.Report) error {
	rec := &model.UsageRecord{
		ID:           uuid.NewString(),
		Model:        r.Model,
		Provider:     r.Provider,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Streamed:     r.Streamed,
		CreatedAt:    i.now().UTC(),
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return fmt.Errorf("%w, dropping record %s", ErrStopped, rec.ID)
	}

	select {
	case i.records <- rec:
		return nil
	default:
		return fmt.Errorf("usage buffer full, dropping record %s", rec.ID)
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

// Stop flushes what is queued and waits for the worker. Reports arriving
// after Stop are rejected with ErrStopped.
func (i *ingestor) Stop() {
	i.mu.Lock()
	if !i.closed {
		i.closed = true
		close(i.records)
	}
	i.mu.Unlock()
	<-i.done
}

func (i *ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]*model.UsageRecord, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		err := i.repo.WithTx(context.Background(), func(tx store.Repository) error {
			for _, rec := range batch {
				if err := tx.Usage().Record(context.Background(), rec); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			i.logger.Error("Failed to persist usage batch", zap.Int("records", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-i.records:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
