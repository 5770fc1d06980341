package builder

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

const (
	defaultJanitorInterval  = 10 * time.Minute
	defaultJanitorBatchSize = 500
)

// JanitorOptions задаёт параметры очистки истёкших сессий.
type JanitorOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.SessionMetrics
	Interval  time.Duration
	BatchSize int
}

// JanitorOption настраивает Janitor.
type JanitorOption func(*JanitorOptions)

func WithJanitorLogger(logger *log.Entry) JanitorOption {
	return func(opts *JanitorOptions) { opts.Logger = logger }
}

func WithJanitorMetrics(m *metrics.SessionMetrics) JanitorOption {
	return func(opts *JanitorOptions) { opts.Metrics = m }
}

// WithJanitorInterval задаёт интервал между циклами очистки.
func WithJanitorInterval(interval time.Duration) JanitorOption {
	return func(opts *JanitorOptions) { opts.Interval = interval }
}

// WithJanitorBatchSize задаёт размер порции одного удаления.
func WithJanitorBatchSize(batchSize int) JanitorOption {
	return func(opts *JanitorOptions) { opts.BatchSize = batchSize }
}

// Janitor периодически удаляет истёкшие сессии сборки.
type Janitor struct {
	sessions  domain.SessionStore
	logger    *log.Entry
	metrics   *metrics.SessionMetrics
	interval  time.Duration
	batchSize int
}

// NewJanitor создаёт воркер очистки сессий.
func NewJanitor(sessions domain.SessionStore, options ...JanitorOption) *Janitor {
	opts := JanitorOptions{
		Interval:  defaultJanitorInterval,
		BatchSize: defaultJanitorBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "session-janitor")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultJanitorInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultJanitorBatchSize
	}

	return &Janitor{
		sessions:  sessions,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
}

// Run чистит сессии до отмены ctx.
func (j *Janitor) Run(ctx context.Context) {
	if j.sessions == nil {
		j.logger.Warn("session janitor is disabled: store is nil")
		return
	}

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	deleted, err := j.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			j.logger.WithError(err).Warn("session cleanup run failed")
		}
		return
	}
	if deleted > 0 {
		j.logger.WithField("deleted", deleted).Info("expired builder sessions removed")
	}
}

// DeleteExpired удаляет все сессии, истёкшие до before, порциями batchSize.
func (j *Janitor) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := j.sessions.DeleteExpired(ctx, before, j.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if j.metrics != nil {
			j.metrics.RecordPurged(deleted)
		}
		if deleted < j.batchSize {
			return total, nil
		}
	}
}
