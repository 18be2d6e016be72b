package service

import (
	"context"
	"time"

	"sms-screening-service/internal/metrics"
	"sms-screening-service/internal/models"
	"sms-screening-service/internal/prefilter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Classifier produces a verdict for one message and never fails
type Classifier interface {
	Classify(ctx context.Context, text string) models.Verdict
}

// ProgressFunc is called after each row with the number of rows done so far
type ProgressFunc func(processed, total int)

// ResultFunc receives each result in input order as soon as it is final
type ResultFunc func(index int, result models.ResultRecord)

// Screener runs the pre-filter and remote classifier over batches
type Screener struct {
	filter     *prefilter.Filter
	classifier Classifier
	metrics    *metrics.ScreeningMetrics
	logger     *zap.Logger
	workers    int
	rowTimeout time.Duration
}

// ScreenerConfig tunes batch execution
type ScreenerConfig struct {
	// Workers bounds concurrent remote calls; 0 or 1 runs rows strictly one after another
	Workers int
	// RowTimeout caps a single remote classification; 0 means no limit
	RowTimeout time.Duration
}

// NewScreener creates a new screener. m may be nil.
func NewScreener(
	filter *prefilter.Filter,
	classifier Classifier,
	m *metrics.ScreeningMetrics,
	cfg ScreenerConfig,
	logger *zap.Logger,
) *Screener {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Screener{
		filter:     filter,
		classifier: classifier,
		metrics:    m,
		logger:     logger,
		workers:    cfg.Workers,
		rowTimeout: cfg.RowTimeout,
	}
}

// ClassifyOne screens a single record
func (s *Screener) ClassifyOne(ctx context.Context, rec models.InputRecord) models.ResultRecord {
	return models.NewResultRecord(rec, s.verdict(ctx, rec.Text))
}

// verdict applies the pre-filter and only falls through to the remote classifier
// when no denylisted term matched
func (s *Screener) verdict(ctx context.Context, text string) models.Verdict {
	if v, ok := s.filter.Check(text); ok {
		s.metrics.RecordVerdict(metrics.SourcePrefilter, v)
		return v
	}

	if s.rowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.rowTimeout)
		defer cancel()
	}

	s.metrics.InFlight(1)
	start := time.Now()
	v := s.classifier.Classify(ctx, text)
	s.metrics.ObserveRemote(start)
	s.metrics.InFlight(-1)

	s.metrics.RecordVerdict(metrics.SourceRemote, v)
	return v
}

// Run screens records and returns one result per record in input order.
//
// progress (and onResult, if given) is invoked for row i before row i+1 is reported.
// If ctx is cancelled, the results produced so far are returned with ctx.Err();
// a row whose classification was interrupted by the cancellation is not included.
func (s *Screener) Run(ctx context.Context, records []models.InputRecord, progress ProgressFunc, onResult ResultFunc) ([]models.ResultRecord, error) {
	start := time.Now()
	total := len(records)

	s.logger.Info("Batch started",
		zap.Int("rows", total),
		zap.Int("workers", s.workers))

	results := make([]models.ResultRecord, 0, total)
	var err error
	emit := func(i int, res models.ResultRecord) {
		results = append(results, res)
		if onResult != nil {
			onResult(i, res)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	if s.workers == 1 || total < 2 {
		err = s.runSequential(ctx, records, emit)
	} else {
		err = s.runPool(ctx, records, emit)
	}

	outcome := metrics.OutcomeCompleted
	if err != nil {
		outcome = metrics.OutcomeCancelled
		s.logger.Warn("Batch cancelled",
			zap.Int("processed", len(results)),
			zap.Int("rows", total),
			zap.Error(err))
	} else {
		s.logger.Info("Batch completed",
			zap.Int("rows", total),
			zap.Duration("elapsed", time.Since(start)))
	}
	s.metrics.RecordBatch(outcome, len(results), time.Since(start))

	return results, err
}

func (s *Screener) runSequential(ctx context.Context, records []models.InputRecord, emit func(int, models.ResultRecord)) error {
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := s.ClassifyOne(ctx, rec)
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(i, res)
	}
	return nil
}

// runPool classifies up to s.workers rows at once. Completed rows wait in their
// slot until every earlier row has been emitted.
func (s *Screener) runPool(ctx context.Context, records []models.InputRecord, emit func(int, models.ResultRecord)) error {
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan models.ResultRecord, len(records))
	for i := range slots {
		slots[i] = make(chan models.ResultRecord, 1)
	}

	g, gctx := errgroup.WithContext(poolCtx)
	g.SetLimit(s.workers)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i, rec := range records {
			if gctx.Err() != nil {
				return
			}
			i, rec := i, rec
			g.Go(func() error {
				slots[i] <- s.ClassifyOne(gctx, rec)
				return nil
			})
		}
	}()

	defer func() {
		cancel()
		<-dispatched
		g.Wait()
	}()

	for i := range records {
		select {
		case res := <-slots[i]:
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(i, res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
