package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sms-screening-service/internal/classifier"
	"sms-screening-service/internal/metrics"
	"sms-screening-service/internal/models"
	"sms-screening-service/internal/prefilter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClassifier returns a verdict per text and records every text it saw
type fakeClassifier struct {
	mu       sync.Mutex
	seen     []string
	verdicts map[string]models.Verdict
	delay    func(text string) time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) models.Verdict {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(text)):
		case <-ctx.Done():
			return classifier.FailureVerdict(ctx.Err())
		}
	}

	if v, ok := f.verdicts[text]; ok {
		return v
	}
	return models.Verdict{Case: models.CasePass, Category: models.CategoryOthers, Note: "fine"}
}

func (f *fakeClassifier) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

// payloadProvider feeds canned payloads to a real Adapter
type payloadProvider map[string]string

func (p payloadProvider) Classify(ctx context.Context, text string) (string, error) {
	payload, ok := p[text]
	if !ok {
		return "", errors.New("service unavailable")
	}
	return payload, nil
}

type progressRecorder struct {
	mu    sync.Mutex
	calls [][2]int
}

func (p *progressRecorder) record(processed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, [2]int{processed, total})
}

func records(n int) []models.InputRecord {
	recs := make([]models.InputRecord, n)
	for i := range recs {
		recs[i] = models.InputRecord{Sender: fmt.Sprintf("S%d", i), Text: fmt.Sprintf("message %d", i)}
	}
	return recs
}

func newScreener(c Classifier, workers int) *Screener {
	return NewScreener(prefilter.New(), c, nil, ScreenerConfig{Workers: workers}, zap.NewNop())
}

func TestRunEndToEnd(t *testing.T) {
	provider := payloadProvider{
		"OTP 123456":   `{"case":"pass","category":"OTP/Transactional","note":"รหัส OTP"}`,
		"weird output": `Sure! Here is the classification: pass`,
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewScreeningMetrics(reg)
	s := NewScreener(prefilter.New(), classifier.NewAdapter(provider, zap.NewNop()), m, ScreenerConfig{}, zap.NewNop())

	input := []models.InputRecord{
		{Sender: "BANK", Text: "OTP 123456"},
		{Sender: "X", Text: "เล่นบาคาร่าได้เงินจริง"},
		{Sender: "Y", Text: "weird output"},
	}

	var progress progressRecorder
	results, err := s.Run(context.Background(), input, progress.record, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, models.ResultRecord{
		Sender: "BANK", Text: "OTP 123456", Case: models.CasePass, Category: models.CategoryOTP, Note: "รหัส OTP",
	}, results[0])

	assert.Equal(t, "X", results[1].Sender)
	assert.Equal(t, models.CaseNotPass, results[1].Case)
	assert.Equal(t, models.CategoryGamblingLoan, results[1].Category)

	assert.Equal(t, "Y", results[2].Sender)
	assert.Equal(t, models.CaseError, results[2].Case)
	assert.Contains(t, []string{models.CategoryUnknown, models.CategoryAPIFailure}, results[2].Category)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues(metrics.SourcePrefilter, "not pass", models.CategoryGamblingLoan)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesTotal.WithLabelValues(metrics.OutcomeCompleted)))
}

func TestPrefilterShortCircuitsRemote(t *testing.T) {
	fake := &fakeClassifier{}
	s := newScreener(fake, 1)

	input := []models.InputRecord{
		{Sender: "A", Text: "สมัครเงินด่วน"},
		{Sender: "B", Text: "hello"},
		{Sender: "C", Text: "เว็บพนัน"},
	}
	results, err := s.Run(context.Background(), input, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"hello"}, fake.texts())
	assert.Equal(t, models.CaseNotPass, results[0].Case)
	assert.Equal(t, models.CasePass, results[1].Case)
	assert.Equal(t, models.CategoryGamblingLoan, results[2].Category)
}

func TestRemoteFailuresDoNotStopBatch(t *testing.T) {
	s := newScreener(classifier.NewAdapter(payloadProvider{"ok": `{"case":"pass","category":"Others","note":"-"}`}, zap.NewNop()), 1)

	input := []models.InputRecord{
		{Sender: "1", Text: "fails"},
		{Sender: "2", Text: "ok"},
		{Sender: "3", Text: "fails too"},
	}
	results, err := s.Run(context.Background(), input, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, i := range []int{0, 2} {
		assert.Equal(t, models.CaseError, results[i].Case)
		assert.Equal(t, models.CategoryAPIFailure, results[i].Category)
		assert.Contains(t, results[i].Note, "service unavailable")
	}
	assert.Equal(t, models.CasePass, results[1].Case)
}

func TestSequentialRunsOneAtATime(t *testing.T) {
	fake := &fakeClassifier{delay: func(string) time.Duration { return time.Millisecond }}
	s := newScreener(fake, 1)

	input := records(10)
	results, err := s.Run(context.Background(), input, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 10)

	assert.Equal(t, int32(1), fake.maxSeen.Load())
	for i, r := range results {
		assert.Equal(t, input[i].Text, r.Text)
		assert.Equal(t, input[i].Sender, r.Sender)
	}
}

func TestPoolPreservesOrderAndProgress(t *testing.T) {
	// later rows finish first
	fake := &fakeClassifier{delay: func(text string) time.Duration {
		var i int
		fmt.Sscanf(text, "message %d", &i)
		return time.Duration(20-i) * time.Millisecond
	}}
	s := newScreener(fake, 4)

	input := records(20)
	var progress progressRecorder
	var order []int
	results, err := s.Run(context.Background(), input, progress.record, func(i int, _ models.ResultRecord) {
		order = append(order, i)
	})
	require.NoError(t, err)
	require.Len(t, results, 20)

	for i, r := range results {
		assert.Equal(t, input[i].Text, r.Text)
		assert.Equal(t, i, order[i])
		assert.Equal(t, [2]int{i + 1, 20}, progress.calls[i])
	}
	assert.LessOrEqual(t, fake.maxSeen.Load(), int32(4))
	assert.Greater(t, fake.maxSeen.Load(), int32(1))
}

func TestRunCancellationKeepsProducedRows(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fake := &fakeClassifier{delay: func(string) time.Duration { return 5 * time.Millisecond }}
			s := newScreener(fake, workers)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			input := records(50)
			var progress progressRecorder
			results, err := s.Run(ctx, input, func(processed, total int) {
				progress.record(processed, total)
				if processed == 3 {
					cancel()
				}
			}, nil)

			require.ErrorIs(t, err, context.Canceled)
			require.Len(t, results, 3)
			for i, r := range results {
				assert.Equal(t, input[i].Text, r.Text)
				assert.NotEqual(t, models.CaseError, r.Case)
			}
			assert.Len(t, progress.calls, 3)
		})
	}
}

func TestRunEmptyBatch(t *testing.T) {
	s := newScreener(&fakeClassifier{}, 2)
	results, err := s.Run(context.Background(), nil, func(int, int) { t.Fatal("no progress expected") }, nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestClassifyOneThreadsSender(t *testing.T) {
	s := newScreener(&fakeClassifier{}, 1)
	res := s.ClassifyOne(context.Background(), models.InputRecord{Sender: "SHOP", Text: "sale"})
	assert.Equal(t, "SHOP", res.Sender)
	assert.Equal(t, "sale", res.Text)
	assert.Equal(t, models.CasePass, res.Case)
}

func TestRowTimeout(t *testing.T) {
	fake := &fakeClassifier{delay: func(string) time.Duration { return time.Second }}
	s := NewScreener(prefilter.New(), fake, nil, ScreenerConfig{RowTimeout: 10 * time.Millisecond}, zap.NewNop())

	res := s.ClassifyOne(context.Background(), models.InputRecord{Sender: "s", Text: "slow"})
	assert.Equal(t, models.CaseError, res.Case)
	assert.Equal(t, models.CategoryAPIFailure, res.Category)
	assert.Contains(t, res.Note, "deadline exceeded")
}
