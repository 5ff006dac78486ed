package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
)

// behaviour описывает реакцию фейкового эмбеддера на очередную попытку.
type behaviour func(attempt int) (*EmbedRes, error, bool) // bool — зависнуть до отмены ctx

func succeed() behaviour {
	return func(int) (*EmbedRes, error, bool) { return NewEmbedRes([]float32{0.1, 0.2}, "v1"), nil, false }
}

func hangAlways() behaviour {
	return func(int) (*EmbedRes, error, bool) { return nil, nil, true }
}

func hangThenSucceed(timeouts int) behaviour {
	return func(attempt int) (*EmbedRes, error, bool) {
		if attempt <= timeouts {
			return nil, nil, true
		}
		return NewEmbedRes([]float32{1}, "v1"), nil, false
	}
}

func delayThenSucceed(d time.Duration) behaviour {
	return func(int) (*EmbedRes, error, bool) {
		time.Sleep(d)
		return NewEmbedRes([]float32{1}, "v1"), nil, false
	}
}

func failWith(err error) behaviour {
	return func(int) (*EmbedRes, error, bool) { return nil, err, false }
}

func emptyResult() behaviour {
	return func(int) (*EmbedRes, error, bool) { return NewEmbedRes(nil, "v1"), nil, false }
}

// fakeEmbedder выбирает поведение по имени файла из метаданных.
type fakeEmbedder struct {
	mu        sync.Mutex
	behaviour map[string]behaviour
	fallback  behaviour
	attempts  map[string]int
	metadata  []domain.Metadata
}

func newFakeEmbedder(fallback behaviour) *fakeEmbedder {
	return &fakeEmbedder{
		behaviour: map[string]behaviour{},
		fallback:  fallback,
		attempts:  map[string]int{},
	}
}

func (f *fakeEmbedder) on(index int, b behaviour) *fakeEmbedder {
	f.behaviour[fmt.Sprintf("image_%d.jpg", index)] = b
	return f
}

func (f *fakeEmbedder) Embed(ctx context.Context, req *EmbedReq) (*EmbedRes, error) {
	label := req.Metadata.String(domain.MetaFileName)

	f.mu.Lock()
	f.attempts[label]++
	attempt := f.attempts[label]
	f.metadata = append(f.metadata, req.Metadata)
	b, ok := f.behaviour[label]
	if !ok {
		b = f.fallback
	}
	f.mu.Unlock()

	res, err, hang := b(attempt)
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return res, err
}

func (f *fakeEmbedder) seenMetadata() []domain.Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Metadata(nil), f.metadata...)
}

func (f *fakeEmbedder) attemptsFor(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[fmt.Sprintf("image_%d.jpg", index)]
}

// fakeSink записывает все вызовы Deliver.
type fakeSink struct {
	mu       sync.Mutex
	calls    []domain.Batch
	sinkIDs  []string
	deliver  func(attempt int, batch domain.Batch) error
	attempts map[int]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{attempts: map[int]int{}}
}

func (s *fakeSink) Deliver(ctx context.Context, batch domain.Batch, sinkID string) error {
	s.mu.Lock()
	s.attempts[batch.Number]++
	attempt := s.attempts[batch.Number]
	s.calls = append(s.calls, batch)
	s.sinkIDs = append(s.sinkIDs, sinkID)
	deliver := s.deliver
	s.mu.Unlock()

	if deliver == nil {
		return nil
	}

	err := deliver(attempt, batch)
	if errors.Is(err, errHang) {
		<-ctx.Done()
		return ctx.Err()
	}

	return err
}

func (s *fakeSink) attemptsOf(number int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[number]
}

func (s *fakeSink) recorded() ([]domain.Batch, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Batch(nil), s.calls...), append([]string(nil), s.sinkIDs...)
}

var errHang = errors.New("hang")

type fakeReporter struct {
	mu      sync.Mutex
	reports []*domain.RunReport
	err     error
}

func (r *fakeReporter) Report(_ context.Context, report *domain.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

// recordingLogger собирает сообщения по уровням.
type recordingLogger struct {
	mu     *sync.Mutex
	errors *[]string
	warns  *[]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, errors: &[]string{}, warns: &[]string{}}
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(string, ...any)  {}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.warns = append(*l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(_ error, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.errors = append(*l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) With(...any) logger.Logger {
	return l
}

func (l *recordingLogger) errorLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), *l.errors...)
}

func testPipelineCfg() *cfg.PipelineCfg {
	c := cfg.DefaultPipelineCfg()
	c.ProduceTimeout = 20 * time.Millisecond
	c.DeliverTimeout = 20 * time.Millisecond
	c.ProduceWorkers = 4
	c.DeliverWorkers = 4
	return c
}

func inputItems(n int) []domain.InputItem {
	items := make([]domain.InputItem, n)
	for i := range items {
		items[i] = *domain.NewInputItem(i, []byte{byte(i)}, "image/jpeg")
	}
	return items
}
