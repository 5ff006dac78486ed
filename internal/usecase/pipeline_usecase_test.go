package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/internal/cfg"
	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct{}

// Validate пропускает файлы, начинающиеся с "ok".
func (fakeValidator) Validate(data []byte) (string, error) {
	if strings.HasPrefix(string(data), "ok") {
		return "image/png", nil
	}
	return "", e.ErrUnsupportedMediaType
}

type fakeImagesInfra struct {
	mu       sync.Mutex
	err      error
	uploaded []domain.InputItem
}

func (f *fakeImagesInfra) UploadImages(_ context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	keys := make(map[int]string, len(req.Items))
	for _, item := range req.Items {
		keys[item.Index] = req.OrganisationID + "/" + item.Label()
		f.uploaded = append(f.uploaded, item)
	}
	return NewUploadImagesRes(keys), nil
}

func (f *fakeImagesInfra) CleanupImages([]string) {}

type pipelineDeps struct {
	embedder *fakeEmbedder
	sink     *fakeSink
	log      *recordingLogger
	cfg      *cfg.PipelineCfg
}

func newPipeline(d pipelineDeps, images ImagesInfra, reporters ...RunReporter) *PipelineUseCase {
	if d.cfg == nil {
		d.cfg = testPipelineCfg()
	}
	return NewPipelineUC(
		NewProducer(d.embedder, d.cfg, d.log),
		NewDeliverer(d.sink, d.cfg, d.log),
		d.cfg,
		fakeValidator{},
		images,
		d.log,
		reporters...,
	)
}

func TestRun_ThreeItemsTwoBatches(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
	uc := newPipeline(d, nil)

	req := NewRunReq(inputItems(3), "org-1", "idx")
	req.BatchSize = 2
	report := uc.Run(context.Background(), req)

	assert.Equal(t, domain.RunCompleted, report.Status)
	assert.Equal(t, 3, report.Delivered)

	calls, _ := d.sink.recorded()
	require.Len(t, calls, 2)
	sizes := map[int]int{}
	for _, b := range calls {
		sizes[b.Number] = b.Len()
	}
	assert.Equal(t, map[int]int{1: 2, 2: 1}, sizes)
}

func TestRun_TimeoutRecoveryAndPermanentDrop(t *testing.T) {
	d := pipelineDeps{
		embedder: newFakeEmbedder(succeed()).
			on(0, hangThenSucceed(2)).
			on(1, failWith(errors.New("model rejected input"))),
		sink: newFakeSink(),
		log:  newRecordingLogger(),
	}
	uc := newPipeline(d, nil)

	req := NewRunReq(inputItems(2), "org-1", "idx")
	req.ProduceMaxRetries = 3
	req.ProduceTimeout = 20 * time.Millisecond
	report := uc.Run(context.Background(), req)

	assert.Equal(t, domain.RunPartial, report.Status)
	assert.Equal(t, 1, report.Produce.Succeeded)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 3, d.embedder.attemptsFor(0))
	assert.Equal(t, 1, d.embedder.attemptsFor(1))

	calls, _ := d.sink.recorded()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Artifacts, 1)
	assert.Equal(t, 0, calls[0].Artifacts[0].Index)

	var drops []string
	for _, line := range d.log.errorLines() {
		if strings.HasPrefix(line, "error processing image") {
			drops = append(drops, line)
		}
	}
	require.Len(t, drops, 1)
	assert.True(t, strings.HasPrefix(drops[0], "error processing image 2"))
}

func TestRun_BlankOrganisationAborts(t *testing.T) {
	for _, org := range []string{"", "   "} {
		d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
		reporter := &fakeReporter{}
		uc := newPipeline(d, nil, reporter)

		report := uc.Run(context.Background(), NewRunReq(inputItems(3), org, "idx"))

		assert.Equal(t, domain.RunAborted, report.Status)
		assert.Equal(t, e.ErrOrganisationIDRequired.Error(), report.Reason)
		assert.Empty(t, d.embedder.seenMetadata())
		calls, _ := d.sink.recorded()
		assert.Empty(t, calls)
		assert.Len(t, d.log.errorLines(), 1)
		assert.Empty(t, reporter.reports)
	}
}

func TestRun_EmptyItemsCompletes(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
	uc := newPipeline(d, nil)

	report := uc.Run(context.Background(), NewRunReq(nil, "org", ""))

	assert.Equal(t, domain.RunCompleted, report.Status)
	calls, _ := d.sink.recorded()
	assert.Empty(t, calls)
}

func TestRun_AllDroppedFails(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(failWith(errors.New("down"))), sink: newFakeSink(), log: newRecordingLogger()}
	uc := newPipeline(d, nil)

	report := uc.Run(context.Background(), NewRunReq(inputItems(3), "org", ""))

	assert.Equal(t, domain.RunFailed, report.Status)
	assert.Equal(t, 3, report.Produce.DroppedCount())
	calls, _ := d.sink.recorded()
	assert.Empty(t, calls)
}

func TestRun_SinkIDResolution(t *testing.T) {
	tests := []struct {
		name       string
		requested  string
		configured string
		want       string
	}{
		{name: "request wins", requested: "req-idx", configured: "cfg-idx", want: "req-idx"},
		{name: "configured default", requested: "", configured: "cfg-idx", want: "cfg-idx"},
		{name: "fallback", requested: "", configured: "", want: cfg.FallbackSinkID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testPipelineCfg()
			c.DefaultSinkID = tt.configured
			d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger(), cfg: c}
			uc := newPipeline(d, nil)

			report := uc.Run(context.Background(), NewRunReq(inputItems(1), "org", tt.requested))

			assert.Equal(t, tt.want, report.SinkID)
			_, sinkIDs := d.sink.recorded()
			assert.Equal(t, []string{tt.want}, sinkIDs)
		})
	}
}

func TestRun_ReportersReceiveSummary(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
	ok := &fakeReporter{}
	failing := &fakeReporter{err: errors.New("broker unavailable")}
	uc := newPipeline(d, nil, failing, ok)

	report := uc.Run(context.Background(), NewRunReq(inputItems(2), "org", "idx"))

	assert.Equal(t, domain.RunCompleted, report.Status)
	require.Len(t, failing.reports, 1)
	require.Len(t, ok.reports, 1)
	assert.Same(t, report, ok.reports[0])
	assert.NotEmpty(t, *d.log.warns)
}

func TestIngestImages_ValidatesArchivesAndRuns(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
	images := &fakeImagesInfra{}
	uc := newPipeline(d, images)

	res, err := uc.IngestImages(context.Background(), NewIngestReq("org-7", "", []UploadedImage{
		{Name: "a.png", Data: []byte("ok-a")},
		{Name: "b.txt", Data: []byte("text")},
		{Name: "c.png", Data: []byte("ok-c")},
	}))
	require.NoError(t, err)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "b.txt", res.Rejected[0].Name)
	assert.Equal(t, domain.RunCompleted, res.Report.Status)
	assert.Equal(t, 2, res.Report.Delivered)
	assert.Len(t, images.uploaded, 2)

	paths := map[string]bool{}
	for _, meta := range d.embedder.seenMetadata() {
		paths[meta.String(domain.MetaImagePath)] = true
	}
	assert.Equal(t, map[string]bool{"org-7/image_0.jpg": true, "org-7/image_1.jpg": true}, paths)
}

func TestIngestImages_ArchiveFailureDoesNotStopRun(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
	uc := newPipeline(d, &fakeImagesInfra{err: errors.New("s3 down")})

	res, err := uc.IngestImages(context.Background(), NewIngestReq("org", "", []UploadedImage{{Name: "a.png", Data: []byte("ok")}}))
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, res.Report.Status)
	for _, meta := range d.embedder.seenMetadata() {
		_, ok := meta[domain.MetaImagePath]
		assert.False(t, ok)
	}
}

func TestIngestImages_Errors(t *testing.T) {
	d := pipelineDeps{embedder: newFakeEmbedder(succeed()), sink: newFakeSink(), log: newRecordingLogger()}
	uc := newPipeline(d, nil)

	_, err := uc.IngestImages(context.Background(), NewIngestReq("", "", []UploadedImage{{Data: []byte("ok")}}))
	assert.ErrorIs(t, err, e.ErrOrganisationIDRequired)

	_, err = uc.IngestImages(context.Background(), NewIngestReq("org", "", nil))
	assert.ErrorIs(t, err, e.ErrNoImages)

	res, err := uc.IngestImages(context.Background(), NewIngestReq("org", "", []UploadedImage{{Name: "x", Data: []byte("bad")}}))
	assert.ErrorIs(t, err, e.ErrNoValidImages)
	require.NotNil(t, res)
	assert.Len(t, res.Rejected, 1)
}
