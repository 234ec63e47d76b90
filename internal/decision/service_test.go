package decision

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/acquisition"
	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	"github.com/ZanzyTHEbar/trendfall/internal/database"
	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/ZanzyTHEbar/trendfall/internal/featurestore"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/narrative"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcquirer struct {
	acq   acquisition.Acquisition
	err   error
	calls int
}

func (f *fakeAcquirer) Acquire(_ context.Context, _ string) (acquisition.Acquisition, error) {
	f.calls++
	return f.acq, f.err
}

type fakeNarrator struct {
	text   string
	source narrative.Source
	err    error
	got    analysis.NarrativeRequest
}

func (f *fakeNarrator) GenerateWithSource(_ context.Context, req analysis.NarrativeRequest) (string, narrative.Source, error) {
	f.got = req
	return f.text, f.source, f.err
}

type fakeAudit struct {
	entries []database.AuditEntry
	err     error
	records map[string]*database.DecisionRecord
}

func (f *fakeAudit) Record(_ context.Context, e database.AuditEntry) (*database.DecisionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, e)
	return &database.DecisionRecord{RequestID: e.RequestID, Digest: "digest-" + e.RequestID}, nil
}

func (f *fakeAudit) Get(_ context.Context, id string) (*database.DecisionRecord, error) {
	if rec, ok := f.records[id]; ok {
		return rec, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeAudit) Recent(_ context.Context, _ int) ([]*database.DecisionRecord, error) {
	out := make([]*database.DecisionRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

// recordingStore counts handoffs and can be told to fail
type recordingStore struct {
	*featurestore.MemoryStore
	puts, takes int
	failPut     bool
}

func (s *recordingStore) Put(ctx context.Context, id string, fv analysis.FeatureVector) error {
	s.puts++
	if s.failPut {
		return errors.New("store down")
	}
	return s.MemoryStore.Put(ctx, id, fv)
}

func (s *recordingStore) Take(ctx context.Context, id string) (analysis.FeatureVector, error) {
	s.takes++
	return s.MemoryStore.Take(ctx, id)
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	pipeline, err := analysis.NewPipeline(analysis.DefaultModelConfig(), analysis.NoModel())
	require.NoError(t, err)
	opts.Pipeline = pipeline
	opts.Engineer = analysis.NewFeatureEngineer(analysis.DefaultModelConfig(), analysis.NewLexiconPolarity()).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}

	svc, err := NewService(opts)
	require.NoError(t, err)
	n := 0
	svc.newID = func() string {
		n++
		return "req-" + string(rune('0'+n))
	}
	return svc
}

func appStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.HTTPStatus
}

func TestNewServiceRequiresPipeline(t *testing.T) {
	_, err := NewService(Options{})
	require.Error(t, err)
}

func TestAnalyzeValidation(t *testing.T) {
	svc := newTestService(t, Options{})

	tests := []struct {
		name string
		req  Request
	}{
		{"empty input", Request{Input: "   "}},
		{"negative budget", Request{Input: "dance", DailyBudget: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), tt.req)
			assert.Equal(t, http.StatusBadRequest, appStatus(t, err))
		})
	}
}

func TestAnalyzeFromVideo(t *testing.T) {
	acq := &fakeAcquirer{acq: acquisition.Acquisition{
		Input:      "dQw4w9WgXcQ",
		Source:     acquisition.SourceYouTube,
		VideoID:    "dQw4w9WgXcQ",
		HasMetrics: true,
		Metadata: analysis.Metadata{
			Title:        "Dance",
			ViewCount:    100000,
			LikeCount:    2000,
			CommentCount: 300,
			PublishedAt:  "2025-05-01T12:00:00Z",
		},
		Comments: []string{"so overdone", "cringe", "dead trend", "love it"},
	}}
	narrator := &fakeNarrator{text: "Custom narrative.", source: narrative.SourceModel}
	audit := &fakeAudit{}
	store := &recordingStore{MemoryStore: featurestore.NewMemoryStore(time.Minute)}

	svc := newTestService(t, Options{Acquirer: acq, Narrator: narrator, Audit: audit, Store: store})
	res, err := svc.Analyze(context.Background(), Request{Input: "dQw4w9WgXcQ", DailyBudget: 10000})
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, acquisition.SourceYouTube, res.DataSource)
	assert.Equal(t, "Custom narrative.", res.Justification.Evidence.BusinessInterpretation)
	assert.Equal(t, narrative.SourceModel, res.NarrativeSource)
	assert.Equal(t, res.Assessment.RiskScore, narrator.got.RiskScore)
	assert.Empty(t, res.History)

	assert.Equal(t, 1, store.puts)
	assert.Equal(t, 1, store.takes)
	assert.Equal(t, 0, store.Len())

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "req-1", audit.entries[0].RequestID)
	assert.Equal(t, "youtube", audit.entries[0].DataSource)
	assert.Equal(t, string(res.Justification.Recommendation), audit.entries[0].Recommendation)
	assert.Equal(t, "digest-req-1", res.AuditDigest)
}

func TestAnalyzeTextOnlyKeepsEngagementNeutral(t *testing.T) {
	acq := &fakeAcquirer{acq: acquisition.Acquisition{
		Input:    "ice bucket",
		Source:   acquisition.SourceNews,
		Comments: []string{"ice bucket challenge is back", "why is this still a thing"},
		Metadata: analysis.Metadata{PublishedAt: "2025-05-20T12:00:00Z"},
		History:  []analysis.TrendPoint{{Timestamp: "1h ago", Value: 3}, {Timestamp: "0h ago", Value: 1}},
	}}
	svc := newTestService(t, Options{Acquirer: acq})

	res, err := svc.Analyze(context.Background(), Request{Input: "ice bucket"})
	require.NoError(t, err)

	neutral, err := analysis.NewFeatureVector(nil)
	require.NoError(t, err)
	assert.Equal(t, acquisition.SourceNews, res.DataSource)
	assert.Equal(t, acq.acq.History, res.History)
	assert.Equal(t, neutral[analysis.SignalEngagementVelocity], res.Features[analysis.SignalEngagementVelocity])
	assert.Equal(t, neutral[analysis.SignalViewCount], res.Features[analysis.SignalViewCount])
	assert.NotEqual(t, neutral[analysis.SignalTrendAge], res.Features[analysis.SignalTrendAge])
}

func TestAnalyzeNoData(t *testing.T) {
	noData := &fakeAcquirer{err: acquisition.ErrNoData}

	t.Run("not found without simulation", func(t *testing.T) {
		svc := newTestService(t, Options{Acquirer: noData})
		_, err := svc.Analyze(context.Background(), Request{Input: "nothing"})
		assert.Equal(t, http.StatusNotFound, appStatus(t, err))
	})

	t.Run("simulates when configured", func(t *testing.T) {
		metrics := monitoring.NewMetrics()
		svc := newTestService(t, Options{Acquirer: noData, SimulateOnNoData: true, Metrics: metrics})
		res, err := svc.Analyze(context.Background(), Request{Input: "nothing"})
		require.NoError(t, err)
		assert.Equal(t, acquisition.SourceSimulation, res.DataSource)
		assert.Equal(t, analysis.Simulate("nothing").Features, res.Features)
		assert.Len(t, res.History, 24)
	})

	t.Run("other errors propagate", func(t *testing.T) {
		boom := apperrors.NewExternalAPIError("youtube", errors.New("503"))
		svc := newTestService(t, Options{Acquirer: &fakeAcquirer{err: boom}, SimulateOnNoData: true})
		_, err := svc.Analyze(context.Background(), Request{Input: "x"})
		assert.ErrorIs(t, err, boom)
	})
}

func TestAnalyzeSimulateSkipsAcquirer(t *testing.T) {
	acq := &fakeAcquirer{}
	svc := newTestService(t, Options{Acquirer: acq})

	a, err := svc.Analyze(context.Background(), Request{Input: "skibidi", Simulate: true})
	require.NoError(t, err)
	b, err := svc.Analyze(context.Background(), Request{Input: "skibidi", Simulate: true})
	require.NoError(t, err)

	assert.Zero(t, acq.calls)
	assert.Equal(t, a.Assessment.RiskScore, b.Assessment.RiskScore)
	assert.NotEqual(t, a.RequestID, b.RequestID)
}

func TestAnalyzeFeatures(t *testing.T) {
	svc := newTestService(t, Options{})

	t.Run("unknown key", func(t *testing.T) {
		_, err := svc.AnalyzeFeatures(context.Background(), FeatureRequest{
			Features: map[string]float64{"vibes": 1},
		})
		assert.Equal(t, http.StatusBadRequest, appStatus(t, err))
	})

	t.Run("partial map", func(t *testing.T) {
		res, err := svc.AnalyzeFeatures(context.Background(), FeatureRequest{
			Features: map[string]float64{
				analysis.SignalSentimentScore: -0.8,
				analysis.SignalCommentFatigue: 0.9,
			},
			Label: "manual",
		})
		require.NoError(t, err)
		assert.Equal(t, acquisition.SourceFeatures, res.DataSource)
		assert.Equal(t, "manual", res.Input)
		assert.Equal(t, -0.8, res.Features[analysis.SignalSentimentScore])
		assert.Equal(t, narrative.SourceNone, res.NarrativeSource)
		assert.Equal(t, res.Attribution.Summary, res.Justification.Evidence.BusinessInterpretation)
	})
}

func TestDegradedCollaboratorsDoNotFailRequest(t *testing.T) {
	store := &recordingStore{MemoryStore: featurestore.NewMemoryStore(time.Minute), failPut: true}
	narrator := &fakeNarrator{err: errors.New("no generator")}
	audit := &fakeAudit{err: errors.New("disk full")}

	svc := newTestService(t, Options{Store: store, Narrator: narrator, Audit: audit})
	res, err := svc.AnalyzeFeatures(context.Background(), FeatureRequest{
		Features: map[string]float64{analysis.SignalCommentFatigue: 0.7},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.7, res.Features[analysis.SignalCommentFatigue])
	assert.Equal(t, 0, store.takes)
	assert.Equal(t, narrative.SourceNone, res.NarrativeSource)
	assert.Equal(t, res.Attribution.Summary, res.Justification.Evidence.BusinessInterpretation)
	assert.Empty(t, res.AuditDigest)
}

func TestGetAndRecent(t *testing.T) {
	audit := &fakeAudit{records: map[string]*database.DecisionRecord{
		"a": {RequestID: "a"},
	}}
	svc := newTestService(t, Options{Audit: audit})

	rec, err := svc.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.RequestID)

	_, err = svc.Get(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, appStatus(t, err))

	records, err := svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	empty := newTestService(t, Options{})
	records, err = empty.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
