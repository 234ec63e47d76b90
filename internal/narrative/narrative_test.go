package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/trendfall/internal/errors"
	"github.com/ZanzyTHEbar/trendfall/internal/monitoring"
	"github.com/ZanzyTHEbar/trendfall/internal/resilience"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decayRequest() analysis.NarrativeRequest {
	return analysis.NarrativeRequest{
		RiskScore:     72.44,
		RiskLevel:     analysis.RiskHigh,
		TopDrivers:    []string{"Negative Audience Sentiment", "Declining Engagement Velocity"},
		Stage:         analysis.StageDecay,
		IsCringePoint: true,
	}
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		level analysis.RiskLevel
		want  string
	}{
		{analysis.RiskCritical, "immediate action required within 24 hours"},
		{analysis.RiskHigh, "exit strategy should be prepared within 3-5 days"},
		{analysis.RiskMedium, "content pivot recommended within 1-2 weeks"},
		{analysis.RiskLow, "monitoring recommended, trend remains stable"},
		{"", "monitoring recommended, trend remains stable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Urgency(tt.level), "level %q", tt.level)
	}
}

func TestTemplateGeneratorFollowsConfiguredBands(t *testing.T) {
	tests := []struct {
		name  string
		bands analysis.BandThresholds
		want  string
	}{
		{"default bands", analysis.DefaultModelConfig().Bands, "content pivot recommended within 1-2 weeks"},
		{"tight bands", analysis.BandThresholds{Medium: 20, High: 50, Critical: 60}, "exit strategy should be prepared within 3-5 days"},
		{"loose bands", analysis.BandThresholds{Medium: 60, High: 80, Critical: 95}, "monitoring recommended, trend remains stable"},
	}

	g, err := NewTemplateGenerator("{{ urgency }}")
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := analysis.DefaultModelConfig()
			cfg.Bands = tt.bands
			level, _, _ := cfg.Band(55)

			text, err := g.Generate(context.Background(), analysis.NarrativeRequest{RiskScore: 55, RiskLevel: level})
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestTemplateGenerator(t *testing.T) {
	g, err := NewTemplateGenerator("")
	require.NoError(t, err)

	text, err := g.Generate(context.Background(), decayRequest())
	require.NoError(t, err)
	assert.Equal(t,
		"This trend is in Decay phase with 72.4% decline risk, primarily driven by negative audience sentiment."+
			" Campaign continuation risks brand reputation damage."+
			" Analysis indicates exit strategy should be prepared within 3-5 days.",
		text)

	req := decayRequest()
	req.IsCringePoint = false
	req.TopDrivers = nil
	text, err = g.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, text, "primarily driven by market dynamics.")
	assert.NotContains(t, text, "reputation")
}

func TestTemplateGeneratorErrors(t *testing.T) {
	_, err := NewTemplateGenerator("{% if cringe %}unterminated")
	assert.Error(t, err)

	g, err := NewTemplateGenerator("{% if cringe %}x{% endif %}")
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), analysis.NarrativeRequest{})
	assert.ErrorIs(t, err, ErrEmptyNarrative)
}

type fakeBedrock struct {
	calls atomic.Int32
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls.Add(1)
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockGenerator(t *testing.T) {
	client := &fakeBedrock{body: `{"content":[{"type":"text","text":" Engagement is fading. "},{"type":"text","text":"Pivot now."}],"stop_reason":"end_turn"}`}
	g := NewBedrockGeneratorWithClient(client, "")

	text, err := g.Generate(context.Background(), decayRequest())
	require.NoError(t, err)
	assert.Equal(t, "Engagement is fading. Pivot now.", text)
	assert.Equal(t, DefaultModelID, aws.ToString(client.input.ModelId))

	var sent bedrockRequest
	require.NoError(t, json.Unmarshal(client.input.Body, &sent))
	assert.Equal(t, anthropicVersion, sent.AnthropicVersion)
	require.Len(t, sent.Messages, 1)
	assert.Contains(t, sent.Messages[0].Content[0].Text, "Decline risk: 72.4%")
	assert.Contains(t, sent.Messages[0].Content[0].Text, "Negative Audience Sentiment; Declining Engagement Velocity")
}

func TestBedrockGeneratorFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeBedrock
		check  func(t *testing.T, err error)
	}{
		{"api error", &fakeBedrock{err: errors.New("throttled")}, func(t *testing.T, err error) {
			assert.Equal(t, apperrors.CategoryExternalAPI, apperrors.ToAppError(err).Category)
		}},
		{"empty content", &fakeBedrock{body: `{"content":[]}`}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrEmptyNarrative)
		}},
		{"bad json", &fakeBedrock{body: `{`}, func(t *testing.T, err error) {
			assert.Error(t, err)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBedrockGeneratorWithClient(tt.client, "m").Generate(context.Background(), decayRequest())
			tt.check(t, err)
		})
	}
}

func noDelayRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	cfg.JitterEnabled = false
	return cfg
}

func TestGuardedPrefersPrimary(t *testing.T) {
	primary := GeneratorFunc(func(context.Context, analysis.NarrativeRequest) (string, error) {
		return "from model", nil
	})
	fallback, err := NewTemplateGenerator("")
	require.NoError(t, err)

	g := NewGuarded(primary, fallback, GuardedOptions{Retry: noDelayRetry(), Metrics: monitoring.NewMetrics()})
	text, source, err := g.GenerateWithSource(context.Background(), decayRequest())
	require.NoError(t, err)
	assert.Equal(t, "from model", text)
	assert.Equal(t, SourceModel, source)
}

func TestGuardedFallsBackAfterRetries(t *testing.T) {
	client := &fakeBedrock{err: errors.New("service unavailable")}
	fallback, err := NewTemplateGenerator("")
	require.NoError(t, err)

	g := NewGuarded(NewBedrockGeneratorWithClient(client, ""), fallback, GuardedOptions{
		Retry:   noDelayRetry(),
		Metrics: monitoring.NewMetrics(),
	})

	text, source, err := g.GenerateWithSource(context.Background(), decayRequest())
	require.NoError(t, err)
	assert.Equal(t, SourceTemplate, source)
	assert.Contains(t, text, "Decay phase")
	assert.Equal(t, int32(3), client.calls.Load())
}

func TestGuardedBreakerOpens(t *testing.T) {
	client := &fakeBedrock{err: errors.New("service unavailable")}
	retry := noDelayRetry()
	retry.MaxAttempts = 1

	g := NewGuarded(NewBedrockGeneratorWithClient(client, ""), nil, GuardedOptions{
		Breaker: resilience.BreakerConfig{FailureThreshold: 2, Timeout: time.Hour},
		Retry:   retry,
	})

	for i := 0; i < 4; i++ {
		_, source, err := g.GenerateWithSource(context.Background(), decayRequest())
		assert.Error(t, err)
		assert.Equal(t, SourceNone, source)
	}
	assert.Equal(t, int32(2), client.calls.Load())
	assert.Equal(t, "open", g.breaker.State())
}

func TestGuardedWithoutGenerators(t *testing.T) {
	g := NewGuarded(nil, nil, GuardedOptions{})
	_, err := g.Generate(context.Background(), decayRequest())
	assert.ErrorIs(t, err, ErrEmptyNarrative)
}
