package analysis

import (
	"math/rand"
)

// Scorer is a statistical decline model.
type Scorer interface {
	// PredictProbability returns P(decline) in [0, 1].
	PredictProbability(fv FeatureVector) float64
}

// ModelHandle says whether a statistical model is plugged in. The zero value
// is NoModel.
type ModelHandle struct {
	scorer Scorer
}

// SomeModel wraps an available scorer.
func SomeModel(s Scorer) ModelHandle { return ModelHandle{scorer: s} }

// NoModel is the handle used when no statistical scorer is available.
func NoModel() ModelHandle { return ModelHandle{} }

// Get returns the scorer and whether one is present.
func (h ModelHandle) Get() (Scorer, bool) { return h.scorer, h.scorer != nil }

// Available reports whether a scorer is present.
func (h ModelHandle) Available() bool { return h.scorer != nil }

// modelInputs are the signals the logistic model reads, in weight order.
var modelInputs = []string{
	SignalEngagementVelocity,
	SignalSentimentScore,
	SignalCommentFatigue,
	SignalInfluencerRatio,
	SignalPostingChange,
	SignalTrendAge,
	SignalInteractionQuality,
}

const trendAgeModelScale = 90.0

// TrainingConfig controls the synthetic fit.
type TrainingConfig struct {
	Samples      int     `yaml:"samples"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
}

// DefaultTrainingConfig is the configuration used at process start.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{Samples: 2000, Epochs: 400, LearningRate: 0.8, Seed: 42}
}

// LogisticModel is a logistic-regression proxy fitted on rule-labelled
// synthetic data. It is immutable after training.
type LogisticModel struct {
	weights []float64
	bias    float64
}

// SyntheticDeclineLabel is the ground-truth rule the proxy model learns.
func SyntheticDeclineLabel(fv FeatureVector) bool {
	return fv.Value(SignalSentimentScore) < -0.3 ||
		fv.Value(SignalCommentFatigue) > 0.6 ||
		(fv.Value(SignalTrendAge) > 45 && fv.Value(SignalEngagementVelocity) < 0) ||
		fv.Value(SignalInteractionQuality) < -0.4
}

// TrainLogisticModel fits the proxy deterministically for a given config.
func TrainLogisticModel(cfg TrainingConfig) *LogisticModel {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultTrainingConfig().Samples
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultTrainingConfig().Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultTrainingConfig().LearningRate
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	xs := make([][]float64, cfg.Samples)
	ys := make([]float64, cfg.Samples)
	for i := range xs {
		fv := FeatureVector{
			SignalEngagementVelocity: rng.Float64()*2 - 1,
			SignalSentimentScore:     rng.Float64()*2 - 1,
			SignalCommentFatigue:     rng.Float64(),
			SignalInfluencerRatio:    rng.Float64(),
			SignalPostingChange:      rng.Float64()*2 - 1,
			SignalTrendAge:           rng.Float64() * trendAgeModelScale,
			SignalInteractionQuality: rng.Float64()*2 - 1,
		}
		xs[i] = encode(fv)
		if SyntheticDeclineLabel(fv) {
			ys[i] = 1
		}
	}

	m := &LogisticModel{weights: make([]float64, len(modelInputs))}
	grad := make([]float64, len(modelInputs))
	n := float64(cfg.Samples)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i, x := range xs {
			residual := m.probability(x) - ys[i]
			for j, v := range x {
				grad[j] += residual * v
			}
			gradBias += residual
		}
		for j := range m.weights {
			m.weights[j] -= cfg.LearningRate * grad[j] / n
		}
		m.bias -= cfg.LearningRate * gradBias / n
	}
	return m
}

func (m *LogisticModel) probability(x []float64) float64 {
	z := m.bias
	for j, v := range x {
		z += m.weights[j] * v
	}
	return sigmoid(z)
}

// PredictProbability implements Scorer.
func (m *LogisticModel) PredictProbability(fv FeatureVector) float64 {
	return clip(m.probability(encode(fv)), 0, 1)
}

// Weights returns a copy of the fitted coefficients keyed by signal, plus the bias.
func (m *LogisticModel) Weights() (map[string]float64, float64) {
	out := make(map[string]float64, len(modelInputs))
	for j, name := range modelInputs {
		out[name] = m.weights[j]
	}
	return out, m.bias
}

func encode(fv FeatureVector) []float64 {
	x := make([]float64, len(modelInputs))
	for j, name := range modelInputs {
		v := fv.Value(name)
		if name == SignalTrendAge {
			v = min(v/trendAgeModelScale, 1)
		}
		x[j] = v
	}
	return x
}
