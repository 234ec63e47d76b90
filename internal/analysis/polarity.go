package analysis

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"
	"golang.org/x/text/cases"
)

// Sentiment scorer names accepted by ModelConfig.Sentiment.
const (
	SentimentVADER   = "vader"
	SentimentLexicon = "lexicon"
)

// NewPolarityScorer returns the scorer registered under name.
func NewPolarityScorer(name string) (PolarityScorer, error) {
	switch name {
	case SentimentVADER:
		return NewVaderPolarity(), nil
	case SentimentLexicon:
		return NewLexiconPolarity(), nil
	default:
		return nil, fmt.Errorf("unknown sentiment scorer %q", name)
	}
}

// VaderPolarity scores text with the VADER rule set and reports its
// normalized compound score.
type VaderPolarity struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderPolarity() *VaderPolarity {
	return &VaderPolarity{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderPolarity) Polarity(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return clip(v.analyzer.PolarityScores(text).Compound, -1, 1)
}

// LexiconPolarity is a small word-list sentiment scorer used when VADER is
// switched off in config. Negators flip and damp the following sentiment
// word; intensifiers scale it.
type LexiconPolarity struct {
	words        map[string]float64
	negators     map[string]struct{}
	intensifiers map[string]float64
}

// NewLexiconPolarity returns the built-in scorer.
func NewLexiconPolarity() *LexiconPolarity {
	return &LexiconPolarity{
		words: map[string]float64{
			"love": 0.5, "loved": 0.7, "amazing": 0.6, "awesome": 1.0, "great": 0.8,
			"good": 0.7, "best": 1.0, "fun": 0.3, "funny": 0.25, "hilarious": 0.5,
			"nice": 0.6, "cool": 0.35, "fresh": 0.3, "brilliant": 0.9, "excellent": 1.0,
			"perfect": 1.0, "beautiful": 0.85, "happy": 0.8, "fantastic": 0.4, "wow": 0.1,
			"legendary": 0.5, "iconic": 0.4, "genius": 0.6, "enjoy": 0.4, "enjoyed": 0.4,
			"bad": -0.7, "worst": -1.0, "terrible": -1.0, "awful": -1.0, "hate": -0.8,
			"hated": -0.9, "boring": -1.0, "cringe": -0.8, "cringy": -0.8, "annoying": -0.8,
			"stupid": -0.8, "dumb": -0.375, "lame": -0.5, "trash": -0.6, "garbage": -0.6,
			"sad": -0.5, "tired": -0.4, "fake": -0.5, "dead": -0.2, "dying": -0.3,
			"overdone": -0.5, "disappointing": -0.6, "disappointed": -0.75, "ugly": -0.7,
			"ridiculous": -0.33, "pathetic": -1.0, "unfunny": -0.6, "scripted": -0.3,
		},
		negators: map[string]struct{}{
			"not": {}, "no": {}, "never": {}, "isnt": {}, "isn't": {}, "dont": {},
			"don't": {}, "doesnt": {}, "doesn't": {}, "cant": {}, "can't": {}, "wasnt": {},
			"wasn't": {}, "aint": {}, "ain't": {},
		},
		intensifiers: map[string]float64{
			"very": 1.3, "really": 1.3, "so": 1.2, "extremely": 1.5, "super": 1.4,
			"totally": 1.3, "absolutely": 1.4, "too": 1.2,
		},
	}
}

// Polarity returns the mean polarity of the sentiment-bearing words in text,
// or 0 when there are none.
func (l *LexiconPolarity) Polarity(text string) float64 {
	tokens := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	sum, n := 0.0, 0
	negate := false
	scale := 1.0
	for _, tok := range tokens {
		tok = strings.Trim(tok, "'")
		if _, ok := l.negators[tok]; ok {
			negate = true
			continue
		}
		if f, ok := l.intensifiers[tok]; ok {
			scale *= f
			continue
		}
		score, ok := l.words[tok]
		if !ok {
			continue
		}
		score *= scale
		if negate {
			score *= -0.5
		}
		sum += clip(score, -1, 1)
		n++
		negate, scale = false, 1.0
	}
	if n == 0 {
		return 0
	}
	return clip(sum/float64(n), -1, 1)
}
