package sentiment

import "strings"

// Default headline lexicon. Deliberately small: it is the fallback scorer
// when no model-based score is available.
var (
	positiveWords = []string{
		"surge", "rally", "soar", "gain", "bullish", "adoption", "approval",
		"breakthrough", "record high", "all-time high", "upgrade", "growth",
		"recover", "rebound", "optimism", "institutional",
	}
	negativeWords = []string{
		"crash", "plunge", "drop", "bearish", "ban", "hack", "exploit",
		"lawsuit", "fraud", "sell-off", "selloff", "liquidation", "fear",
		"recession", "collapse", "downgrade", "crackdown",
	}
)

// Lexicon scores headlines by keyword polarity.
type Lexicon struct {
	positive []string
	negative []string
}

func NewLexicon() *Lexicon {
	return &Lexicon{positive: positiveWords, negative: negativeWords}
}

// Score returns a polarity in [-1, 1] for a headline: the signed share of
// matched polarity terms. A headline with no matches scores 0.
func (l *Lexicon) Score(headline string) float64 {
	text := strings.ToLower(headline)
	pos, neg := 0, 0
	for _, w := range l.positive {
		if strings.Contains(text, w) {
			pos++
		}
	}
	for _, w := range l.negative {
		if strings.Contains(text, w) {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
