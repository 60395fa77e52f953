package extractor

import (
	"context"
	"math"
	"strings"

	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
)

var positiveWords = toSet("best", "great", "excellent", "amazing", "trusted", "quality", "love", "happy",
	"award", "winning", "leading", "innovative", "easy", "free", "secure", "reliable", "beautiful",
	"friendly", "success", "perfect", "fresh", "fast", "affordable", "premium", "welcome", "enjoy")

var negativeWords = toSet("bad", "worst", "poor", "scam", "fraud", "error", "fail", "failure", "problem",
	"broken", "risk", "danger", "warning", "closed", "hate", "terrible", "crisis", "loss", "debt",
	"complaint", "lawsuit", "slow", "expensive", "unavailable", "suspended", "expired")

// SentimentService scores the metadata text against small positive and negative word lists.
type SentimentService struct{}

func (s *SentimentService) ClassifySentiment(_ context.Context, metadata model.Metadata) model.Outcome[model.Sentiment] {
	text := strings.Join([]string{metadata.Title, metadata.Description, metadata.Keywords}, " ")
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return model.Ok(model.Sentiment{Label: "neutral", Neutral: 1})
	}

	var pos, neg int
	for _, t := range tokens {
		if _, ok := positiveWords[t]; ok {
			pos++
		} else if _, ok := negativeWords[t]; ok {
			neg++
		}
	}
	n := float64(len(tokens))
	sentiment := model.Sentiment{
		Positive: round4(float64(pos) / n),
		Negative: round4(float64(neg) / n),
		Neutral:  round4(float64(len(tokens)-pos-neg) / n),
	}
	switch {
	case pos > neg:
		sentiment.Label = "positive"
	case neg > pos:
		sentiment.Label = "negative"
	default:
		sentiment.Label = "neutral"
	}

	return model.Ok(sentiment)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
