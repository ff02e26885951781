package personality

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
	SentimentConfused Sentiment = "confused"
	SentimentNeutral  Sentiment = "neutral"
)

var (
	positiveWords = []string{"good", "great", "awesome", "thanks", "love", "appreciate"}
	negativeWords = []string{"bad", "hate", "angry", "sad", "upset", "frustrated"}
	urgencyWords  = []string{"asap", "urgent", "now", "quick", "hurry", "deadline"}
	confusedWords = []string{"confused", "don't understand", "dont understand", "what does", "how does", "lost"}
)

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// DetectSentiment runs a keyword-membership test over the raw input. Negative
// wins over positive so distress is never drowned out by politeness.
func DetectSentiment(message string) Sentiment {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, negativeWords):
		return SentimentNegative
	case containsAny(lower, urgencyWords):
		return SentimentUrgent
	case containsAny(lower, confusedWords):
		return SentimentConfused
	case containsAny(lower, positiveWords):
		return SentimentPositive
	}
	return SentimentNeutral
}
