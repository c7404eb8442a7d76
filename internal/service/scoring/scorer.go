package scoring

import (
	"math"
	"strings"
)

const (
	briefWordLimit    = 50
	mediumWordLimit   = 100
	detailedWordLimit = 200

	shortRiskWordLimit  = 50
	mediumRiskWordLimit = 150

	shortRiskCeiling  = 15.0
	mediumRiskCeiling = 25.0
	longRiskCeiling   = 40.0

	maxScore = 100
)

const (
	SummaryTooBrief       = "The submission is too brief. Please provide more detailed explanations and examples."
	SummaryGoodAttempt    = "Good attempt, but the explanation could be more comprehensive. Consider adding more details."
	SummaryWellStructured = "Well-structured response with good coverage of the topic. Some sections could be elaborated further."
	SummaryExcellent      = "Excellent comprehensive response with detailed explanations and good structure."

	DetailedFeedbackText = "Content analysis shows good understanding. Continue to develop your explanations with more specific examples and references."
)

// RandomSource отдаёт числа из [0,1).
type RandomSource interface {
	Float64() float64
}

type Result struct {
	PlagiarismRisk   float64
	Summary          string
	Score            int
	DetailedFeedback string
	WordCount        int
}

// WordCount считает слова, разделённые пробельными символами.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// PlagiarismRisk: w<50 -> [0,15), 50<=w<150 -> [0,25), иначе [0,40).
func PlagiarismRisk(content string, rnd RandomSource) float64 {
	return riskForWords(WordCount(content), rnd)
}

func riskForWords(words int, rnd RandomSource) float64 {
	ceiling := longRiskCeiling
	switch {
	case words < shortRiskWordLimit:
		ceiling = shortRiskCeiling
	case words < mediumRiskWordLimit:
		ceiling = mediumRiskCeiling
	}

	risk := rnd.Float64() * ceiling
	switch {
	case risk < 0:
		return 0
	case risk >= ceiling:
		return math.Nextafter(ceiling, 0)
	}
	return risk
}

func FeedbackSummary(content string) string {
	return summaryForWords(WordCount(content))
}

func summaryForWords(words int) string {
	switch {
	case words < briefWordLimit:
		return SummaryTooBrief
	case words < mediumWordLimit:
		return SummaryGoodAttempt
	case words < detailedWordLimit:
		return SummaryWellStructured
	default:
		return SummaryExcellent
	}
}

// Score = min(100, w/2) - floor(risk/2), ограничено [0,100].
func Score(content string, risk float64) int {
	return scoreForWords(WordCount(content), risk)
}

func scoreForWords(words int, risk float64) int {
	base := words / 2
	if base > maxScore {
		base = maxScore
	}

	penalty := 0
	if risk > 0 {
		penalty = int(math.Floor(risk / 2))
	}

	result := base - penalty
	if result < 0 {
		return 0
	}
	if result > maxScore {
		return maxScore
	}
	return result
}

func DetailedFeedback(string) string {
	return DetailedFeedbackText
}
