package scoring

import (
	"math"
	"regexp"
	"strings"
)

const minTokenLength = 3

var nonWord = regexp.MustCompile(`[^\w\s]`)

// maxSimilarityRisk держит результат строго ниже 100.
var maxSimilarityRisk = math.Nextafter(100, 0)

// SimilarityRiskEstimator сравнивает работу с другими работами по заданию:
// TF-IDF векторы, максимальное косинусное сходство * 100.
type SimilarityRiskEstimator struct{}

func NewSimilarityRiskEstimator() *SimilarityRiskEstimator {
	return &SimilarityRiskEstimator{}
}

func (e *SimilarityRiskEstimator) UsesPeers() bool { return true }

func (e *SimilarityRiskEstimator) Estimate(content string, peers []string) float64 {
	if len(peers) == 0 {
		return 0
	}

	docs := make([]string, 0, len(peers)+1)
	docs = append(docs, peers...)
	docs = append(docs, content)

	vectors := tfidf(docs)
	current := vectors[len(vectors)-1]

	best := 0.0
	for _, v := range vectors[:len(peers)] {
		best = math.Max(best, cosine(v, current))
	}

	return math.Min(best*100, maxSimilarityRisk)
}

func tokenize(text string) []string {
	text = nonWord.ReplaceAllString(strings.ToLower(text), " ")

	fields := strings.Fields(text)
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func tfidf(docs []string) []map[string]float64 {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)

	for i, d := range docs {
		tokenized[i] = tokenize(d)

		seen := make(map[string]struct{})
		for _, t := range tokenized[i] {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := float64(len(docs))
	vectors := make([]map[string]float64, len(docs))

	for i, tokens := range tokenized {
		tf := make(map[string]int)
		for _, t := range tokens {
			tf[t]++
		}

		vec := make(map[string]float64, len(tf))
		for t, count := range tf {
			vec[t] = float64(count) / float64(len(tokens)) * math.Log(n/float64(df[t]))
		}
		vectors[i] = vec
	}

	return vectors
}

func cosine(a, b map[string]float64) float64 {
	var dot, magA, magB float64

	for k, va := range a {
		dot += va * b[k]
		magA += va * va
	}
	for _, vb := range b {
		magB += vb * vb
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
