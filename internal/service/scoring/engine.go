package scoring

// RiskEstimator оценивает риск плагиата в [0,100).
type RiskEstimator interface {
	Estimate(content string, peers []string) float64
}

// peerAware помечает оценщики, которым нужны другие работы по заданию.
type peerAware interface {
	UsesPeers() bool
}

type TieredRiskEstimator struct {
	rnd RandomSource
}

func NewTieredRiskEstimator(rnd RandomSource) *TieredRiskEstimator {
	return &TieredRiskEstimator{rnd: rnd}
}

func (e *TieredRiskEstimator) Estimate(content string, _ []string) float64 {
	return PlagiarismRisk(content, e.rnd)
}

type Engine struct {
	estimator RiskEstimator
}

func NewEngine(estimator RiskEstimator) *Engine {
	return &Engine{estimator: estimator}
}

func (e *Engine) UsesPeers() bool {
	p, ok := e.estimator.(peerAware)
	return ok && p.UsesPeers()
}

func (e *Engine) Evaluate(content string, peers []string) Result {
	words := WordCount(content)
	risk := e.estimator.Estimate(content, peers)

	return Result{
		PlagiarismRisk:   risk,
		Summary:          summaryForWords(words),
		Score:            scoreForWords(words, risk),
		DetailedFeedback: DetailedFeedback(content),
		WordCount:        words,
	}
}
