package analyzers

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/assay"
)

// Verdict decisions.
const (
	DecisionRecommended    = "recommended"
	DecisionConditional    = "conditional"
	DecisionNotRecommended = "not_recommended"
)

var scoreValues = map[string]float64{
	assay.ScoreStrongFit:  1.0,
	assay.ScoreGoodFit:    0.75,
	assay.ScorePartialFit: 0.5,
	assay.ScorePoorFit:    0.25,
}

// VerdictAnalyzer aggregates scored dimensions into a decision. Weights of
// missing or failed dimensions are renormalized over the subset that scored,
// and confidence is discounted by coverage.
type VerdictAnalyzer struct{}

func NewVerdictAnalyzer() *VerdictAnalyzer {
	return &VerdictAnalyzer{}
}

func (a *VerdictAnalyzer) Name() string {
	return "verdict"
}

func (a *VerdictAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	var weightSum, weighted, confidenceSum float64
	scored := 0
	for _, d := range assay.Dimensions {
		r, ok := input.DimensionResults[d]
		if !ok || r.Status != assay.ResultStatusScored {
			continue
		}
		weight := r.Weight
		if weight == 0 {
			weight = assay.DefaultDimensionWeights[d]
		}
		weightSum += weight
		weighted += weight * scoreValues[r.Score]
		confidenceSum += r.Confidence
		scored++
	}
	if scored == 0 {
		return nil, assay.NewPipelineError(assay.ErrorTypeAI, "no scored dimensions to decide on")
	}

	aggregate := weighted / weightSum
	coverage := float64(scored) / float64(len(assay.Dimensions))
	decision := DecisionNotRecommended
	switch {
	case aggregate >= 0.75:
		decision = DecisionRecommended
	case aggregate >= 0.5:
		decision = DecisionConditional
	}
	if input.Screening != nil && !input.Screening.Viable {
		decision = DecisionNotRecommended
	}

	return &assay.AnalyzerResult{
		Verdict: &assay.Verdict{
			Decision:   decision,
			Confidence: coverage * (confidenceSum / float64(scored)),
			Summary: fmt.Sprintf("weighted score %.2f across %d of %d dimensions",
				aggregate, scored, len(assay.Dimensions)),
		},
	}, nil
}
