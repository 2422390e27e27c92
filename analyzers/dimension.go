package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/assay"
)

// DataQuestionID identifies the helpful question raised when a problem never
// mentions its data situation.
const DataQuestionID = "dimension.data_availability"

// dimensionSignals holds keyword evidence for and against AI suitability on
// one dimension. Scoring counts net matches across problem, context, and
// accumulated answers.
type dimensionSignals struct {
	positive []string
	negative []string
}

var signals = map[string]dimensionSignals{
	assay.DimensionErrorTolerance: {
		positive: []string{"draft", "suggestion", "review", "human in the loop", "approximate"},
		negative: []string{"safety critical", "regulatory", "exact", "zero error", "compliance"},
	},
	assay.DimensionDataAvailability: {
		positive: []string{"historical data", "logs", "labeled", "dataset", "records"},
		negative: []string{"no data", "cold start", "confidential", "sparse"},
	},
	assay.DimensionProblemStructure: {
		positive: []string{"classify", "summarize", "extract", "rank", "translate", "pattern"},
		negative: []string{"novel", "one-off", "undefined", "ambiguous goal"},
	},
	assay.DimensionScaleBenefit: {
		positive: []string{"thousands", "millions", "daily", "per hour", "high volume", "repetitive"},
		negative: []string{"rare", "once a year", "handful", "low volume"},
	},
	assay.DimensionExpertiseLeverage: {
		positive: []string{"expert", "specialist", "backlog", "bottleneck", "scarce"},
		negative: []string{"anyone can", "trivial", "unskilled"},
	},
	assay.DimensionIterationTolerance: {
		positive: []string{"pilot", "experiment", "iterate", "gradual", "feedback"},
		negative: []string{"deadline", "launch date", "no room for error", "one shot"},
	},
	assay.DimensionRiskExposure: {
		positive: []string{"internal", "reversible", "advisory", "low stakes"},
		negative: []string{"financial", "medical", "legal", "privacy", "irreversible"},
	},
}

// DimensionAnalyzer scores one dimension from keyword evidence. Deterministic
// on its input, so reruns after resume converge.
type DimensionAnalyzer struct {
	dimension string
}

func NewDimensionAnalyzer(dimension string) *DimensionAnalyzer {
	return &DimensionAnalyzer{dimension: dimension}
}

func (a *DimensionAnalyzer) Name() string {
	return "dimension:" + a.dimension
}

func (a *DimensionAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.ToLower(input.Problem + " " + input.Context)
	for _, answer := range input.Answers {
		text += " " + strings.ToLower(answer)
	}

	sig := signals[a.dimension]
	net := 0
	var hits []string
	for _, kw := range sig.positive {
		if strings.Contains(text, kw) {
			net++
			hits = append(hits, "+"+kw)
		}
	}
	for _, kw := range sig.negative {
		if strings.Contains(text, kw) {
			net--
			hits = append(hits, "-"+kw)
		}
	}

	if a.dimension == assay.DimensionDataAvailability && !strings.Contains(text, "data") {
		if _, answered := input.Answers[DataQuestionID]; !answered {
			emit(assay.AnalyzerQuestion{
				EventMeta: assay.NewEventMeta(input.ThreadID),
				Question: assay.Question{
					ID:        DataQuestionID,
					Stage:     assay.StageDimensions,
					Dimension: a.dimension,
					Text:      "What data exists today that relates to this problem, and in what volume?",
					Blocking:  false,
				},
			})
		}
	}

	emit(assay.AnalyzerPreliminary{
		EventMeta: assay.NewEventMeta(input.ThreadID),
		Stage:     assay.StageDimensions,
		Dimension: a.dimension,
		Note:      fmt.Sprintf("%d signals: %s", len(hits), strings.Join(hits, ", ")),
	})

	score := assay.ScorePartialFit
	switch {
	case net >= 2:
		score = assay.ScoreStrongFit
	case net == 1:
		score = assay.ScoreGoodFit
	case net < 0:
		score = assay.ScorePoorFit
	}
	confidence := 0.5 + 0.1*float64(abs(net))
	if confidence > 0.9 {
		confidence = 0.9
	}

	return &assay.AnalyzerResult{
		Dimension: &assay.DimensionResult{
			Dimension:  a.dimension,
			Score:      score,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("net signal %+d from %d keyword matches", net, len(hits)),
		},
	}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
