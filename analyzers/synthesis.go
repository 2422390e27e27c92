package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/assay"
)

// SynthesisAnalyzer writes the final narrative from everything accumulated.
type SynthesisAnalyzer struct{}

func NewSynthesisAnalyzer() *SynthesisAnalyzer {
	return &SynthesisAnalyzer{}
}

func (a *SynthesisAnalyzer) Name() string {
	return "synthesis"
}

func (a *SynthesisAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	if input.Verdict == nil {
		return nil, assay.NewPipelineError(assay.ErrorTypeAI, "cannot synthesize without a verdict")
	}

	scored := 0
	var weak []string
	for _, d := range assay.Dimensions {
		r, ok := input.DimensionResults[d]
		if !ok || r.Status != assay.ResultStatusScored {
			continue
		}
		scored++
		if r.Score == assay.ScorePoorFit || r.Score == assay.ScorePartialFit {
			weak = append(weak, d)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Assessment decision: %s (confidence %.2f). ",
		input.Verdict.Decision, input.Verdict.Confidence)
	fmt.Fprintf(&b, "%d of %d dimensions were scored. ", scored, len(assay.Dimensions))
	if len(weak) > 0 {
		fmt.Fprintf(&b, "Weakest areas: %s. ", strings.Join(weak, ", "))
	}
	if input.Risks != nil {
		fmt.Fprintf(&b, "%d risk findings were identified. ", len(input.Risks.Findings))
	}
	if input.Architecture != nil && len(input.Architecture.Components) > 0 {
		fmt.Fprintf(&b, "A candidate architecture with %d components is sketched.",
			len(input.Architecture.Components))
	}

	recommendation := "proceed with a pilot"
	switch input.Verdict.Decision {
	case DecisionConditional:
		recommendation = "proceed only after addressing the weak dimensions"
	case DecisionNotRecommended:
		recommendation = "do not proceed; evaluate the listed alternatives instead"
	}

	return &assay.AnalyzerResult{
		Synthesis: &assay.Synthesis{
			Narrative:      strings.TrimSpace(b.String()),
			Recommendation: recommendation,
		},
	}, nil
}
