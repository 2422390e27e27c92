package analyzers

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/assay"
)

// RisksAnalyzer derives adoption risks from the weaker dimensions.
type RisksAnalyzer struct{}

func NewRisksAnalyzer() *RisksAnalyzer {
	return &RisksAnalyzer{}
}

func (a *RisksAnalyzer) Name() string {
	return "risks"
}

func (a *RisksAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	var findings []assay.Finding
	for _, d := range assay.Dimensions {
		r, ok := input.DimensionResults[d]
		if !ok {
			continue
		}
		switch {
		case r.Status == assay.ResultStatusFailed:
			findings = append(findings, assay.Finding{
				Title:    fmt.Sprintf("%s was not assessed", d),
				Severity: "medium",
				Detail:   "analysis failed, treat this dimension as unknown",
			})
		case r.Score == assay.ScorePoorFit:
			findings = append(findings, assay.Finding{
				Title:    fmt.Sprintf("poor fit on %s", d),
				Severity: "high",
				Detail:   r.Reasoning,
			})
		case r.Score == assay.ScorePartialFit:
			findings = append(findings, assay.Finding{
				Title:    fmt.Sprintf("weak evidence on %s", d),
				Severity: "low",
				Detail:   r.Reasoning,
			})
		}
	}
	if len(findings) == 0 {
		findings = append(findings, assay.Finding{
			Title:    "no dimension-level risks identified",
			Severity: "low",
		})
	}
	return &assay.AnalyzerResult{Risks: &assay.RiskAssessment{Findings: findings}}, nil
}

// AlternativesAnalyzer suggests non-AI approaches worth comparing against.
type AlternativesAnalyzer struct{}

func NewAlternativesAnalyzer() *AlternativesAnalyzer {
	return &AlternativesAnalyzer{}
}

func (a *AlternativesAnalyzer) Name() string {
	return "alternatives"
}

func (a *AlternativesAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	findings := []assay.Finding{
		{Title: "rules engine", Detail: "if the decision logic can be enumerated, rules are cheaper to run and audit"},
		{Title: "process change", Detail: "restructuring the manual workflow may remove the bottleneck without new software"},
	}
	if r, ok := input.DimensionResults[assay.DimensionScaleBenefit]; ok && r.Score == assay.ScorePoorFit {
		findings = append(findings, assay.Finding{
			Title:  "keep it manual",
			Detail: "volume is too low for automation to pay back its build cost",
		})
	}
	return &assay.AnalyzerResult{Alternatives: &assay.AlternativeAssessment{Findings: findings}}, nil
}

// ArchitectureAnalyzer sketches a candidate solution shape when the verdict
// is favorable.
type ArchitectureAnalyzer struct{}

func NewArchitectureAnalyzer() *ArchitectureAnalyzer {
	return &ArchitectureAnalyzer{}
}

func (a *ArchitectureAnalyzer) Name() string {
	return "architecture"
}

func (a *ArchitectureAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	if input.Verdict != nil && input.Verdict.Decision == DecisionNotRecommended {
		return &assay.AnalyzerResult{
			Architecture: &assay.ArchitectureSketch{
				Summary: "no architecture proposed: an AI approach is not recommended for this problem",
			},
		}, nil
	}
	components := []string{"intake API", "model inference service", "human review queue", "feedback store"}
	if r, ok := input.DimensionResults[assay.DimensionErrorTolerance]; ok && r.Score == assay.ScoreStrongFit {
		// High error tolerance lets output ship without a review gate.
		components = []string{"intake API", "model inference service", "feedback store"}
	}
	return &assay.AnalyzerResult{
		Architecture: &assay.ArchitectureSketch{
			Summary:    "staged rollout behind the existing process, with model output feeding it",
			Components: components,
		},
	}, nil
}
