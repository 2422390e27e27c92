package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/assay"
)

// ContextQuestionID identifies the blocking question raised when a problem
// arrives without any surrounding context.
const ContextQuestionID = "screening.context"

// ScreeningAnalyzer refines the problem statement and decides whether the
// assessment is worth running at all. It raises a blocking question when the
// submission has no context to work with.
type ScreeningAnalyzer struct{}

func NewScreeningAnalyzer() *ScreeningAnalyzer {
	return &ScreeningAnalyzer{}
}

func (a *ScreeningAnalyzer) Name() string {
	return "screening"
}

func (a *ScreeningAnalyzer) Analyze(ctx context.Context, input assay.AnalyzerInput, emit assay.EmitFunc) (*assay.AnalyzerResult, error) {
	if input.Problem == "" {
		return nil, assay.NewPipelineError(assay.ErrorTypeValidation, "problem text is empty")
	}

	if input.Context == "" {
		if _, answered := input.Answers[ContextQuestionID]; !answered {
			emit(assay.AnalyzerQuestion{
				EventMeta: assay.NewEventMeta(input.ThreadID),
				Question: assay.Question{
					ID:       ContextQuestionID,
					Stage:    assay.StageScreening,
					Text:     "What is the operational context for this problem (users, volume, current process)?",
					Blocking: true,
				},
			})
		}
	}

	words := len(strings.Fields(input.Problem))
	complexity := "low"
	switch {
	case words > 120:
		complexity = "high"
	case words > 40:
		complexity = "medium"
	}

	emit(assay.AnalyzerPreliminary{
		EventMeta: assay.NewEventMeta(input.ThreadID),
		Stage:     assay.StageScreening,
		Note:      fmt.Sprintf("screening complete, complexity %s", complexity),
	})

	return &assay.AnalyzerResult{
		Screening: &assay.ScreeningResult{
			Refined:    strings.TrimSpace(input.Problem),
			Complexity: complexity,
			Viable:     !mentionsAny(input.Problem, []string{"exact arithmetic", "simple lookup", "crud only"}),
		},
	}, nil
}

func mentionsAny(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
