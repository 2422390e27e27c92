package assay

import (
	"context"
	"fmt"
)

// AnalyzerInput is the stage-specific input handed to an analyzer: the
// problem under assessment, accumulated answers, and prior-stage outputs.
type AnalyzerInput struct {
	ThreadID         string
	Stage            Stage
	Dimension        string
	Problem          string
	Context          string
	Answers          map[string]string
	Screening        *ScreeningResult
	DimensionResults map[string]DimensionResult
	Verdict          *Verdict
	Risks            *RiskAssessment
	Alternatives     *AlternativeAssessment
	Architecture     *ArchitectureSketch
}

// AnalyzerResult is the single typed result an analyzer terminates with.
// Exactly one slot is set, matching the stage the analyzer serves.
type AnalyzerResult struct {
	Screening    *ScreeningResult
	Dimension    *DimensionResult
	Verdict      *Verdict
	Risks        *RiskAssessment
	Alternatives *AlternativeAssessment
	Architecture *ArchitectureSketch
	Synthesis    *Synthesis
}

// Analyzer is the contract for an analysis collaborator. The engine imposes
// no constraint on analyzer internals: it may call an inference service, run
// tools, or compute locally, as long as it emits progress events through emit
// and terminates with exactly one result or an error. Implementations must
// honor ctx cancellation on a best-effort basis.
type Analyzer interface {

	// Name returns the name of the Analyzer
	Name() string

	// Analyze runs the analysis for the given input.
	Analyze(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error)
}

// AnalyzerFunc wraps a function for use as an Analyzer. It implements the
// assay.Analyzer interface.
type AnalyzerFunc struct {
	name string
	fn   func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error)
}

// NewAnalyzerFunc returns an Analyzer for the given function.
func NewAnalyzerFunc(name string, fn func(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error)) *AnalyzerFunc {
	return &AnalyzerFunc{name: name, fn: fn}
}

// Name of the Analyzer.
func (a *AnalyzerFunc) Name() string {
	return a.name
}

// Analyze runs the wrapped function.
func (a *AnalyzerFunc) Analyze(ctx context.Context, input AnalyzerInput, emit EmitFunc) (*AnalyzerResult, error) {
	return a.fn(ctx, input, emit)
}

// AnalyzerSet holds one analyzer per sequential stage, one per dimension, and
// one per secondary analysis.
type AnalyzerSet struct {
	Screening  Analyzer
	Dimensions map[string]Analyzer
	Verdict    Analyzer
	Secondary  map[string]Analyzer
	Synthesis  Analyzer
}

// Validate confirms every stage and dimension has an analyzer.
func (s *AnalyzerSet) Validate() error {
	if s.Screening == nil {
		return fmt.Errorf("screening analyzer is required")
	}
	if s.Verdict == nil {
		return fmt.Errorf("verdict analyzer is required")
	}
	if s.Synthesis == nil {
		return fmt.Errorf("synthesis analyzer is required")
	}
	for _, d := range Dimensions {
		if s.Dimensions[d] == nil {
			return fmt.Errorf("dimension analyzer %q is required", d)
		}
	}
	for _, id := range SecondaryAnalyses {
		if s.Secondary[id] == nil {
			return fmt.Errorf("secondary analyzer %q is required", id)
		}
	}
	return nil
}
