// Package analyzers provides a deterministic analyzer set driven by keyword
// heuristics. It lets the engine run end to end without an inference service;
// production deployments swap in analyzers backed by one.
package analyzers

import "github.com/deepnoodle-ai/assay"

// Set returns a complete analyzer set covering every stage, dimension, and
// secondary analysis.
func Set() *assay.AnalyzerSet {
	dimensions := make(map[string]assay.Analyzer, len(assay.Dimensions))
	for _, d := range assay.Dimensions {
		dimensions[d] = NewDimensionAnalyzer(d)
	}
	return &assay.AnalyzerSet{
		Screening:  NewScreeningAnalyzer(),
		Dimensions: dimensions,
		Verdict:    NewVerdictAnalyzer(),
		Secondary: map[string]assay.Analyzer{
			assay.SecondaryRisks:        NewRisksAnalyzer(),
			assay.SecondaryAlternatives: NewAlternativesAnalyzer(),
			assay.SecondaryArchitecture: NewArchitectureAnalyzer(),
		},
		Synthesis: NewSynthesisAnalyzer(),
	}
}
