package assay

// The seven evaluation dimensions. Every assessment scores each of these
// independently and in parallel; the verdict weighs whatever subset completed.
const (
	DimensionErrorTolerance     = "error_tolerance"
	DimensionDataAvailability   = "data_availability"
	DimensionProblemStructure   = "problem_structure"
	DimensionScaleBenefit       = "scale_benefit"
	DimensionExpertiseLeverage  = "expertise_leverage"
	DimensionIterationTolerance = "iteration_tolerance"
	DimensionRiskExposure       = "risk_exposure"
)

// Dimensions lists all dimension identifiers in their canonical order.
var Dimensions = []string{
	DimensionErrorTolerance,
	DimensionDataAvailability,
	DimensionProblemStructure,
	DimensionScaleBenefit,
	DimensionExpertiseLeverage,
	DimensionIterationTolerance,
	DimensionRiskExposure,
}

// DefaultDimensionWeights holds the relative weight of each dimension in
// verdict synthesis. Weights sum to 1.0.
var DefaultDimensionWeights = map[string]float64{
	DimensionErrorTolerance:     0.20,
	DimensionDataAvailability:   0.20,
	DimensionProblemStructure:   0.15,
	DimensionScaleBenefit:       0.15,
	DimensionExpertiseLeverage:  0.10,
	DimensionIterationTolerance: 0.10,
	DimensionRiskExposure:       0.10,
}

// IsDimension reports whether id is one of the seven known dimensions.
func IsDimension(id string) bool {
	for _, d := range Dimensions {
		if d == id {
			return true
		}
	}
	return false
}

// Secondary analysis identifiers, run in parallel after the verdict.
const (
	SecondaryRisks        = "risks"
	SecondaryAlternatives = "alternatives"
	SecondaryArchitecture = "architecture"
)

// SecondaryAnalyses lists all secondary analysis identifiers.
var SecondaryAnalyses = []string{
	SecondaryRisks,
	SecondaryAlternatives,
	SecondaryArchitecture,
}
