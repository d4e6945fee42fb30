package outbreak

import "cropradar/internal/types"

// Classify maps a current count onto a severity band relative to the cell's
// baseline. Comparisons are strict: a count exactly on a band edge stays in
// the lower band.
func Classify(count, median, sigma float64, bands SigmaBands) types.Severity {
	switch {
	case count > median+bands.Surging*sigma:
		return types.SeveritySurging
	case count > median+bands.Rising*sigma:
		return types.SeverityRising
	default:
		return types.SeverityStable
	}
}

// Classifier binds Classify to a configured set of bands.
type Classifier struct {
	Bands SigmaBands
}

// Classify applies the configured bands.
func (c Classifier) Classify(count, median, sigma float64) types.Severity {
	return Classify(count, median, sigma, c.Bands)
}
