package outbreak

import (
	"fmt"
	"time"
)

// Default engine thresholds.
const (
	// DefaultMinConfidence is the minimum confidence for a scan report to count
	// toward aggregates.
	DefaultMinConfidence = 0.75

	// DefaultWindowHours is the aggregation window when a query omits one.
	DefaultWindowHours = 72

	// DefaultKAnon is the minimum number of reports an aggregate must represent
	// before its breakdown may be shown to an end user.
	DefaultKAnon = 3

	// DefaultBaselineDays is the trailing window used for baseline statistics.
	DefaultBaselineDays = 30

	// DefaultSigmaFloor keeps the classifier defined for cells without variance.
	DefaultSigmaFloor = 1e-6

	// DefaultTopLabels is the number of labels returned in a cell summary.
	DefaultTopLabels = 5
)

// SigmaBands are the standard-deviation multipliers separating severity bands.
// A count strictly above median + Surging*sigma is surging; strictly above
// median + Rising*sigma is rising.
type SigmaBands struct {
	Rising  float64
	Surging float64
}

// DefaultSigmaBands returns the production sensitivity policy.
func DefaultSigmaBands() SigmaBands {
	return SigmaBands{Rising: 1.0, Surging: 2.0}
}

// Thresholds is the engine's tunable policy. It is passed to each service at
// construction instead of being read from a shared global.
type Thresholds struct {
	MinConfidence float64
	WindowHours   int
	KAnon         int
	Bands         SigmaBands
	BaselineDays  int
	SigmaFloor    float64
	TopLabels     int
}

// DefaultThresholds returns the thresholds the product ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence: DefaultMinConfidence,
		WindowHours:   DefaultWindowHours,
		KAnon:         DefaultKAnon,
		Bands:         DefaultSigmaBands(),
		BaselineDays:  DefaultBaselineDays,
		SigmaFloor:    DefaultSigmaFloor,
		TopLabels:     DefaultTopLabels,
	}
}

// Validate checks that the thresholds describe a usable policy.
func (t Thresholds) Validate() error {
	switch {
	case t.MinConfidence < 0 || t.MinConfidence > 1:
		return fmt.Errorf("min confidence %.2f outside [0,1]", t.MinConfidence)
	case t.WindowHours <= 0:
		return fmt.Errorf("window hours must be positive, got %d", t.WindowHours)
	case t.KAnon < 1:
		return fmt.Errorf("k-anonymity threshold must be at least 1, got %d", t.KAnon)
	case t.Bands.Rising < 0 || t.Bands.Surging < t.Bands.Rising:
		return fmt.Errorf("sigma bands must satisfy 0 <= rising <= surging, got %.2f/%.2f", t.Bands.Rising, t.Bands.Surging)
	case t.BaselineDays <= 0:
		return fmt.Errorf("baseline days must be positive, got %d", t.BaselineDays)
	case t.SigmaFloor <= 0:
		return fmt.Errorf("sigma floor must be positive, got %g", t.SigmaFloor)
	case t.TopLabels <= 0:
		return fmt.Errorf("top labels must be positive, got %d", t.TopLabels)
	}
	return nil
}

// BaselineWindow returns the baseline window as a duration.
func (t Thresholds) BaselineWindow() time.Duration {
	return time.Duration(t.BaselineDays) * 24 * time.Hour
}

// MeetsKAnonymity reports whether total represents enough contributors to be
// disclosed.
func (t Thresholds) MeetsKAnonymity(total int) bool {
	return total >= t.KAnon
}

// resolveWindow applies the default window to a zero or negative request.
func (t Thresholds) resolveWindow(sinceHours int) int {
	if sinceHours <= 0 {
		return t.WindowHours
	}
	return sinceHours
}

// resolveMinConfidence applies the default confidence to an absent request.
func (t Thresholds) resolveMinConfidence(minConfidence *float64) float64 {
	if minConfidence == nil {
		return t.MinConfidence
	}
	return *minConfidence
}
