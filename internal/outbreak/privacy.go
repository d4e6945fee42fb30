package outbreak

import "cropradar/internal/types"

// PrivacyGate applies the minimum group size rule at the point where
// aggregates leave the system. The engine only computes the k_anonymity
// signal; anything that renders results to an end user must pass them through
// a PrivacyGate first.
type PrivacyGate struct {
	thresholds Thresholds
}

// NewPrivacyGate creates a gate for the configured K.
func NewPrivacyGate(thresholds Thresholds) PrivacyGate {
	return PrivacyGate{thresholds: thresholds}
}

// RedactOutbreak returns a copy of resp with the label breakdown, the trend,
// and the unique-field count removed when the aggregate is below K. The total
// is kept so clients can explain why nothing is shown.
func (p PrivacyGate) RedactOutbreak(resp *types.OutbreakResponse) *types.OutbreakResponse {
	if resp == nil {
		return nil
	}
	out := *resp
	if p.thresholds.MeetsKAnonymity(resp.TotalReports) && resp.Confidence.KAnonymity {
		return &out
	}
	out.Confidence.KAnonymity = false
	out.TopLabels = []types.LabelCount{}
	out.Trend = []types.DailyCount{}
	out.UniqueFields = nil
	return &out
}

// RedactRadar returns a copy of resp where buckets below K have their count
// suppressed and their severity reported as stable, so neither the number nor
// the anomaly of a small group is disclosed.
func (p PrivacyGate) RedactRadar(resp *types.RadarResponse) *types.RadarResponse {
	if resp == nil {
		return nil
	}
	out := *resp
	out.Buckets = make([]types.RadarBucket, len(resp.Buckets))
	for i, b := range resp.Buckets {
		if b.KAnonymity && b.Count != nil && p.thresholds.MeetsKAnonymity(*b.Count) {
			count := *b.Count
			b.Count = &count
			out.Buckets[i] = b
			continue
		}
		b.KAnonymity = false
		b.Count = nil
		b.Severity = types.SeverityStable
		out.Buckets[i] = b
	}
	out.Legend = Legend()
	return &out
}
