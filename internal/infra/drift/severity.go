package drift

import "github.com/driftwatch/driftwatch/internal/domain"

// SeverityPolicy maps a drift score and its threshold to a severity.
type SeverityPolicy interface {
	Classify(score, threshold float64) domain.DriftSeverity
}

// BandedPolicy grades scores in bands of the threshold T:
// below T none, [T, 1.5T) low, [1.5T, 2T) moderate, 2T and above high.
type BandedPolicy struct{}

func (BandedPolicy) Classify(score, threshold float64) domain.DriftSeverity {
	switch {
	case score < threshold:
		return domain.SeverityNone
	case score < 1.5*threshold:
		return domain.SeverityLow
	case score < 2*threshold:
		return domain.SeverityModerate
	default:
		return domain.SeverityHigh
	}
}
