package services

import "librefind/domain/core/entities"

// Tier is the qualitative band a sovereignty score falls into.
type Tier string

const (
	TierSovereign     Tier = "Sovereign"
	TierTransitioning Tier = "Transitioning"
	TierCaptured      Tier = "Captured"
	// TierUndefined is reported for an empty inventory.
	TierUndefined Tier = ""
)

// Tier thresholds, in percent.
const (
	sovereignThreshold     = 80
	transitioningThreshold = 40
)

// SovereigntyScore counts a classified inventory by status.
// FOSSCount + ProprietaryCount + UnknownCount == TotalApps always holds.
type SovereigntyScore struct {
	TotalApps        int `json:"totalApps"`
	FOSSCount        int `json:"fossCount"`
	ProprietaryCount int `json:"proprietaryCount"`
	UnknownCount     int `json:"unknownCount"`
}

// Score reduces apps to a SovereigntyScore. Items with a status outside the
// known set are counted as unknown.
func Score(apps []entities.AppItem) SovereigntyScore {
	s := SovereigntyScore{TotalApps: len(apps)}
	for _, app := range apps {
		switch app.Status {
		case entities.StatusFOSS:
			s.FOSSCount++
		case entities.StatusProprietary:
			s.ProprietaryCount++
		default:
			s.UnknownCount++
		}
	}
	return s
}

// Ratio is FOSSCount/TotalApps, or 0 for an empty inventory.
func (s SovereigntyScore) Ratio() float64 {
	if s.TotalApps == 0 {
		return 0
	}
	return float64(s.FOSSCount) / float64(s.TotalApps)
}

// Percentage is Ratio scaled to 0..100.
func (s SovereigntyScore) Percentage() float64 {
	return s.Ratio() * 100
}

func (s SovereigntyScore) Tier() Tier {
	if s.TotalApps == 0 {
		return TierUndefined
	}
	// Compared in integers so 4/5 is exactly 80%.
	switch foss := s.FOSSCount * 100; {
	case foss >= sovereignThreshold*s.TotalApps:
		return TierSovereign
	case foss >= transitioningThreshold*s.TotalApps:
		return TierTransitioning
	default:
		return TierCaptured
	}
}

// ScoreReport is the serialised form of a score with its derived values.
type ScoreReport struct {
	SovereigntyScore
	Percentage float64 `json:"percentage"`
	Tier       Tier    `json:"tier"`
}

func (s SovereigntyScore) Report() ScoreReport {
	return ScoreReport{SovereigntyScore: s, Percentage: s.Percentage(), Tier: s.Tier()}
}
