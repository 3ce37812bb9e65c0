package services

import (
	"math/rand"
	"testing"

	"librefind/domain/core/entities"

	"github.com/stretchr/testify/assert"
)

func TestScore_MapsAndNavigation(t *testing.T) {
	apps := []entities.AppItem{
		{PackageName: "com.google.maps", Status: entities.StatusProprietary},
		{PackageName: "org.osmand", Status: entities.StatusFOSS},
	}

	s := Score(apps)
	assert.Equal(t, SovereigntyScore{TotalApps: 2, FOSSCount: 1, ProprietaryCount: 1}, s)
	assert.InDelta(t, 50.0, s.Percentage(), 1e-9)
	assert.Equal(t, TierTransitioning, s.Tier())
}

func TestScore_Tiers(t *testing.T) {
	build := func(foss, other int) []entities.AppItem {
		apps := make([]entities.AppItem, 0, foss+other)
		for i := 0; i < foss; i++ {
			apps = append(apps, entities.AppItem{Status: entities.StatusFOSS})
		}
		for i := 0; i < other; i++ {
			apps = append(apps, entities.AppItem{Status: entities.StatusUnknown})
		}
		return apps
	}

	tests := []struct {
		name        string
		foss, other int
		want        Tier
	}{
		{"all foss", 5, 0, TierSovereign},
		{"exactly 80", 4, 1, TierSovereign},
		{"79", 79, 21, TierTransitioning},
		{"exactly 40", 2, 3, TierTransitioning},
		{"39", 39, 61, TierCaptured},
		{"none", 0, 3, TierCaptured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(build(tt.foss, tt.other)).Tier())
		})
	}
}

func TestScore_Empty(t *testing.T) {
	s := Score(nil)
	assert.Equal(t, 0, s.TotalApps)
	assert.Equal(t, 0.0, s.Percentage())
	assert.Equal(t, TierUndefined, s.Tier())

	r := s.Report()
	assert.Equal(t, TierUndefined, r.Tier)
}

func TestScore_CountsSumToTotal(t *testing.T) {
	statuses := []entities.AppStatus{entities.StatusFOSS, entities.StatusProprietary, entities.StatusUnknown, "???"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		apps := make([]entities.AppItem, rng.Intn(50))
		for j := range apps {
			apps[j].Status = statuses[rng.Intn(len(statuses))]
		}
		s := Score(apps)
		assert.Equal(t, len(apps), s.TotalApps)
		assert.Equal(t, s.TotalApps, s.FOSSCount+s.ProprietaryCount+s.UnknownCount)
	}
}
