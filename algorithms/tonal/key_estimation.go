// Package tonal estimates tonal properties from pitch class data.
//
// The key estimator is template-free: it reports the dominant pitch class of
// a recording, not a key signature. There is no major/minor decision, so a
// track in A minor and one in A major both report "A".
package tonal

import (
	"sort"

	"github.com/RyanBlaney/sonido-studio/algorithms/chroma"
	"github.com/RyanBlaney/sonido-studio/logging"
)

// KeyCandidate is one pitch class ranked by its share of profile energy
type KeyCandidate struct {
	PitchClass int     `json:"pitch_class"`
	Name       string  `json:"name"`
	Strength   float64 `json:"strength"` // share of total energy, 0-1
}

// KeyEstimate is the dominant pitch class of a profile
type KeyEstimate struct {
	PitchClass int     `json:"pitch_class"` // 0=C, 1=C#, ..., 11=B
	Name       string  `json:"key"`
	Strength   float64 `json:"strength"` // share of total energy held by the winner

	// Candidates lists every pitch class, strongest first
	Candidates []KeyCandidate `json:"candidates,omitempty"`
}

// KeyEstimator picks the maximum-energy pitch class
type KeyEstimator struct {
	logger logging.Logger
}

// NewKeyEstimator creates a key estimator
func NewKeyEstimator(logger logging.Logger) *KeyEstimator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &KeyEstimator{logger: logger}
}

// Estimate sums the chromagram into a profile and returns its dominant pitch class
func (ke *KeyEstimator) Estimate(chromagram *chroma.Chromagram) KeyEstimate {
	return ke.EstimateProfile(chromagram.Profile())
}

// EstimateProfile returns the strongest pitch class of the profile. Ties go to
// the lowest index, so an all-zero profile reports C with zero strength.
func (ke *KeyEstimator) EstimateProfile(profile chroma.PitchClassProfile) KeyEstimate {
	best := profile.Dominant()
	total := profile.Total()

	share := func(v float64) float64 {
		if total <= 0 {
			return 0
		}
		return v / total
	}

	candidates := make([]KeyCandidate, chroma.NumPitchClasses)
	for pc, energy := range profile {
		candidates[pc] = KeyCandidate{
			PitchClass: pc,
			Name:       chroma.PitchClassName(pc),
			Strength:   share(energy),
		}
	}
	// stable keeps index order among equals
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Strength > candidates[j].Strength
	})

	estimate := KeyEstimate{
		PitchClass: best,
		Name:       chroma.PitchClassName(best),
		Strength:   share(profile[best]),
		Candidates: candidates,
	}

	ke.logger.Debug("Dominant pitch class estimated", logging.Fields{
		"component": "key_estimator",
		"function":  "EstimateProfile",
		"key":       estimate.Name,
		"strength":  estimate.Strength,
	})

	return estimate
}
