package chroma

import (
	"errors"

	"github.com/RyanBlaney/sonido-studio/algorithms/stats"
	"github.com/RyanBlaney/sonido-studio/audioerr"
)

// MatchLevel is the qualitative label for a similarity score
type MatchLevel string

const (
	MatchVeryHigh MatchLevel = "Very High"
	MatchHigh     MatchLevel = "High"
	MatchMedium   MatchLevel = "Medium"
	MatchLow      MatchLevel = "Low"
	MatchVeryLow  MatchLevel = "Very Low"
)

// LevelFor maps a score to its label. Thresholds are exclusive, so a score of
// exactly 0.6 is Medium and exactly 0.2 is Very Low.
func LevelFor(score float64) MatchLevel {
	switch {
	case score > 0.8:
		return MatchVeryHigh
	case score > 0.6:
		return MatchHigh
	case score > 0.4:
		return MatchMedium
	case score > 0.2:
		return MatchLow
	default:
		return MatchVeryLow
	}
}

// SimilarityResult is the correlation between two profiles and its label
type SimilarityResult struct {
	Score float64    `json:"similarity"`
	Level MatchLevel `json:"match_level"`
}

// ProfileSimilarity compares pitch class profiles by Pearson correlation
type ProfileSimilarity struct{}

// NewProfileSimilarity creates a profile comparator
func NewProfileSimilarity() *ProfileSimilarity {
	return &ProfileSimilarity{}
}

// Compare correlates two profiles. The score is symmetric, in [-1, 1], and
// exactly 1 for a profile against itself. A profile with zero variance has no
// defined correlation and yields a DegenerateProfile error.
func (ps *ProfileSimilarity) Compare(a, b PitchClassProfile) (SimilarityResult, error) {
	const op = "chroma.ProfileSimilarity.Compare"

	score, err := stats.Pearson(a[:], b[:])
	if err != nil {
		if errors.Is(err, stats.ErrZeroVariance) {
			return SimilarityResult{}, audioerr.Wrap(audioerr.KindDegenerateProfile, op, err,
				"pitch class profile has no variance")
		}
		return SimilarityResult{}, audioerr.Wrap(audioerr.KindInvalidArgument, op, err, "cannot correlate profiles")
	}

	return SimilarityResult{
		Score: score,
		Level: LevelFor(score),
	}, nil
}
