package chroma

import (
	"github.com/RyanBlaney/sonido-studio/algorithms/common"
)

// PitchClassNames are the canonical pitch class labels, index 0 = C
var PitchClassNames = [NumPitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchClassName returns the label for a pitch class index
func PitchClassName(pc int) string {
	if pc < 0 || pc >= NumPitchClasses {
		return ""
	}
	return PitchClassNames[pc]
}

// PitchClassIndex returns the index for a label, -1 if unknown
func PitchClassIndex(name string) int {
	for i, n := range PitchClassNames {
		if n == name {
			return i
		}
	}
	return -1
}

// PitchClassProfile is the energy per pitch class summed over a chromagram
type PitchClassProfile [NumPitchClasses]float64

// Profile sums all chroma frames into a pitch class profile
func (c *Chromagram) Profile() PitchClassProfile {
	var profile PitchClassProfile
	for _, frame := range c.Frames {
		for pc, energy := range frame {
			profile[pc] += energy
		}
	}
	return profile
}

// Values returns the profile as a slice
func (p PitchClassProfile) Values() []float64 {
	return p[:]
}

// Total returns the summed energy across all pitch classes
func (p PitchClassProfile) Total() float64 {
	return common.Sum(p[:])
}

// Dominant returns the index of the strongest pitch class, the lowest index on ties
func (p PitchClassProfile) Dominant() int {
	return common.ArgMax(p[:])
}

// Normalized returns the profile scaled to unit sum; a silent profile is returned as is
func (p PitchClassProfile) Normalized() PitchClassProfile {
	total := p.Total()
	if total <= 0 {
		return p
	}
	for i := range p {
		p[i] /= total
	}
	return p
}

// Transpose rotates the profile up by the given number of semitones
func (p PitchClassProfile) Transpose(semitones int) PitchClassProfile {
	var out PitchClassProfile
	shift := ((semitones % NumPitchClasses) + NumPitchClasses) % NumPitchClasses
	for i, v := range p {
		out[(i+shift)%NumPitchClasses] = v
	}
	return out
}
