package tonal

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-studio/algorithms/chroma"
)

func TestEstimateProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile chroma.PitchClassProfile
		want    string
		wantPC  int
	}{
		{"single peak", chroma.PitchClassProfile{9: 5}, "A", 9},
		{"tie goes to lowest index", chroma.PitchClassProfile{2: 3, 7: 3, 11: 1}, "D", 2},
		{"silence reports C", chroma.PitchClassProfile{}, "C", 0},
		{"last bin", chroma.PitchClassProfile{0: 1, 11: 1.5}, "B", 11},
	}

	ke := NewKeyEstimator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ke.EstimateProfile(tt.profile)
			if got.Name != tt.want || got.PitchClass != tt.wantPC {
				t.Errorf("Expected %s (%d), got %s (%d)", tt.want, tt.wantPC, got.Name, got.PitchClass)
			}
		})
	}
}

func TestEstimateStrengthAndCandidates(t *testing.T) {
	profile := chroma.PitchClassProfile{0: 1, 4: 1, 7: 2}
	got := NewKeyEstimator(nil).EstimateProfile(profile)

	if got.Name != "G" {
		t.Fatalf("Expected G, got %s", got.Name)
	}
	if math.Abs(got.Strength-0.5) > 1e-12 {
		t.Errorf("Expected strength 0.5, got %f", got.Strength)
	}
	if len(got.Candidates) != 12 {
		t.Fatalf("Expected 12 candidates, got %d", len(got.Candidates))
	}
	// G first, then C before E on the tie
	order := []string{"G", "C", "E"}
	for i, name := range order {
		if got.Candidates[i].Name != name {
			t.Errorf("Candidate %d: expected %s, got %s", i, name, got.Candidates[i].Name)
		}
	}
}

func TestEstimateFromChromagram(t *testing.T) {
	cg := &chroma.Chromagram{
		Frames: []chroma.ChromaFrame{
			{1: 2},
			{1: 1, 5: 2.5},
			{5: 0.4},
		},
	}

	got := NewKeyEstimator(nil).Estimate(cg)
	if got.Name != "F" {
		t.Errorf("Expected F, got %s", got.Name)
	}
}
