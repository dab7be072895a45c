package model

import "testing"

func TestMatchResult(t *testing.T) {
	tests := []struct {
		gf, ga int
		want   string
	}{
		{3, 1, "victoire"},
		{0, 2, "defaite"},
		{1, 1, "nul"},
		{0, 0, "nul"},
	}
	for _, tt := range tests {
		m := Match{GoalsFor: tt.gf, GoalsAgainst: tt.ga}
		if got := m.Result(); got != tt.want {
			t.Errorf("Result(%d-%d) = %q, want %q", tt.gf, tt.ga, got, tt.want)
		}
	}
}
