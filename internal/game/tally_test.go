package game

import "testing"

func TestWinningOptionPlurality(t *testing.T) {
	counts := CountsByOption{
		OptionHelpCommunity: 1,
		OptionMakeHarder:    4,
		OptionLimitClicks:   2,
	}
	if got := WinningOption(counts); got != OptionMakeHarder {
		t.Fatalf("expected make_harder, got %s", got)
	}
}

func TestWinningOptionTieBreaksByRank(t *testing.T) {
	tests := []struct {
		name     string
		counts   CountsByOption
		expected VoteOption
	}{
		{
			name:     "three-way tie",
			counts:   CountsByOption{OptionHelpCommunity: 5, OptionMakeHarder: 5, OptionLimitClicks: 5},
			expected: OptionHelpCommunity,
		},
		{
			name:     "two-way tie among higher ranks",
			counts:   CountsByOption{OptionHelpCommunity: 1, OptionMakeHarder: 3, OptionLimitClicks: 3},
			expected: OptionMakeHarder,
		},
		{
			name:     "all zero",
			counts:   CountsByOption{},
			expected: OptionHelpCommunity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// The rule is deterministic: identical inputs must produce
			// identical winners on every invocation.
			for i := 0; i < 5; i++ {
				if got := WinningOption(tc.counts); got != tc.expected {
					t.Fatalf("expected %s, got %s", tc.expected, got)
				}
			}
		})
	}
}

func TestCountsTotal(t *testing.T) {
	counts := CountsByOption{OptionHelpCommunity: 2, OptionLimitClicks: 3}
	if got := counts.Total(); got != 5 {
		t.Fatalf("expected total 5, got %d", got)
	}
}
