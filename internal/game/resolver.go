package game

const limitClicksCap int64 = 50

// Resolve maps a winning vote option to the next epoch's configuration.
// The mapping is pure and total: no history, no randomness.
func Resolve(option VoteOption) Config {
	switch option {
	case OptionMakeHarder:
		return Config{
			Mode:           OptionMakeHarder,
			PointsPerClick: 0.5,
			ClickCap:       nil,
			Description:    "Each click adds only 0.5 to the community score",
		}
	case OptionLimitClicks:
		clickCap := limitClicksCap
		return Config{
			Mode:           OptionLimitClicks,
			PointsPerClick: 1,
			ClickCap:       &clickCap,
			Description:    "Limited to 50 total clicks today",
		}
	default:
		return Config{
			Mode:           OptionHelpCommunity,
			PointsPerClick: 1,
			ClickCap:       nil,
			Description:    "Each click adds 1 to the community score",
		}
	}
}

// DefaultConfig is the configuration for an epoch with no predecessor
// tally. Defined as the resolution of an empty tally so that first-run
// behavior and the all-zero tie-break stay a single rule.
func DefaultConfig() Config {
	return Resolve(WinningOption(CountsByOption{}))
}
