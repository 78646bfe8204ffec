package game

// CountsByOption holds one epoch's vote tally. Options absent from the map
// count as zero.
type CountsByOption map[VoteOption]int64

// Total sums the tally across all options.
func (c CountsByOption) Total() int64 {
	var total int64
	for _, count := range c {
		total += count
	}
	return total
}

// WinningOption applies the plurality rule: the option with the strictly
// highest count wins, and ties go to the lowest-ranked option among the
// tied ones. The all-zero tally therefore resolves to the first option in
// rank order, so the result is deterministic for every input.
func WinningOption(counts CountsByOption) VoteOption {
	options := VoteOptions()
	winner := options[0]
	best := counts[winner]
	for _, option := range options[1:] {
		if counts[option] > best {
			winner = option
			best = counts[option]
		}
	}
	return winner
}

// VoteTally pairs a tally with the option currently winning it.
type VoteTally struct {
	EpochID    EpochID
	Counts     CountsByOption
	Winning    VoteOption
	TotalVotes int64
}
