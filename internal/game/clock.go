package game

import "time"

const epochIDLayout = "2006-01-02"

// CurrentEpochID returns the epoch the given instant falls in: the UTC
// calendar date, regardless of the instant's own location.
func CurrentEpochID(now time.Time) EpochID {
	return EpochID(now.UTC().Format(epochIDLayout))
}

// HasCrossedBoundary reports whether now falls in a later epoch than
// lastKnown. Epoch ids are ISO dates, so lexicographic comparison is
// chronological; a backward clock move never crosses a boundary.
func HasCrossedBoundary(lastKnown EpochID, now time.Time) bool {
	if lastKnown == "" {
		return false
	}
	return CurrentEpochID(now) > lastKnown
}

// epochDate parses an epoch id back into its UTC midnight instant.
func epochDate(id EpochID) (time.Time, error) {
	return time.ParseInLocation(epochIDLayout, id.String(), time.UTC)
}

// epochOffset returns the epoch id the given number of days before id.
func epochOffset(id EpochID, daysBack int) (EpochID, error) {
	date, err := epochDate(id)
	if err != nil {
		return "", err
	}
	return CurrentEpochID(date.AddDate(0, 0, -daysBack)), nil
}
