package auralend

import (
	"errors"
	"time"
)

// CurrentSequence derives the monotonically increasing sequence counter
// from wall-clock time and the market genesis timestamp. Interest accrual
// and price staleness checks are expressed in sequences, never in raw time,
// so the whole core stays deterministic under synthetic clocks.
func CurrentSequence(now time.Time, genesis, secondsPerSequence int64) (uint64, error) {
	if secondsPerSequence <= 0 {
		return 0, errors.New("secondsPerSequence should not be less than or equal zero")
	}

	seconds := now.UTC().Unix() - genesis
	if seconds <= 0 {
		return 0, errors.New("invalid sequence")
	}

	return uint64(seconds / secondsPerSequence), nil
}

// SequencesPerYear sequences elapsing in one year at the configured cadence.
func SequencesPerYear(secondsPerSequence int64) uint64 {
	if secondsPerSequence <= 0 {
		return 0
	}

	return uint64(SecondsPerYear / secondsPerSequence)
}
