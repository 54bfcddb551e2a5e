package domain

import "github.com/jonboulle/clockwork"

// clock supplies ingestion time for records whose upstream timestamp is missing.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for fallback timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
