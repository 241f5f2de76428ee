package channel

import "time"

// Config holds the fault-injection settings for a channel. Values are
// clamped to their valid ranges at construction and immutable afterwards;
// a Config may be shared across concurrently running transfers.
type Config struct {
	Loss       float64       // probability of dropping a packet, [0,1]
	Corruption float64       // probability of corrupting the checksum, [0,1]
	Delay      time.Duration // fixed latency applied before each trial, ≥0
}

// NewConfig builds a Config, clamping out-of-range values instead of
// rejecting them.
func NewConfig(loss, corruption float64, delay time.Duration) Config {
	return Config{
		Loss:       clamp01(loss),
		Corruption: clamp01(corruption),
		Delay:      max(delay, 0),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
