package blockchain

import "time"

// Poll cadence defaults.
const (
	// DefaultInterval is the poll cadence while the node is far from the tip.
	DefaultInterval = 90 * time.Second

	// FastInterval is the cadence once the node is close to the tip. It is
	// also the delay before switching to it.
	FastInterval = 5 * time.Second

	// NearCompletionBlocks is the remaining-block threshold that triggers
	// the switch to FastInterval.
	NearCompletionBlocks uint64 = 5
)

// Config holds the tunable poll parameters. Zero fields take the defaults.
type Config struct {
	DefaultInterval      time.Duration
	FastInterval         time.Duration
	NearCompletionBlocks uint64
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{
		DefaultInterval:      DefaultInterval,
		FastInterval:         FastInterval,
		NearCompletionBlocks: NearCompletionBlocks,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = DefaultInterval
	}
	if c.FastInterval <= 0 {
		c.FastInterval = FastInterval
	}
	if c.NearCompletionBlocks == 0 {
		c.NearCompletionBlocks = NearCompletionBlocks
	}
	return c
}

// State is the externally visible phase of the poll cycle.
type State int

const (
	StateIdle State = iota
	StateCheckingConnectivity
	StatePolling
	StateAccelerating
	StateCompleted
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingConnectivity:
		return "checking_connectivity"
	case StatePolling:
		return "polling"
	case StateAccelerating:
		return "accelerating"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
