package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff configures the wait between attempts.
type Backoff struct {
	// Initial is the wait after the first failed attempt.
	Initial time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" json:"initial"`
	// Max caps the wait. Zero means uncapped.
	Max time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" json:"max"`
	// Factor multiplies the wait after each failure. Values below 1 mean 2.
	Factor float64 `yaml:"factor" mapstructure:"factor" json:"factor"`
	// Jitter randomises the wait by up to this fraction (0.0 to 1.0).
	Jitter float64 `yaml:"jitter" mapstructure:"jitter" json:"jitter"`
}

// Policy bounds how often an operation is attempted.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts" json:"max_attempts"`
	Backoff     Backoff `yaml:",inline" mapstructure:",squash" json:"backoff"`
}

// NoRetry is the policy of a single attempt.
var NoRetry = Policy{MaxAttempts: 1}

// DefaultPolicy returns three attempts starting at a 100ms backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff: Backoff{
			Initial: 100 * time.Millisecond,
			Max:     10 * time.Second,
			Factor:  2.0,
			Jitter:  0.1,
		},
	}
}

// Attempts returns the normalised attempt limit.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2.0
	}
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.Initial) * math.Pow(factor, float64(attempt-1))

	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}
