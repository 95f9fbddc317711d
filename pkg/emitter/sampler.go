package emitter

import (
	"math/rand/v2"
	"time"
)

// Sampler yields the cooldown that follows each cycle. It is invoked once per
// cycle and its result is never cached.
type Sampler interface {
	Sample() time.Duration
}

// Fixed is a constant cooldown.
type Fixed time.Duration

// Sample returns the fixed duration.
func (f Fixed) Sample() time.Duration {
	return time.Duration(f)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() time.Duration

// Sample calls f.
func (f SamplerFunc) Sample() time.Duration {
	return f()
}

// Uniform returns a sampler drawing cooldowns uniformly from [min, max).
// Bounds are swapped if given in the wrong order.
func Uniform(min, max time.Duration) Sampler {
	if max < min {
		min, max = max, min
	}
	return SamplerFunc(func() time.Duration {
		if max == min {
			return min
		}
		return min + time.Duration(rand.Int64N(int64(max-min)))
	})
}
