// Package policy — retry.go
//
// Exponential backoff with multiplicative jitter (see spec §4.2).
//
// Formula:
//
//	nextIndex = attemptsForOp + 1                        (1-based)
//	raw       = minBackoffMs * 2^(nextIndex-1)            clamped to [min,max]
//	factor    = sample(1-jitterRatio, 1+jitterRatio)      floored at 0
//	delay     = clamp(raw * factor, minBackoffMs, maxBackoffMs)
//
// With jitterRatio == 0 the policy is fully deterministic, which is what
// the test suite relies on. Randomness is never read from an ambient
// global — it always comes through the injected Sampler.

package policy

import "github.com/octorelay/blesync-engine/internal/domain"

// Sampler draws a uniform float64 in [lo, hi]. Tests inject a fixed
// sampler; production code would inject a real RNG source.
type Sampler interface {
	Uniform(lo, hi float64) float64
}

// FixedSampler always returns Value, regardless of the requested range.
// Useful for deterministic tests that don't care about jitter shape.
type FixedSampler struct {
	Value float64
}

func (f FixedSampler) Uniform(lo, hi float64) float64 {
	return f.Value
}

// MidpointSampler returns the midpoint of [lo, hi] — equivalent to
// jitterRatio having no effect, used when JitterRatio == 0 so callers
// don't need to supply a real RNG at all.
type MidpointSampler struct{}

func (MidpointSampler) Uniform(lo, hi float64) float64 {
	return (lo + hi) / 2
}

// RetryOutcome is the result of a retry decision.
type RetryOutcome struct {
	ShouldSchedule bool
	At             domain.TimestampMs
}

// RetryPolicy decides whether to schedule another attempt or give up,
// given how many attempts have already been made for an operation family.
type RetryPolicy struct {
	MaxAttempts   int
	MinBackoffMs  int64
	MaxBackoffMs  int64
	JitterRatio   float64 // in [0,1]
	Sampler       Sampler
}

// NewRetryPolicy constructs a RetryPolicy, defaulting Sampler to
// MidpointSampler when nil (so JitterRatio == 0 callers need not supply
// one).
func NewRetryPolicy(maxAttempts int, minBackoffMs, maxBackoffMs int64, jitterRatio float64, sampler Sampler) RetryPolicy {
	if sampler == nil {
		sampler = MidpointSampler{}
	}
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		MinBackoffMs: minBackoffMs,
		MaxBackoffMs: maxBackoffMs,
		JitterRatio:  jitterRatio,
		Sampler:      sampler,
	}
}

// Decide returns Schedule(at) or GiveUp for the given attempt count.
func (p RetryPolicy) Decide(now domain.TimestampMs, attemptsForOp int, reason domain.RetryReason) RetryOutcome {
	if attemptsForOp >= p.MaxAttempts {
		return RetryOutcome{ShouldSchedule: false}
	}

	nextIndex := attemptsForOp + 1
	raw := float64(p.MinBackoffMs) * pow2(nextIndex-1)
	raw = clampF(raw, float64(p.MinBackoffMs), float64(p.MaxBackoffMs))

	jitterLo := 1.0 - p.JitterRatio
	if jitterLo < 0 {
		jitterLo = 0
	}
	jitterHi := 1.0 + p.JitterRatio
	factor := p.Sampler.Uniform(jitterLo, jitterHi)

	delay := clampF(raw*factor, float64(p.MinBackoffMs), float64(p.MaxBackoffMs))

	return RetryOutcome{
		ShouldSchedule: true,
		At:             now + domain.TimestampMs(delay),
	}
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
