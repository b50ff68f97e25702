package outbox

import "time"

// RetryPolicy decides what happens to a message whose publish failed.
type RetryPolicy struct {
	// MaxAttempts is the number of publishes before dead-lettering.
	// Zero or less dead-letters on the first failure.
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// Exhausted reports whether a message that has now failed attempts times
// should be dead-lettered.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts <= 0 || attempts >= p.MaxAttempts
}

// Delay is the wait after the given failed attempt: Base doubled for each
// earlier attempt and capped at Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base, ceiling := p.Base, p.Max
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}
