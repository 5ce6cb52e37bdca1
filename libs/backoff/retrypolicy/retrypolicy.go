package retrypolicy

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Done is returned by CalculateNextDelay when no further retries should be attempted
const Done time.Duration = -1

const defaultJitterCoefficient = 0.2

var (
	// DefaultRetry a retry policy suitable for most operations
	DefaultRetry Retry = &policy{
		initialInterval:    50 * time.Millisecond,
		backoffCoefficient: 2,
		maximumInterval:    10 * time.Second,
		expirationInterval: time.Minute,
		maximumAttempt:     10,
		startTime:          time.Now(),
	}

	// NoRetry a retry policy which never retries
	NoRetry Retry = &policy{}
)

// Retry defines a policy for retrying an operation
type Retry interface {
	// CalculateNextDelay returns the delay before the next attempt or Done
	CalculateNextDelay() time.Duration
}

// Option func to build a retry policy
type Option func(policy *policy) error

type policy struct {
	initialInterval    time.Duration
	backoffCoefficient float64
	maximumInterval    time.Duration
	expirationInterval time.Duration
	maximumAttempt     int
	currentAttempt     int
	startTime          time.Time
}

// New returns a new retry policy built from the given options
func New(options ...Option) (Retry, error) {
	retryPolicy := new(policy)
	retryPolicy.startTime = time.Now()
	for _, option := range options {
		if err := option(retryPolicy); err != nil {
			return nil, err
		}
	}
	return retryPolicy, nil
}

// WithInitialInterval sets the interval of the first retry attempt
func WithInitialInterval(initialInterval time.Duration) Option {
	return func(p *policy) error {
		if initialInterval < 0 {
			return errors.New("initial interval cannot be negative")
		}
		p.initialInterval = initialInterval
		return nil
	}
}

// WithBackoffCoefficient sets the rate at which the retry interval grows
func WithBackoffCoefficient(backoffCoefficient float64) Option {
	return func(p *policy) error {
		if backoffCoefficient < 0 {
			return errors.New("backoff coefficient cannot be negative")
		}
		p.backoffCoefficient = backoffCoefficient
		return nil
	}
}

// WithMaximumInterval caps the interval between retry attempts
func WithMaximumInterval(maximumInterval time.Duration) Option {
	return func(p *policy) error {
		if maximumInterval < 0 {
			return errors.New("maximum interval cannot be negative")
		}
		p.maximumInterval = maximumInterval
		return nil
	}
}

// WithExpirationInterval limits the total time spent retrying
func WithExpirationInterval(expirationInterval time.Duration) Option {
	return func(p *policy) error {
		if expirationInterval < 0 {
			return errors.New("expiration interval cannot be negative")
		}
		p.expirationInterval = expirationInterval
		return nil
	}
}

// WithMaximumAttempts limits the number of retry attempts
func WithMaximumAttempts(maximumAttempts int) Option {
	return func(p *policy) error {
		if maximumAttempts < 0 {
			return errors.New("maximum attempts cannot be negative")
		}
		p.maximumAttempt = maximumAttempts
		return nil
	}
}

// CalculateNextDelay returns the delay before the next attempt or Done
func (p *policy) CalculateNextDelay() time.Duration {
	if p.maximumAttempt != 0 && p.currentAttempt >= p.maximumAttempt {
		return Done
	}

	if p.expirationInterval != 0 && !p.startTime.IsZero() &&
		time.Since(p.startTime) > p.expirationInterval {
		return Done
	}

	nextInterval := float64(p.initialInterval) *
		math.Pow(p.backoffCoefficient, float64(p.currentAttempt))
	if nextInterval <= 0 {
		return Done
	}

	if p.maximumInterval != 0 && nextInterval > float64(p.maximumInterval) {
		nextInterval = float64(p.maximumInterval)
	}

	// add jitter to avoid retry storms
	jitter := rand.Float64() * defaultJitterCoefficient * nextInterval

	p.currentAttempt++

	return time.Duration(nextInterval + jitter)
}
