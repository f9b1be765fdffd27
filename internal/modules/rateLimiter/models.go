package rateLimiter

import (
	"errors"
	"time"
)

const (
	DefaultLimit  = 5
	DefaultWindow = time.Minute
)

var (
	ErrInvalidLimit  = errors.New("rate limiter: limit must be positive")
	ErrInvalidWindow = errors.New("rate limiter: window must be positive")
)

// Reason is the machine-readable cause attached to a Deny decision.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonRateLimitExceeded Reason = "RateLimitExceeded"
)

type Config struct {
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
}

func (c Config) Validate() error {
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// ClientWindow is the per-identity counter for the current window.
// Count is always >= 1 once the record exists.
type ClientWindow struct {
	Count       int
	WindowStart time.Time
}

// Decision is the outcome of one CheckAndRecord call.
type Decision struct {
	Allowed bool
	Reason  Reason
	// RetryAfter is the time left until the client's window rolls over. Zero when allowed.
	RetryAfter time.Duration
}

// ClientSnapshot is the read-only view of a client window served by the admin handler.
type ClientSnapshot struct {
	Ip          string    `json:"client_ip"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	Remaining   int       `json:"remaining"`
}

// Clock returns the current time. Tests substitute a manual clock.
type Clock func() time.Time
