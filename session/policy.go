package session

import (
	"time"

	"github.com/cenkalti/backoff"
)

// Policy bounds how the connector retries a failed connection.
type Policy struct {
	// BaseDelay is the wait after the first failure. It doubles after each further failure.
	BaseDelay time.Duration
	// MaxAttempts caps the number of connection attempts of one Connect call.
	MaxAttempts int
	// Jitter randomizes each delay by ±Jitter of its value.
	Jitter float64
	// HandshakeTimeout bounds the wait for the transport to report the connection open.
	HandshakeTimeout time.Duration
	// CredentialFlushTimeout bounds a credential write, and how long Close waits for a pending one.
	CredentialFlushTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:              time.Second,
		MaxAttempts:            5,
		Jitter:                 0.5,
		HandshakeTimeout:       30 * time.Second,
		CredentialFlushTimeout: 5 * time.Second,
	}
}

// schedule returns the delays to wait between attempts.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	b.MaxInterval = p.BaseDelay << uint(max(p.MaxAttempts, 1))
	// attempts, not elapsed time, end the retries
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
