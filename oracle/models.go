// Package oracle builds request descriptors for the external Oracle Service,
// records outstanding correlations for callback authorization, and delivers
// descriptors through a transactional outbox.
package oracle

import (
	"errors"
	"math/big"
	"time"
)

// Kind selects which configured oracle job a request runs.
type Kind string

const (
	// KindPricing asks the oracle to fetch and scale the current price.
	KindPricing Kind = "pricing"
	// KindSettlement asks the oracle to call back after a delay.
	KindSettlement Kind = "settlement"
)

var (
	// ErrUnknownRequest is returned when no outstanding request matches a correlation ID.
	ErrUnknownRequest = errors.New("oracle: unknown correlation id")
	// ErrUnauthorized is returned when a callback does not originate from the
	// oracle the request was addressed to, or targets the wrong callback.
	ErrUnauthorized = errors.New("oracle: caller not authorized for request")
	// ErrNotExpired is returned when cancellation is attempted before the
	// request's expiration window has elapsed.
	ErrNotExpired = errors.New("oracle: request not expired")
	// ErrJobNotConfigured is returned when no job identifier is set for a request kind.
	ErrJobNotConfigured = errors.New("oracle: job not configured")
)

// Request is what the state machine asks the gateway to submit.
type Request struct {
	Kind     Kind
	Callback string
	// Until delays fulfillment: the oracle holds the callback until this
	// instant. Zero means fulfill as soon as data is available.
	Until time.Time
	// Times is the fixed multiplier the oracle job applies to the reported
	// value before calling back. Nil means no scaling.
	Times *big.Int
}

// Descriptor is the wire form delivered to the Oracle Service. Amounts travel
// as decimal strings.
type Descriptor struct {
	CorrelationID string     `json:"correlation_id"`
	OracleID      string     `json:"oracle_id"`
	JobID         string     `json:"job_id"`
	Callback      string     `json:"callback"`
	Payment       string     `json:"payment"`
	Until         *time.Time `json:"until,omitempty"`
	Times         string     `json:"times,omitempty"`
}

// PendingRequest tracks an outstanding correlation. It authorizes the
// eventual callback and gates stuck-request cancellation.
type PendingRequest struct {
	CorrelationID string
	OracleID      string
	Callback      string
	Payment       *big.Int
	ExpiresAt     time.Time
}

// Message is a transactional outbox row carrying a serialized Descriptor.
type Message struct {
	ID            string
	CorrelationID string
	Payload       []byte
	Attempts      int
}
