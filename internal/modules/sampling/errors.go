package sampling

import (
	"errors"
	"fmt"
)

// ErrNumericalDomain marks a fatal numerical failure during sampling
var ErrNumericalDomain = errors.New("numerical domain error")

// DomainError reports where and why sampling cannot continue
type DomainError struct {
	Op     string
	Chain  int
	Reason string
}

func (e *DomainError) Error() string {
	if e.Chain >= 0 {
		return fmt.Sprintf("%s (chain %d): %s", e.Op, e.Chain, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Unwrap allows errors.Is(err, ErrNumericalDomain)
func (e *DomainError) Unwrap() error {
	return ErrNumericalDomain
}

func newDomainError(op string, chain int, format string, args ...any) error {
	return &DomainError{Op: op, Chain: chain, Reason: fmt.Sprintf(format, args...)}
}
