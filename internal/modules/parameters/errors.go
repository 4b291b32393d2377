package parameters

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel wrapped by every construction-time configuration failure
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError names the offending option or parameter
type ConfigurationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%q: %s", e.Key, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigurationError builds a ConfigurationError
func NewConfigurationError(key, value, reason string) error {
	return &ConfigurationError{Key: key, Value: value, Reason: reason}
}
