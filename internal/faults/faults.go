package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds used as the `kind` log attribute.
const (
	KindConfiguration  = "configuration_error"
	KindProvider       = "provider_unavailable"
	KindReconciliation = "reconciliation_conflict"
	KindDataIntegrity  = "data_integrity_warning"
)

var (
	ErrProviderUnavailable    = errors.New("faults: provider unavailable")
	ErrReconciliationConflict = errors.New("faults: call status regression dropped")
	ErrDataIntegrity          = errors.New("faults: persisted store write failed")
)

// ConfigurationError reports missing credentials. It is returned to the caller
// of call-placement operations and is never swallowed.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// ProviderError wraps a failure of an external collaborator (language
// generation, speech synthesis, telephony).
type ProviderError struct {
	Provider string
	Err      error
}

func Provider(name string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: name, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderUnavailable }

// DataIntegrity marks a storage write failure. In-memory state stays authoritative.
func DataIntegrity(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDataIntegrity, err)
}

// Kind classifies err for structured logs.
func Kind(err error) string {
	var cfgErr *ConfigurationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.Is(err, ErrProviderUnavailable):
		return KindProvider
	case errors.Is(err, ErrReconciliationConflict):
		return KindReconciliation
	case errors.Is(err, ErrDataIntegrity):
		return KindDataIntegrity
	default:
		return "internal"
	}
}
