package models

import "fmt"

// ConfigurationError marks a malformed template. It is fatal for the
// offending template only; evaluation of the remaining catalog continues.
type ConfigurationError struct {
	TemplateID string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("template %s: %s", e.TemplateID, e.Reason)
}

// InvalidObservationError rejects an observation before matching is
// attempted (negative delta, inverted time window).
type InvalidObservationError struct {
	Reason string
}

func (e *InvalidObservationError) Error() string {
	return fmt.Sprintf("invalid observation: %s", e.Reason)
}
