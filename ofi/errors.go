package ofi

import "fmt"

// ConfigurationError reports a structurally invalid request, such as asking
// for more book levels than the data carries. It is raised before any
// computation starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// DataQualityError reports input that is structurally valid but unusable:
// too few snapshots, a level with no resting liquidity over the whole
// window, or a degenerate regression input. It is fatal for the affected
// instrument or target pair only; callers isolate it and keep processing
// other instruments.
type DataQualityError struct {
	Instrument string
	Stage      string
	Reason     string
}

func (e *DataQualityError) Error() string {
	if e.Instrument == "" {
		return fmt.Sprintf("data quality error in %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("data quality error for %s in %s: %s", e.Instrument, e.Stage, e.Reason)
}
