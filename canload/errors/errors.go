package errors

import "fmt"

// ConfigurationError is fatal and raised before any extraction begins.
type ConfigurationError struct {
	Err error
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Configuration Error. Msg: %s", e.Msg)
	}
	return fmt.Sprintf("Configuration Error. Msg: %s, Err: %s", e.Msg, e.Err)
}

// ArchiveReadError records an individual archive that could not be opened or
// listed. The scan skips the archive and continues.
type ArchiveReadError struct {
	Err         error
	ArchivePath string
}

func (e *ArchiveReadError) Error() string {
	return fmt.Sprintf("could not read archive %s: %s", e.ArchivePath, e.Err)
}

// ConversionError records a converter invocation that failed for one dataset.
// The run continues with the remaining datasets.
type ConversionError struct {
	Err     error
	Dataset string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed for dataset %s: %s", e.Dataset, e.Err)
}
