package pipeline

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ExtractionError reports a failed or malformed language-model extraction
// session. Recovered at document granularity: the document is marked errored
// and the batch continues.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError wraps an error as an ExtractionError.
func NewExtractionError(err error) *ExtractionError {
	if err == nil {
		err = eris.New("extraction failed")
	}
	return &ExtractionError{Err: err}
}

// IsExtractionError checks whether err is an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// WriteError reports a filesystem failure during backup or overwrite. When
// the backup itself failed, the original file is guaranteed untouched.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "write failed for " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError checks whether err is a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
