package pipeline

import (
	"errors"
	"fmt"
)

// Step names used in error wrapping and progress logging.
const (
	StepProbing    = "probing"
	StepThumbnails = "generating_thumbnails"
	StepTranscode  = "transcoding"
	StepUpload     = "uploading"
	StepFinalize   = "finalizing"
)

// StepError tags a failure with the pipeline step it happened in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// MalformedInputError marks the input file itself as unprocessable:
// unreadable or lacking a video stream. Retrying cannot help, so the
// queue fails the job on the first attempt.
type MalformedInputError struct {
	Cause error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %v", e.Cause)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error must not be retried.
func IsFatal(err error) bool {
	var malformed *MalformedInputError
	return errors.As(err, &malformed)
}
