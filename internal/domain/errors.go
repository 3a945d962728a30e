package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConnect       = errors.New("connection error")
	ErrCredential    = errors.New("credential error")
	ErrCapture       = errors.New("capture error")
	ErrPublish       = errors.New("publish error")
	ErrScreenShare   = errors.New("screen share error")
	ErrVideoDegraded = errors.New("camera could not be restored")
	ErrBusy          = errors.New("meeting already in progress")
)

// StepError names the step that failed, its error kind and the cause.
// errors.Is matches both the kind and anything in the cause chain.
type StepError struct {
	Step string
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	case e.Kind == nil:
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
	}
}

func (e *StepError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewStepError(step string, kind, err error) *StepError {
	return &StepError{Step: step, Kind: kind, Err: err}
}

// Kind returns the taxonomy error err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrConnect, ErrCredential, ErrCapture, ErrPublish, ErrScreenShare, ErrVideoDegraded, ErrBusy} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
