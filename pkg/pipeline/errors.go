package pipeline

import "fmt"

// Stage failures never abort a request. Each error is stringified into
// Context.SQLError and drives the next state transition instead of
// terminating the pipeline.

// TransportError is a failed call to the text-generation port: a network
// error, a timeout, or model output that could not be parsed.
type TransportError struct {
	Op    string // generation_failed, repair_failed or answer_failed
	Err   error
	Parse bool // true when the model responded but the output was malformed
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// newParseError marks malformed model output as a transport failure so the
// same fallback paths apply as for network errors.
func newParseError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Parse: true}
}

// ValidationRejection is a statement refused by the safety validator.
type ValidationRejection struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationRejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ExecutionError is an engine-level failure on a statement that had already
// passed static validation, e.g. a column typo the heuristic couldn't catch.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
