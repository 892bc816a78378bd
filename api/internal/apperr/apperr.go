package apperr

import "errors"

// Code is a machine-readable failure tag carried across the prediction path.
type Code string

const (
	CodeInvalidStructure      Code = "invalid_structure"
	CodeDescriptorUnavailable Code = "descriptor_unavailable"
	CodeSchemaMismatch        Code = "schema_mismatch"
	CodePredictFailed         Code = "predict_failed"
	CodeEmptyPrediction       Code = "empty_prediction"
	CodeInternal              Code = "internal"
)

// Error is a coded failure. Message is what callers see in the error envelope.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap keeps cause's text as the message unless one is given.
func Wrap(code Code, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidStructure      = New(CodeInvalidStructure, "invalid structure identifier")
	ErrDescriptorUnavailable = New(CodeDescriptorUnavailable, "descriptor provider unavailable")
	ErrSchemaMismatch        = New(CodeSchemaMismatch, "feature vector does not match model schema")
	ErrPredictFailed         = New(CodePredictFailed, "prediction failed")
	ErrEmptyPrediction       = New(CodeEmptyPrediction, "predictor returned no values")
)
