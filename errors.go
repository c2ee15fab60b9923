package evmprobe

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure conditions.
var (
	// ErrArityMismatch indicates the argument count differs from the function's inputs.
	ErrArityMismatch = errors.New("evmprobe: argument count does not match function inputs")

	// ErrUnsupportedType indicates an ABI type tag outside the supported set.
	ErrUnsupportedType = errors.New("evmprobe: unsupported ABI type")

	// ErrTypeMismatch indicates a Go value cannot represent the ABI type.
	ErrTypeMismatch = errors.New("evmprobe: value does not match ABI type")

	// ErrValueOutOfRange indicates an integer that does not fit its ABI type.
	ErrValueOutOfRange = errors.New("evmprobe: integer out of range for ABI type")

	// ErrShortData indicates return data whose length does not match the output shape.
	ErrShortData = errors.New("evmprobe: return data length does not match outputs")

	// ErrNegativeAmount indicates a negative token amount.
	ErrNegativeAmount = errors.New("evmprobe: amount must not be negative")

	// ErrEmptyCandidateSet indicates a candidate set with no members.
	ErrEmptyCandidateSet = errors.New("evmprobe: candidate set is empty")
)

// TransportError indicates the node could not be reached or the HTTP
// exchange failed before a JSON-RPC response was obtained.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("evmprobe: transport error calling %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RPCError indicates the node answered with a JSON-RPC error object,
// including contract reverts.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("evmprobe: %s failed (code %d): %s (data %v)", e.Method, e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("evmprobe: %s failed (code %d): %s", e.Method, e.Code, e.Message)
}

// EncodingError indicates a function call could not be ABI-encoded.
type EncodingError struct {
	Function string
	Index    int // -1 when the failure is not tied to one argument
	Err      error
}

func (e *EncodingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("evmprobe: encoding %s: %v", e.Function, e.Err)
	}
	return fmt.Sprintf("evmprobe: encoding %s argument %d: %v", e.Function, e.Index, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// DecodingError indicates return data did not match a function's outputs.
type DecodingError struct {
	Function string
	Length   int
	Err      error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("evmprobe: decoding %s (%d bytes): %v", e.Function, e.Length, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// PrecisionError indicates a decimal amount has more fractional digits
// than the token's decimals allow.
type PrecisionError struct {
	Amount   string
	Decimals uint8
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("evmprobe: amount %s is not exact at %d decimals", e.Amount, e.Decimals)
}

// NoMatchingFunctionError indicates every write candidate of a capability failed.
type NoMatchingFunctionError struct {
	Capability string
	Attempts   []Attempt
}

func (e *NoMatchingFunctionError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Function.Name()
	}
	return fmt.Sprintf("evmprobe: no matching %s function (%s) on contract", e.Capability, strings.Join(names, "/"))
}

// Unwrap exposes the individual candidate failures.
func (e *NoMatchingFunctionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// SubmissionError indicates the node rejected a signed transaction.
type SubmissionError struct {
	Nonce uint64
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("evmprobe: transaction with nonce %d rejected: %v", e.Nonce, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
